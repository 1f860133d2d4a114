package adminapi

import (
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/service"
)

// CreateRequest is the body of POST /admin/services. Scripts are
// uploaded inline as path -> file contents rather than referencing a
// directory on the admin API's own host, since the client issuing the
// request and the process running hive are not assumed to share a
// filesystem.
type CreateRequest struct {
	Name        string            `json:"name" binding:"required,max=64"`
	Files       map[string]string `json:"files" binding:"required,min=1"`
	Permissions []PermissionAtom  `json:"permissions"`
}

// PermissionAtom is the wire shape of one permission.Atom.
type PermissionAtom struct {
	Kind   string `json:"kind" binding:"required,oneof=read write"`
	Prefix string `json:"prefix" binding:"required"`
}

func (p PermissionAtom) toAtom() permission.Atom {
	kind := permission.Read
	if p.Kind == "write" {
		kind = permission.Write
	}
	return permission.Atom{Kind: kind, Prefix: p.Prefix}
}

// ServiceView is the wire shape of one service in GET /admin/services.
type ServiceView struct {
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Running bool     `json:"running"`
	Paths   []string `json:"paths"`
}

func viewOf(v service.View) ServiceView {
	sv := ServiceView{Name: string(v.Record.Name), ID: v.Record.ID, Running: v.Running}
	for _, m := range v.Record.Paths {
		sv.Paths = append(sv.Paths, m.String())
	}
	return sv
}
