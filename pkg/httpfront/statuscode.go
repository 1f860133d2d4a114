// Package httpfront is the public-facing HTTP front end: it resolves
// an incoming request's path to a service via the Service Pool,
// leases a sandbox, dispatches the service's handler, and maps the
// result (or error) back onto an HTTP response. The core treats this
// package as an external collaborator — everything here consumes the
// core's exported contract rather than reaching into its internals.
package httpfront

import (
	"net/http"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// statusForKind maps a hiveerr.Kind to the HTTP status the front end
// and admin API both report it as. ScriptCustom is handled separately
// by its caller since it carries its own status hint.
var statusForKind = map[hiveerr.Kind]int{
	hiveerr.InvalidServiceName:       http.StatusBadRequest,
	hiveerr.ServiceNotFound:          http.StatusNotFound,
	hiveerr.ServicePathNotFound:      http.StatusNotFound,
	hiveerr.ServiceExists:            http.StatusConflict,
	hiveerr.ServiceRunning:           http.StatusConflict,
	hiveerr.ServiceStopped:           http.StatusConflict,
	hiveerr.ServiceDropped:           http.StatusServiceUnavailable,
	hiveerr.PermissionDenied:         http.StatusForbidden,
	hiveerr.InvalidPath:              http.StatusBadRequest,
	hiveerr.SchemeNotSupported:       http.StatusBadRequest,
	hiveerr.InvalidOpenMode:          http.StatusBadRequest,
	hiveerr.InvalidReadMode:          http.StatusBadRequest,
	hiveerr.InvalidSeekBase:          http.StatusBadRequest,
	hiveerr.CannotModifyServiceSource: http.StatusForbidden,
	hiveerr.ScriptError:              http.StatusInternalServerError,
	hiveerr.ScriptCustom:             http.StatusInternalServerError,
	hiveerr.IO:                       http.StatusInternalServerError,
	hiveerr.CycleDetected:            http.StatusInternalServerError,
	hiveerr.UseAfterClose:            http.StatusInternalServerError,
}

// StatusForError maps any error to an HTTP status code: a *hiveerr.Error
// carrying ScriptCustom uses its own StatusHint (clamped to a valid
// HTTP status), any other tagged Error is looked up in statusForKind,
// and anything else is a 500.
func StatusForError(err error) int {
	he, ok := hiveerr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if he.Kind == hiveerr.ScriptCustom && he.StatusHint >= 100 && he.StatusHint < 600 {
		return he.StatusHint
	}
	if status, ok := statusForKind[he.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON shape returned for any failed request, shared
// by the public front end and the admin API.
type ErrorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

// BodyForError builds the ErrorBody for err.
func BodyForError(err error) ErrorBody {
	if he, ok := hiveerr.As(err); ok {
		return ErrorBody{Error: he.Error(), Kind: string(he.Kind), Message: he.Message, Detail: he.Detail}
	}
	return ErrorBody{Error: err.Error()}
}
