package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Create, start, stop, remove, and list services on a running hive server",
}

func init() {
	for _, cmd := range []*cobra.Command{serviceCreateCmd, serviceStartCmd, serviceStopCmd, serviceRmCmd, serviceLsCmd} {
		cmd.Flags().String("admin", "http://127.0.0.1:9090", "Admin API base address")
		cmd.Flags().String("token", "", "Bearer token for the admin API")
	}

	serviceCreateCmd.Flags().String("dir", "", "Directory whose files become the service's entry script and library sources (required)")
	serviceCreateCmd.Flags().StringSlice("perm", nil, "Permission atom as kind:prefix, e.g. read:/data or write:/tmp (repeatable)")
	serviceCreateCmd.MarkFlagRequired("dir")

	serviceCmd.AddCommand(serviceCreateCmd, serviceStartCmd, serviceStopCmd, serviceRmCmd, serviceLsCmd)
}

// adminRequest sends an HTTP request to the admin API and decodes a
// JSON response into out (if non-nil), returning an error built from
// the response body when the status is not 2xx.
func adminRequest(adminAddr, token, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, strings.TrimRight(adminAddr, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call admin API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read admin API response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Error != "" {
			return fmt.Errorf("admin API: %s", errBody.Error)
		}
		return fmt.Errorf("admin API: unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode admin API response: %w", err)
		}
	}
	return nil
}

func readServiceFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(contents)
		return nil
	})
	return files, err
}

func parsePermFlags(perms []string) ([]permissionAtom, error) {
	atoms := make([]permissionAtom, 0, len(perms))
	for _, p := range perms {
		kind, prefix, ok := strings.Cut(p, ":")
		if !ok || (kind != "read" && kind != "write") {
			return nil, fmt.Errorf("invalid --perm %q, expected read:<prefix> or write:<prefix>", p)
		}
		atoms = append(atoms, permissionAtom{Kind: kind, Prefix: prefix})
	}
	return atoms, nil
}

// permissionAtom mirrors pkg/adminapi.PermissionAtom's wire shape
// without importing the server package into the CLI binary.
type permissionAtom struct {
	Kind   string `json:"kind"`
	Prefix string `json:"prefix"`
}

type createRequest struct {
	Name        string           `json:"name"`
	Files       map[string]string `json:"files"`
	Permissions []permissionAtom  `json:"permissions"`
}

type serviceView struct {
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Running bool     `json:"running"`
	Paths   []string `json:"paths"`
}

var serviceCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a service from a directory of script files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		adminAddr, _ := cmd.Flags().GetString("admin")
		token, _ := cmd.Flags().GetString("token")
		dir, _ := cmd.Flags().GetString("dir")
		permFlags, _ := cmd.Flags().GetStringSlice("perm")

		files, err := readServiceFiles(dir)
		if err != nil {
			return fmt.Errorf("read service files: %w", err)
		}
		atoms, err := parsePermFlags(permFlags)
		if err != nil {
			return err
		}

		var view serviceView
		req := createRequest{Name: name, Files: files, Permissions: atoms}
		if err := adminRequest(adminAddr, token, http.MethodPost, "/admin/services", req, &view); err != nil {
			return err
		}

		fmt.Printf("Service created: %s\n", view.Name)
		fmt.Printf("  ID: %s\n", view.ID)
		for _, p := range view.Paths {
			fmt.Printf("  Path: %s\n", p)
		}
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Start a stopped service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin")
		token, _ := cmd.Flags().GetString("token")
		if err := adminRequest(adminAddr, token, http.MethodPost, "/admin/services/"+args[0]+"/start", nil, nil); err != nil {
			return err
		}
		fmt.Printf("Service started: %s\n", args[0])
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop a running service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin")
		token, _ := cmd.Flags().GetString("token")
		if err := adminRequest(adminAddr, token, http.MethodPost, "/admin/services/"+args[0]+"/stop", nil, nil); err != nil {
			return err
		}
		fmt.Printf("Service stopped: %s\n", args[0])
		return nil
	},
}

var serviceRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a stopped service and its local storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin")
		token, _ := cmd.Flags().GetString("token")
		if err := adminRequest(adminAddr, token, http.MethodDelete, "/admin/services/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Service removed: %s\n", args[0])
		return nil
	},
}

var serviceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List services",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin")
		token, _ := cmd.Flags().GetString("token")

		var views []serviceView
		if err := adminRequest(adminAddr, token, http.MethodGet, "/admin/services", nil, &views); err != nil {
			return err
		}

		if len(views) == 0 {
			fmt.Println("No services found")
			return nil
		}

		fmt.Printf("%-20s %-10s %-38s %s\n", "NAME", "RUNNING", "ID", "PATHS")
		for _, v := range views {
			fmt.Printf("%-20s %-10t %-38s %s\n", v.Name, v.Running, v.ID, strings.Join(v.Paths, ","))
		}
		return nil
	},
}
