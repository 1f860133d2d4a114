// Package hiveerr defines the tagged error kinds returned by the hive
// core and the wrapper type that carries them across package
// boundaries, the sandbox/Lua boundary, and the HTTP front ends.
package hiveerr

import "fmt"

// Kind tags an Error with one of the core's enumerated error kinds.
// Kinds are compared by value, not by wrapping chain: callers test an
// error against a bare Kind with Is(err, kind).
type Kind string

const (
	InvalidServiceName       Kind = "invalid_service_name"
	ServiceNotFound          Kind = "service_not_found"
	ServicePathNotFound      Kind = "service_path_not_found"
	ServiceExists            Kind = "service_exists"
	ServiceRunning           Kind = "service_running"
	ServiceStopped           Kind = "service_stopped"
	ServiceDropped           Kind = "service_dropped"
	PermissionDenied         Kind = "permission_denied"
	InvalidPath              Kind = "invalid_path"
	SchemeNotSupported       Kind = "scheme_not_supported"
	InvalidOpenMode          Kind = "invalid_open_mode"
	InvalidReadMode          Kind = "invalid_read_mode"
	InvalidSeekBase          Kind = "invalid_seek_base"
	CannotModifyServiceSource Kind = "cannot_modify_service_source"
	ScriptError              Kind = "script_error"
	ScriptCustom             Kind = "script_custom"
	IO                       Kind = "io"
	CycleDetected            Kind = "cycle_detected"
	UseAfterClose            Kind = "use_after_close"
)

// Error is the core's error type: a tagged kind plus structured
// detail and an optional wrapped cause. It crosses the sandbox
// boundary unchanged (see ToLuaValue in lua.go) so
// scripted pcall sees the same Kind the host raised.
type Error struct {
	Kind    Kind
	Message string
	// Detail carries kind-specific structured data (service name,
	// path, traceback...). Left nil when Message already says it all.
	Detail any
	// StatusHint is set only for ScriptCustom, letting scripted code
	// pick its own HTTP status via `error({status = 404, ...})`.
	StatusHint int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a human message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an existing error as its cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail sets Detail and returns the same *Error for chaining.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// ServiceNotFoundErr builds the standard "service not found" error.
func ServiceNotFoundErr(name string) *Error {
	return New(ServiceNotFound, "service not found").WithDetail(map[string]string{"name": name})
}

// ServiceExistsErr builds the standard "service already exists" error.
func ServiceExistsErr(name string) *Error {
	return New(ServiceExists, "service already exists").WithDetail(map[string]string{"name": name})
}

// ServiceRunningErr builds the standard "service is running" error.
func ServiceRunningErr(name string) *Error {
	return New(ServiceRunning, "service is running").WithDetail(map[string]string{"name": name})
}

// ServiceStoppedErr builds the standard "service is stopped" error.
func ServiceStoppedErr(name string) *Error {
	return New(ServiceStopped, "service is stopped").WithDetail(map[string]string{"name": name})
}

// ServiceDroppedErr builds the "running handle is stale" error.
func ServiceDroppedErr(name string) *Error {
	return New(ServiceDropped, "service record was dropped").WithDetail(map[string]string{"name": name})
}

// PermissionDeniedErr builds a permission-denied error for one path/atom.
func PermissionDeniedErr(atomKind, path string) *Error {
	return New(PermissionDenied, "permission denied").
		WithDetail(map[string]string{"kind": atomKind, "path": path})
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if he, ok := err.(*Error); ok {
			e = he
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// As extracts the *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	for err != nil {
		if he, ok := err.(*Error); ok {
			return he, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
