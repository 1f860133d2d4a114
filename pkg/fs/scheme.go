// Package fs implements the scheme-qualified filesystem module:
// `local:`, `external:`, and `source:` paths, routed to an
// afero.Fs-backed local-storage directory, the real OS filesystem
// gated by a permission.Set, and a service's source.Source
// respectively.
package fs

import (
	"path/filepath"
	"strings"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// Scheme is one of the three path schemes the fs module understands.
type Scheme string

const (
	SchemeLocal    Scheme = "local"
	SchemeExternal Scheme = "external"
	SchemeSource   Scheme = "source"
)

// ParsePath splits "<scheme>:<relative>" into its scheme and relative
// part. Absence of any "<scheme>:" implies local. A scheme is
// recognized purely by the presence of a colon; an unrecognized
// scheme name is still returned (not an error here) so callers can
// produce SchemeNotSupported with the offending name instead of
// silently treating it as local:.
func ParsePath(path string) (Scheme, string) {
	if scheme, rest, ok := strings.Cut(path, ":"); ok {
		return Scheme(scheme), rest
	}
	return SchemeLocal, path
}

// NormalizeLocal cleans a local: relative path and clamps any ".."
// segments at the service's storage root, so scripted code can never
// escape its own local-storage directory.
func NormalizeLocal(rel string) string {
	clean := filepath.Clean("/" + rel)
	return strings.TrimPrefix(clean, "/")
}

// NormalizeExternal cleans an external: path as an absolute host
// path, for both permission checks and the final filesystem call.
func NormalizeExternal(path string) string {
	if !filepath.IsAbs(path) {
		path = "/" + path
	}
	return filepath.Clean(path)
}

// SchemeNotSupportedErr builds the standard error for an unrecognized scheme.
func SchemeNotSupportedErr(scheme Scheme) error {
	return hiveerr.Newf(hiveerr.SchemeNotSupported, "scheme not supported: %s", scheme)
}
