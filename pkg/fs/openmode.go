package fs

import (
	"os"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/permission"
)

// OpenMode is one of the six fopen-style modes open() allows.
type OpenMode string

const (
	ModeRead            OpenMode = "r"
	ModeWrite           OpenMode = "w"
	ModeAppend          OpenMode = "a"
	ModeReadWrite       OpenMode = "r+"
	ModeReadWriteCreate OpenMode = "w+"
	ModeReadAppend      OpenMode = "a+"
)

// ParseOpenMode validates a mode string, defaulting to ModeRead when s
// is empty (`open(path)` with no mode argument reads).
func ParseOpenMode(s string) (OpenMode, error) {
	if s == "" {
		return ModeRead, nil
	}
	switch OpenMode(s) {
	case ModeRead, ModeWrite, ModeAppend, ModeReadWrite, ModeReadWriteCreate, ModeReadAppend:
		return OpenMode(s), nil
	default:
		return "", hiveerr.Newf(hiveerr.InvalidOpenMode, "invalid open mode: %q", s)
	}
}

// Flags returns the os.OpenFile flags matching this mode, for use
// against afero.Fs.OpenFile (afero mirrors the os package's flag set).
func (m OpenMode) Flags() int {
	switch m {
	case ModeRead:
		return os.O_RDONLY
	case ModeWrite:
		return os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	case ModeAppend:
		return os.O_CREATE | os.O_APPEND | os.O_WRONLY
	case ModeReadWrite:
		return os.O_RDWR
	case ModeReadWriteCreate:
		return os.O_CREATE | os.O_TRUNC | os.O_RDWR
	case ModeReadAppend:
		return os.O_CREATE | os.O_APPEND | os.O_RDWR
	default:
		return os.O_RDONLY
	}
}

// PermissionAtoms returns the permission.AtomKinds this mode requires
// on an external: path: read-only modes require only Read, every mode
// that can create/truncate/append requires Write, and the "+" modes
// require both.
func (m OpenMode) PermissionAtoms() []permission.AtomKind {
	switch m {
	case ModeRead:
		return []permission.AtomKind{permission.Read}
	case ModeWrite, ModeAppend:
		return []permission.AtomKind{permission.Write}
	case ModeReadWrite, ModeReadWriteCreate, ModeReadAppend:
		return []permission.AtomKind{permission.Read, permission.Write}
	default:
		return nil
	}
}

// Writable reports whether this mode permits Write/flush calls.
func (m OpenMode) Writable() bool {
	return m != ModeRead
}
