package fs

import (
	"io"
	"os"
	"sync"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// releaser is the subset of *rescontext.handle the file needs; kept
// as a local interface so this file doesn't have to name rescontext's
// unexported handle type.
type releaser interface{ Release() }

// LuaFile is the userdata backing every Lua-visible file handle
// returned by fs.open, whether it's rooted in local storage, the real
// OS filesystem, or a service's Source. Line- and byte-oriented reads
// are done one byte at a time off the raw reader rather than through
// a buffering layer, so Seek and Write never have to reconcile with
// stale buffered lookahead.
type LuaFile struct {
	mu       sync.Mutex
	name     string
	mode     OpenMode
	reader   io.Reader
	seeker   io.Seeker
	writer   io.Writer
	closer   io.Closer
	sizer    func() (int64, bool)
	relHandle releaser
	closed   bool
}

// NewReadWriteFile wraps a handle that supports read, write, and seek
// (an afero.File backing a local: or external: path).
func NewReadWriteFile(name string, mode OpenMode, f interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}) *LuaFile {
	return &LuaFile{
		name:   name,
		mode:   mode,
		reader: f,
		seeker: f,
		writer: f,
		closer: f,
		sizer:  func() (int64, bool) { return sizeOf(f) },
	}
}

// NewReadOnlyFile wraps a handle that only supports read and seek (a
// source: path, always opened in ModeRead).
func NewReadOnlyFile(name string, f interface {
	io.Reader
	io.Seeker
	io.Closer
}) *LuaFile {
	return &LuaFile{
		name:   name,
		mode:   ModeRead,
		reader: f,
		seeker: f,
		closer: f,
		sizer:  func() (int64, bool) { return sizeOf(f) },
	}
}

// SetReleaseHandle wires this file into a Resource Context's
// early-release protocol; called once by the module loader right
// after registering the file as a Resource.
func (lf *LuaFile) SetReleaseHandle(h releaser) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.relHandle = h
}

// Name returns the path this file was opened with.
func (lf *LuaFile) Name() string { return lf.name }

// Mode returns the open mode this file was opened with.
func (lf *LuaFile) Mode() OpenMode { return lf.mode }

func sizeOf(f any) (int64, bool) {
	if s, ok := f.(interface{ Size() int64 }); ok {
		return s.Size(), true
	}
	if s, ok := f.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := s.Stat(); err == nil {
			return info.Size(), true
		}
	}
	return 0, false
}

// Read services one `file:read(mode)` call. ok is false only on a
// clean EOF with nothing read, which callers map to a nil return to
// Lua.
func (lf *LuaFile) Read(mode ReadMode) (data []byte, ok bool, err error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return nil, false, hiveerr.New(hiveerr.UseAfterClose, "file is closed")
	}

	switch mode.kind {
	case readAll:
		buf, err := io.ReadAll(lf.reader)
		if err != nil {
			return nil, false, hiveerr.Wrap(hiveerr.IO, "read failed", err)
		}
		return buf, true, nil
	case readExact:
		return lf.readExact(mode.n)
	case readLine:
		return lf.readLine(false)
	case readLineKeepEOL:
		return lf.readLine(true)
	default:
		return nil, false, hiveerr.Newf(hiveerr.InvalidReadMode, "unknown read mode")
	}
}

func (lf *LuaFile) readExact(n int64) ([]byte, bool, error) {
	if n <= 0 {
		return []byte{}, true, nil
	}
	if size, known := lf.sizer(); known {
		if pos, err := lf.tell(); err == nil {
			remaining := size - pos
			if remaining <= 0 {
				return nil, false, nil
			}
			if n > remaining {
				n = remaining
			}
		}
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(lf.reader, buf)
	switch {
	case err == io.EOF:
		return nil, false, nil
	case err == io.ErrUnexpectedEOF:
		return buf[:read], true, nil
	case err != nil:
		return nil, false, hiveerr.Wrap(hiveerr.IO, "read failed", err)
	}
	return buf, true, nil
}

func (lf *LuaFile) readLine(keepEOL bool) ([]byte, bool, error) {
	var buf []byte
	one := make([]byte, 1)
	for {
		n, err := lf.reader.Read(one)
		if n == 1 {
			buf = append(buf, one[0])
			if one[0] == '\n' {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, hiveerr.Wrap(hiveerr.IO, "read failed", err)
		}
	}
	if len(buf) == 0 {
		return nil, false, nil
	}
	if !keepEOL {
		buf = trimEOL(buf)
	}
	return buf, true, nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// Write appends data to the file. Fails with hiveerr.IO if the file
// wasn't opened in a writable mode.
func (lf *LuaFile) Write(data []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return 0, hiveerr.New(hiveerr.UseAfterClose, "file is closed")
	}
	if lf.writer == nil {
		return 0, hiveerr.New(hiveerr.IO, "file not opened for writing")
	}
	n, err := lf.writer.Write(data)
	if err != nil {
		return n, hiveerr.Wrap(hiveerr.IO, "write failed", err)
	}
	return n, nil
}

// SeekWhence is the Lua-visible seek base, mirroring Lua's io.seek.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// ParseSeekWhence accepts "set"/"cur"/"end", defaulting to "cur" to
// match Lua's io.seek default when no base is given.
func ParseSeekWhence(s string, has bool) (SeekWhence, error) {
	if !has || s == "" {
		return SeekCur, nil
	}
	switch s {
	case "set":
		return SeekSet, nil
	case "cur":
		return SeekCur, nil
	case "end":
		return SeekEnd, nil
	default:
		return 0, hiveerr.Newf(hiveerr.InvalidSeekBase, "invalid seek base: %q", s)
	}
}

func (w SeekWhence) toIO() int {
	switch w {
	case SeekSet:
		return io.SeekStart
	case SeekEnd:
		return io.SeekEnd
	default:
		return io.SeekCurrent
	}
}

// Seek repositions the file and returns the new absolute offset.
func (lf *LuaFile) Seek(whence SeekWhence, offset int64) (int64, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return 0, hiveerr.New(hiveerr.UseAfterClose, "file is closed")
	}
	pos, err := lf.seeker.Seek(offset, whence.toIO())
	if err != nil {
		return 0, hiveerr.Wrap(hiveerr.IO, "seek failed", err)
	}
	return pos, nil
}

func (lf *LuaFile) tell() (int64, error) {
	return lf.seeker.Seek(0, io.SeekCurrent)
}

// Flush syncs buffered writes to the underlying backing store, if the
// backing handle supports it (afero.File does; a source: handle
// doesn't and Flush is then a no-op).
func (lf *LuaFile) Flush() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return hiveerr.New(hiveerr.UseAfterClose, "file is closed")
	}
	if s, ok := lf.closer.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return hiveerr.Wrap(hiveerr.IO, "flush failed", err)
		}
	}
	return nil
}

// Reader exposes the raw io.Reader for into_stream, which hands the
// remainder of the file to the HTTP front end as a response body
// without buffering it into memory first.
func (lf *LuaFile) Reader() io.Reader { return lf.reader }

// Close releases the underlying handle. Idempotent: a second call
// (whether from scripted code or from Resource Context drain) is a
// no-op, so a resource is released exactly once.
func (lf *LuaFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return nil
	}
	lf.closed = true
	if lf.relHandle != nil {
		lf.relHandle.Release()
	}
	if lf.closer != nil {
		if err := lf.closer.Close(); err != nil {
			return hiveerr.Wrap(hiveerr.IO, "close failed", err)
		}
	}
	return nil
}
