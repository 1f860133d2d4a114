package fs

import "io"

// ByteStream is a lazy, single-pass byte source produced by
// `file:into_stream()`. The HTTP front end recognizes this type when a
// request handler's response body is a stream userdata and copies
// straight from Reader into the response without buffering the whole
// body in memory.
type ByteStream struct {
	Reader io.Reader
	file   *LuaFile
}

// Close releases the underlying file. Safe to call even if the stream
// was never fully read; also reachable through Resource Context drain
// since the file that backs a ByteStream is still registered there.
func (s *ByteStream) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
