package mkvtag

import (
	"bufio"
	"io"
	"os"
)

// fileSource wraps an *os.File to provide a buffered, seekable reader
// plus the direct-offset write operations the planner needs, mirroring
// the teacher's seekableReader wrapper (there adapting a *bytes.Reader
// to io.ReadSeeker) but over a real file descriptor and with the extra
// write-side passthroughs a read-only demuxer never required.
type fileSource struct {
	f   *os.File
	buf *bufio.Reader
	pos int64 // logical position as seen through Read/Seek
}

func newFileSource(f *os.File) *fileSource {
	return &fileSource{f: f, buf: bufio.NewReaderSize(f, 32*1024)}
}

// Read implements io.Reader by delegating to the buffered reader.
func (s *fileSource) Read(p []byte) (int, error) {
	n, err := s.buf.Read(p)
	s.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker. Any seek invalidates the read-ahead buffer,
// since bufio.Reader has no way to reposition without discarding it.
func (s *fileSource) Seek(offset int64, whence int) (int64, error) {
	newPos, err := s.f.Seek(offset, whence)
	if err != nil {
		return 0, wrapErr(ErrIO, err)
	}
	s.buf.Reset(s.f)
	s.pos = newPos
	return newPos, nil
}

// Position reports the current logical offset, equivalent to the
// teacher's EBMLReader.Position().
func (s *fileSource) Position() int64 {
	return s.pos
}

// WriteAt writes p at the given absolute file offset, bypassing the read
// buffer. Callers must Seek afterward before resuming sequential reads,
// since the underlying file cursor moves independently of s.pos.
func (s *fileSource) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, wrapErr(ErrIO, err)
	}
	return n, nil
}

// Truncate resizes the underlying file. The planner does not call it:
// Strategy C grows the file by writing past its end with WriteAt.
func (s *fileSource) Truncate(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return wrapErr(ErrIO, err)
	}
	return nil
}

// Sync flushes the file to stable storage, the final step of every
// planner strategy.
func (s *fileSource) Sync() error {
	if err := s.f.Sync(); err != nil {
		return wrapErr(ErrIO, err)
	}
	return nil
}

// Size returns the current on-disk file size.
func (s *fileSource) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, wrapErr(ErrIO, err)
	}
	return info.Size(), nil
}

var _ io.ReadSeeker = (*fileSource)(nil)
