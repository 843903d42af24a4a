package nfsmount

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// seekPos resolves a Seek request against the current position and size.
// Negative results clamp to 0.
func seekPos(pos, size, offset int64, whence int) int64 {
	var p int64
	switch whence {
	case io.SeekStart:
		p = offset
	case io.SeekCurrent:
		p = pos + offset
	case io.SeekEnd:
		p = size + offset
	}
	if p < 0 {
		p = 0
	}
	return p
}

// snapshotFile is a read-only billy.File over a private copy of a file's
// content, taken when the file was opened.
type snapshotFile struct {
	name string
	data []byte
	pos  int64
}

func (f *snapshotFile) Name() string { return f.name }

func (f *snapshotFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *snapshotFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *snapshotFile) Seek(offset int64, whence int) (int64, error) {
	f.pos = seekPos(f.pos, int64(len(f.data)), offset, whence)
	return f.pos, nil
}

func (f *snapshotFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *snapshotFile) Truncate(int64) error      { return errReadOnly }
func (f *snapshotFile) Lock() error               { return nil }
func (f *snapshotFile) Unlock() error             { return nil }
func (f *snapshotFile) Close() error              { return nil }

// writeFile buffers writes and commits the final content on Close.
// NFS WRITE RPCs arrive as individual writes; only the closed result reaches
// the tree.
type writeFile struct {
	name    string
	buf     []byte
	pos     int64
	dirty   bool
	closed  bool
	onClose func(name string, content []byte) error
}

func (f *writeFile) Name() string { return f.name }

func (f *writeFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *writeFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *writeFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.dirty = true
	return n, nil
}

func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	f.pos = seekPos(f.pos, int64(len(f.buf)), offset, whence)
	return f.pos, nil
}

func (f *writeFile) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("truncate %s: negative size %d", f.name, size)
	}
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else if size > int64(len(f.buf)) {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	f.dirty = true
	return nil
}

// Close commits the buffer if it was modified. Closing twice is a no-op.
func (f *writeFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.dirty || f.onClose == nil {
		return nil
	}
	return f.onClose(f.name, f.buf)
}

func (f *writeFile) Lock() error   { return nil }
func (f *writeFile) Unlock() error { return nil }

var (
	_ billy.File = (*snapshotFile)(nil)
	_ billy.File = (*writeFile)(nil)
)
