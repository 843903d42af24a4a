package entry

import "time"

// File is a leaf entry holding inline byte content.
type File struct {
	name    string
	data    []byte
	modTime time.Time
}

// NewFile returns a file owning a copy of data.
func NewFile(name string, data []byte) *File {
	return &File{
		name:    name,
		data:    append([]byte(nil), data...),
		modTime: time.Now(),
	}
}

func (f *File) Name() string        { return f.name }
func (f *File) SetName(name string) { f.name = name }

// Clone implements Entry. The copy owns its own byte slice.
func (f *File) Clone() Entry {
	return &File{
		name:    f.name,
		data:    append([]byte(nil), f.data...),
		modTime: f.modTime,
	}
}

// Data returns the file content. The slice aliases the file's storage.
func (f *File) Data() []byte {
	return f.data
}

// SetData replaces the content with a copy of data and bumps ModTime.
func (f *File) SetData(data []byte) {
	f.data = append([]byte(nil), data...)
	f.modTime = time.Now()
}

func (f *File) Size() int64 {
	return int64(len(f.data))
}

func (f *File) ModTime() time.Time {
	return f.modTime
}

// SetModTime overrides the modification time (used when loading from disk).
func (f *File) SetModTime(t time.Time) {
	f.modTime = t
}

var _ Entry = (*File)(nil)
