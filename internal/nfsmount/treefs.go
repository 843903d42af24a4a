// Package nfsmount exposes an arbor tree as a billy.Filesystem and serves it
// over NFSv3 with willscott/go-nfs.
package nfsmount

import (
	"errors"
	"os"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/tree"
)

var (
	errReadOnly    = errors.New("read-only filesystem")
	errIsDir       = errors.New("is a directory")
	errNotRegular  = errors.New("not a regular file")
	errNotEmpty    = errors.New("directory not empty")
	errNotSymlink  = errors.New("not a symlink")
	errRootMutated = errors.New("cannot modify the root")
)

// TreeFS adapts a tree.Tree to billy.Filesystem. Every call takes the tree's
// lock for its own duration; files opened for reading see a snapshot of the
// content at open time, and writes land in the tree when the file is closed.
type TreeFS struct {
	tree      *tree.Tree
	mountTime time.Time
	writable  bool
	onChange  func()
}

// NewTreeFS returns a read-only view of t.
func NewTreeFS(t *tree.Tree) *TreeFS {
	return &TreeFS{
		tree:      t,
		mountTime: time.Now(),
	}
}

// SetWritable enables or disables mutation through the filesystem.
func (fs *TreeFS) SetWritable(w bool) {
	fs.writable = w
}

// OnChange registers fn to run after every successful mutation.
func (fs *TreeFS) OnChange(fn func()) {
	fs.onChange = fn
}

func (fs *TreeFS) changed() {
	if fs.onChange != nil {
		fs.onChange()
	}
}

// --- billy.Basic ---

func (fs *TreeFS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		if !fs.writable {
			return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
		}
		return fs.openWritable(filename, flag)
	}

	var data []byte
	err := fs.tree.View(func(root *entry.Folder) error {
		e, err := tree.Lookup(root, filename)
		if err != nil {
			return err
		}
		switch f := e.(type) {
		case *entry.File:
			data = append([]byte(nil), f.Data()...)
			return nil
		case *entry.Folder:
			return errIsDir
		default:
			return errNotRegular
		}
	})
	if err != nil {
		return nil, pathErr("open", filename, err)
	}
	return &snapshotFile{name: filename, data: data}, nil
}

// openWritable returns a buffered file that commits to the tree on Close.
// O_CREATE inserts an empty file immediately so the name is visible to Stat
// before the first write arrives.
func (fs *TreeFS) openWritable(filename string, flag int) (billy.File, error) {
	if filename == "/" {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}
	var buf []byte
	var created bool
	err := fs.tree.Update(func(root *entry.Folder) error {
		e, err := tree.Lookup(root, filename)
		switch {
		case errors.Is(err, entry.ErrNotFound):
			if flag&os.O_CREATE == 0 {
				return err
			}
			dir, name := path.Split(filename)
			if err := tree.Put(root, dir, entry.NewFile(name, nil)); err != nil {
				return err
			}
			created = true
			return nil
		case err != nil:
			return err
		}
		if flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL {
			return entry.ErrExists
		}
		switch f := e.(type) {
		case *entry.File:
			if flag&os.O_TRUNC == 0 {
				buf = append([]byte(nil), f.Data()...)
			}
			return nil
		case *entry.Folder:
			return errIsDir
		default:
			return errNotRegular
		}
	})
	if err != nil {
		return nil, pathErr("open", filename, err)
	}
	if created {
		fs.changed()
	}

	wf := &writeFile{
		name:    filename,
		buf:     buf,
		onClose: fs.commit,
	}
	if flag&os.O_TRUNC != 0 && !created {
		wf.dirty = true
	}
	if flag&os.O_APPEND != 0 {
		wf.pos = int64(len(buf))
	}
	return wf, nil
}

// commit stores content at filename, creating the file if it vanished since
// it was opened.
func (fs *TreeFS) commit(filename string, content []byte) error {
	err := fs.tree.Update(func(root *entry.Folder) error {
		dir, name := path.Split(filename)
		parent, err := tree.LookupFolder(root, dir)
		if err != nil {
			return err
		}
		e, ok := parent.Child(name)
		if !ok {
			parent.InsertChild(entry.NewFile(name, content))
			return nil
		}
		f, ok := e.(*entry.File)
		if !ok {
			return errNotRegular
		}
		f.SetData(content)
		return nil
	})
	if err != nil {
		return pathErr("write", filename, err)
	}
	fs.changed()
	return nil
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

// Rename moves oldpath to newpath. An existing non-folder at newpath is
// replaced, which is what editors rely on for atomic saves.
func (fs *TreeFS) Rename(oldpath, newpath string) error {
	if !fs.writable {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errReadOnly}
	}
	oldpath, newpath = cleanPath(oldpath), cleanPath(newpath)
	err := fs.tree.Update(func(root *entry.Folder) error {
		if _, err := tree.Lookup(root, oldpath); err != nil {
			return err
		}
		var replaced entry.Entry
		if dst, err := tree.Lookup(root, newpath); err == nil && oldpath != newpath {
			if _, isDir := dst.(*entry.Folder); isDir {
				return entry.ErrExists
			}
			if err := tree.Remove(root, newpath); err != nil {
				return err
			}
			replaced = dst
		}
		if err := tree.Move(root, oldpath, newpath); err != nil {
			// Move fails before mutating anything; put the destination back.
			if replaced != nil {
				dir, _ := path.Split(newpath)
				if perr := tree.Put(root, dir, replaced); perr != nil {
					return errors.Join(err, perr)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: osErr(err)}
	}
	fs.changed()
	return nil
}

// Remove deletes a file, symlink or empty folder.
func (fs *TreeFS) Remove(filename string) error {
	if !fs.writable {
		return &os.PathError{Op: "remove", Path: filename, Err: errReadOnly}
	}
	filename = cleanPath(filename)
	if filename == "/" {
		return &os.PathError{Op: "remove", Path: filename, Err: errRootMutated}
	}
	err := fs.tree.Update(func(root *entry.Folder) error {
		e, err := tree.Lookup(root, filename)
		if err != nil {
			return err
		}
		if f, ok := e.(*entry.Folder); ok && f.HasChildren() {
			return errNotEmpty
		}
		return tree.Remove(root, filename)
	})
	if err != nil {
		return pathErr("remove", filename, err)
	}
	fs.changed()
	return nil
}

func (fs *TreeFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// --- billy.TempFile ---

func (fs *TreeFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *TreeFS) ReadDir(p string) ([]os.FileInfo, error) {
	p = cleanPath(p)

	var infos []os.FileInfo
	err := fs.tree.View(func(root *entry.Folder) error {
		dir, err := tree.LookupFolder(root, p)
		if err != nil {
			return err
		}
		infos = make([]os.FileInfo, 0, dir.ChildrenCount())
		for _, name := range dir.ChildNames() {
			child, _ := dir.Child(name)
			infos = append(infos, fs.fileInfo(name, child))
		}
		return nil
	})
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}
	return infos, nil
}

func (fs *TreeFS) MkdirAll(filename string, perm os.FileMode) error {
	if !fs.writable {
		return &os.PathError{Op: "mkdir", Path: filename, Err: errReadOnly}
	}
	filename = cleanPath(filename)
	err := fs.tree.MkdirAll(filename)
	if err != nil {
		return pathErr("mkdir", filename, err)
	}
	fs.changed()
	return nil
}

// --- billy.Symlink ---

func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	var info os.FileInfo
	err := fs.tree.View(func(root *entry.Folder) error {
		e, err := tree.Lookup(root, filename)
		if err != nil {
			return err
		}
		name := path.Base(filename)
		info = fs.fileInfo(name, e)
		return nil
	})
	if err != nil {
		return nil, pathErr("lstat", filename, err)
	}
	return info, nil
}

func (fs *TreeFS) Symlink(target, link string) error {
	if !fs.writable {
		return &os.LinkError{Op: "symlink", Old: target, New: link, Err: errReadOnly}
	}
	link = cleanPath(link)
	dir, name := path.Split(link)
	err := fs.tree.Create(dir, entry.NewSymlink(name, target))
	if err != nil {
		return &os.LinkError{Op: "symlink", Old: target, New: link, Err: osErr(err)}
	}
	fs.changed()
	return nil
}

func (fs *TreeFS) Readlink(link string) (string, error) {
	link = cleanPath(link)
	var target string
	err := fs.tree.View(func(root *entry.Folder) error {
		e, err := tree.Lookup(root, link)
		if err != nil {
			return err
		}
		s, ok := e.(*entry.Symlink)
		if !ok {
			return errNotSymlink
		}
		target = s.Target()
		return nil
	})
	if err != nil {
		return "", pathErr("readlink", link, err)
	}
	return target, nil
}

// --- billy.Chroot ---

func (fs *TreeFS) Chroot(p string) (billy.Filesystem, error) {
	return chroot.New(fs, p), nil
}

func (fs *TreeFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *TreeFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability | billy.ReadAndWriteCapability | billy.TruncateCapability
	}
	return caps
}

// --- internals ---

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// osErr maps tree and entry sentinels onto the os errors NFS clients expect.
func osErr(err error) error {
	switch {
	case errors.Is(err, entry.ErrNotFound):
		return os.ErrNotExist
	case errors.Is(err, entry.ErrExists):
		return os.ErrExist
	case errors.Is(err, tree.ErrInvalidPath):
		return os.ErrInvalid
	}
	return err
}

func pathErr(op, p string, err error) error {
	return &os.PathError{Op: op, Path: p, Err: osErr(err)}
}

func (fs *TreeFS) fileInfo(name string, e entry.Entry) os.FileInfo {
	fi := &staticFileInfo{name: name, modTime: fs.mountTime}
	switch t := e.(type) {
	case *entry.Folder:
		fi.mode = os.ModeDir | 0o555
		if fs.writable {
			fi.mode = os.ModeDir | 0o755
		}
	case *entry.File:
		fi.size = t.Size()
		fi.mode = 0o444
		if fs.writable {
			fi.mode = 0o644
		}
		if !t.ModTime().IsZero() {
			fi.modTime = t.ModTime()
		}
	case *entry.Symlink:
		fi.size = int64(len(t.Target()))
		fi.mode = os.ModeSymlink | 0o777
	default:
		fi.mode = os.ModeIrregular | 0o444
	}
	return fi
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
)
