// Package tree resolves slash-separated paths across nested entry.Folders and
// provides a lock-guarded handle for sharing one tree between goroutines.
package tree

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/agentic-research/arbor/internal/entry"
)

var (
	ErrNotFolder   = errors.New("not a folder")
	ErrInvalidPath = errors.New("invalid path")

	// SkipDir may be returned by a WalkFunc to skip the current folder's children.
	SkipDir = errors.New("skip this folder")
)

// Split breaks p into its segments. A leading slash is ignored, empty and "."
// segments are dropped. ".." is rejected; entries have no parent pointers.
// The root path ("" or "/") yields no segments.
func Split(p string) ([]string, error) {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%q: %w: parent segments are not supported", p, ErrInvalidPath)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// Join builds a clean absolute path from segments.
func Join(segs ...string) string {
	return path.Clean("/" + strings.Join(segs, "/"))
}

// Lookup resolves p under root.
func Lookup(root *entry.Folder, p string) (entry.Entry, error) {
	segs, err := Split(p)
	if err != nil {
		return nil, err
	}
	return walkSegments(root, segs, p)
}

// LookupFolder resolves p and requires the result to be a folder.
func LookupFolder(root *entry.Folder, p string) (*entry.Folder, error) {
	e, err := Lookup(root, p)
	if err != nil {
		return nil, err
	}
	f, ok := e.(*entry.Folder)
	if !ok {
		return nil, fmt.Errorf("%q: %w", p, ErrNotFolder)
	}
	return f, nil
}

func walkSegments(root *entry.Folder, segs []string, p string) (entry.Entry, error) {
	var cur entry.Entry = root
	for i, s := range segs {
		dir, ok := cur.(*entry.Folder)
		if !ok {
			return nil, fmt.Errorf("%q: %s: %w", p, Join(segs[:i]...), ErrNotFolder)
		}
		next, ok := dir.Child(s)
		if !ok {
			return nil, fmt.Errorf("%q: %w", p, entry.ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// MkdirAll returns the folder at p, creating missing folders on the way.
// New folders share the tracer of the folder they are inserted into.
func MkdirAll(root *entry.Folder, p string) (*entry.Folder, error) {
	segs, err := Split(p)
	if err != nil {
		return nil, err
	}
	cur := root
	for i, s := range segs {
		next, ok := cur.Child(s)
		if !ok {
			nf := entry.NewFolder(s, entry.WithTracer(cur.Tracer()))
			cur.InsertChild(nf)
			cur = nf
			continue
		}
		nf, ok := next.(*entry.Folder)
		if !ok {
			return nil, fmt.Errorf("mkdir %q: %s: %w", p, Join(segs[:i+1]...), ErrNotFolder)
		}
		cur = nf
	}
	return cur, nil
}

// Put inserts e into the existing folder at dir. A child with the same name
// is replaced.
func Put(root *entry.Folder, dir string, e entry.Entry) error {
	parent, err := LookupFolder(root, dir)
	if err != nil {
		return err
	}
	parent.InsertChild(e)
	return nil
}

// splitParent resolves the folder holding p and returns it with p's base name.
func splitParent(root *entry.Folder, p string) (*entry.Folder, string, error) {
	segs, err := Split(p)
	if err != nil {
		return nil, "", err
	}
	if len(segs) == 0 {
		return nil, "", fmt.Errorf("%q: %w: the root has no parent", p, ErrInvalidPath)
	}
	pe, err := walkSegments(root, segs[:len(segs)-1], p)
	if err != nil {
		return nil, "", err
	}
	parent, ok := pe.(*entry.Folder)
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", p, ErrNotFolder)
	}
	return parent, segs[len(segs)-1], nil
}

// Remove deletes the entry at p along with its subtree.
func Remove(root *entry.Folder, p string) error {
	parent, name, err := splitParent(root, p)
	if err != nil {
		return err
	}
	if !parent.DeleteChild(name) {
		return fmt.Errorf("remove %q: %w", p, entry.ErrNotFound)
	}
	return nil
}

// Move detaches the entry at from and inserts it at to, renaming it to the
// last segment of to. The destination folder must exist and to must be free.
// A folder cannot be moved into its own subtree.
func Move(root *entry.Folder, from, to string) error {
	fromSegs, err := Split(from)
	if err != nil {
		return err
	}
	toSegs, err := Split(to)
	if err != nil {
		return err
	}
	if len(fromSegs) == 0 || len(toSegs) == 0 {
		return fmt.Errorf("move %q to %q: %w: cannot move the root", from, to, ErrInvalidPath)
	}
	src, srcName, err := splitParent(root, from)
	if err != nil {
		return err
	}
	e, ok := src.Child(srcName)
	if !ok {
		return fmt.Errorf("move %q: %w", from, entry.ErrNotFound)
	}
	if hasPrefix(toSegs, fromSegs) {
		if len(toSegs) == len(fromSegs) {
			return nil
		}
		return fmt.Errorf("move %q to %q: %w: destination is inside source", from, to, ErrInvalidPath)
	}
	dst, dstName, err := splitParent(root, to)
	if err != nil {
		return err
	}

	if src == dst {
		return src.RenameChild(srcName, dstName)
	}
	if _, taken := dst.Child(dstName); taken {
		return fmt.Errorf("move %q to %q: %w", from, to, entry.ErrExists)
	}
	src.DeleteChild(srcName)
	e.SetName(dstName)
	dst.InsertChild(e)
	return nil
}

func hasPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}

// WalkFunc is called for every entry visited by Walk, with its absolute path.
type WalkFunc func(p string, e entry.Entry) error

// Walk visits root and its subtree depth-first, children in key order.
// Returning SkipDir for a folder skips its children; any other error stops
// the walk and is returned.
func Walk(root *entry.Folder, fn WalkFunc) error {
	err := walk("/", root, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(p string, e entry.Entry, fn WalkFunc) error {
	if err := fn(p, e); err != nil {
		return err
	}
	f, ok := e.(*entry.Folder)
	if !ok {
		return nil
	}
	for _, name := range f.ChildNames() {
		child, _ := f.Child(name)
		cp := strings.TrimSuffix(p, "/") + "/" + name
		if err := walk(cp, child, fn); err != nil {
			if errors.Is(err, SkipDir) {
				continue
			}
			return err
		}
	}
	return nil
}
