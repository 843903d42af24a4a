package entry

import (
	"fmt"
	"sort"
)

// Folder is an Entry that exclusively owns a set of uniquely named children.
// Children are keyed by their name at the time of insertion.
//
// The zero value is an empty, unnamed folder with a no-op tracer.
// A Folder has no internal synchronization. Callers sharing a tree between
// goroutines must serialize writers themselves (see internal/tree.Tree).
type Folder struct {
	name     string
	children map[string]Entry
	tracer   Tracer
}

// NewFolder returns an empty folder with the given name.
func NewFolder(name string, opts ...Option) *Folder {
	f := &Folder{
		name:     name,
		children: make(map[string]Entry),
		tracer:   nopTracer{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Entry.
func (f *Folder) Name() string {
	return f.name
}

// SetName implements Entry. It changes only the folder's own identifier; a
// parent that already holds this folder keeps its old key. Use the parent's
// RenameChild to rename an inserted folder.
func (f *Folder) SetName(name string) {
	f.name = name
}

// Clone implements Entry with a deep copy of the whole subtree.
func (f *Folder) Clone() Entry {
	return f.CloneFolder()
}

// CloneFolder is Clone without the interface conversion.
func (f *Folder) CloneFolder() *Folder {
	c := &Folder{
		name:     f.name,
		children: make(map[string]Entry, len(f.children)),
		tracer:   f.tracer,
	}
	for k, child := range f.children {
		c.children[k] = child.Clone()
	}
	return c
}

// Tracer returns the tracer this folder reports to. Folders created on its
// behalf (e.g. by path helpers) should share it.
func (f *Folder) Tracer() Tracer {
	if f.tracer == nil {
		return nopTracer{}
	}
	return f.tracer
}

func (f *Folder) IsEmpty() bool {
	return len(f.children) == 0
}

func (f *Folder) HasChildren() bool {
	return !f.IsEmpty()
}

// ChildrenCount returns the number of direct children.
func (f *Folder) ChildrenCount() int {
	return len(f.children)
}

// InsertChild stores child under child.Name(). An existing child with the
// same name is replaced and its subtree dropped (last write wins).
// The folder takes ownership; callers must not keep mutating child.
func (f *Folder) InsertChild(child Entry) {
	f.Tracer().Tracef("adding child %q to folder %q", child.Name(), f.name)
	if f.children == nil {
		f.children = make(map[string]Entry)
	}
	f.children[child.Name()] = child
}

// DeleteChild removes the child keyed by name. Deleting an absent name is a
// no-op. Reports whether a child was removed.
func (f *Folder) DeleteChild(name string) bool {
	if _, ok := f.children[name]; !ok {
		return false
	}
	delete(f.children, name)
	return true
}

// Child returns the child stored under name.
//
// The returned entry is still owned by f. Calling SetName on it directly
// leaves f's key stale; rename through RenameChild instead, or call Reindex
// afterwards.
func (f *Folder) Child(name string) (Entry, bool) {
	c, ok := f.children[name]
	return c, ok
}

// ChildNames returns the child keys in sorted order.
func (f *Folder) ChildNames() []string {
	names := make([]string, 0, len(f.children))
	for k := range f.children {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Children returns the children ordered by key.
func (f *Folder) Children() []Entry {
	names := f.ChildNames()
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = f.children[n]
	}
	return out
}

// RenameChild re-keys the child stored under oldName and sets its name to
// newName, keeping key and reported name in step.
func (f *Folder) RenameChild(oldName, newName string) error {
	child, ok := f.children[oldName]
	if !ok {
		return fmt.Errorf("rename %q in %q: %w", oldName, f.name, ErrNotFound)
	}
	if oldName == newName {
		return nil
	}
	if _, taken := f.children[newName]; taken {
		return fmt.Errorf("rename %q to %q in %q: %w", oldName, newName, f.name, ErrExists)
	}
	delete(f.children, oldName)
	child.SetName(newName)
	f.children[newName] = child
	return nil
}

// Reindex re-keys every direct child whose reported name no longer matches
// its key, e.g. after a direct SetName on a stored child. Collisions resolve
// like InsertChild: the last child moved wins. Returns the number of children
// re-keyed.
func (f *Folder) Reindex() int {
	var stale []string
	for k, c := range f.children {
		if c.Name() != k {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	// Detach every stale child first so a rename cycle (a->b, b->a) cannot
	// overwrite a child that has not been moved yet.
	moved := make([]Entry, len(stale))
	for i, k := range stale {
		moved[i] = f.children[k]
		delete(f.children, k)
	}
	for _, c := range moved {
		f.children[c.Name()] = c
	}
	return len(stale)
}

var _ Entry = (*Folder)(nil)
