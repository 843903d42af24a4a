// Package entry defines the Entry capability set shared by every node kind
// in an arbor tree, and the Folder container that owns named children.
package entry

import "errors"

var (
	ErrNotFound = errors.New("entry not found")
	ErrExists   = errors.New("entry already exists")
)

// Entry is the capability set every node kind implements to be stored in a
// Folder. Containers hold entries only through this interface.
type Entry interface {
	// Name returns the entry's current identifier.
	Name() string
	// SetName replaces the identifier in place. No validation is performed;
	// collisions with siblings are the container's concern.
	SetName(name string)
	// Clone returns an independently owned copy with identical observable
	// state and the same concrete kind.
	Clone() Entry
}
