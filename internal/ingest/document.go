package ingest

import (
	"errors"
	"fmt"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/entry"
)

var ErrUnsupportedKind = errors.New("unsupported entry kind")

// ToDocument converts a tree to its portable document form. Children are
// emitted in key order and named by key.
func ToDocument(root *entry.Folder) (*api.Document, error) {
	n, err := toNode(root.Name(), root)
	if err != nil {
		return nil, err
	}
	return &api.Document{Version: api.DocumentVersion, Root: n}, nil
}

func toNode(name string, e entry.Entry) (api.Node, error) {
	switch t := e.(type) {
	case *entry.Folder:
		n := api.Node{Name: name, Kind: api.KindFolder}
		for _, k := range t.ChildNames() {
			c, _ := t.Child(k)
			cn, err := toNode(k, c)
			if err != nil {
				return api.Node{}, err
			}
			n.Children = append(n.Children, cn)
		}
		return n, nil
	case *entry.File:
		return api.Node{Name: name, Kind: api.KindFile, Data: t.Data()}, nil
	case *entry.Symlink:
		return api.Node{Name: name, Kind: api.KindSymlink, Target: t.Target()}, nil
	default:
		return api.Node{}, fmt.Errorf("%q (%T): %w", name, e, ErrUnsupportedKind)
	}
}

// FromDocument rebuilds a tree from a document. The root must be a folder.
func FromDocument(doc *api.Document, opts ...entry.Option) (*entry.Folder, error) {
	if doc.Root.Kind != api.KindFolder {
		return nil, fmt.Errorf("root %q is a %q, want folder: %w", doc.Root.Name, doc.Root.Kind, ErrUnsupportedKind)
	}
	e, err := fromNode(doc.Root, opts)
	if err != nil {
		return nil, err
	}
	return e.(*entry.Folder), nil
}

func fromNode(n api.Node, opts []entry.Option) (entry.Entry, error) {
	switch n.Kind {
	case api.KindFolder:
		f := entry.NewFolder(n.Name, opts...)
		for _, cn := range n.Children {
			c, err := fromNode(cn, opts)
			if err != nil {
				return nil, err
			}
			f.InsertChild(c)
		}
		return f, nil
	case api.KindFile:
		return entry.NewFile(n.Name, n.Data), nil
	case api.KindSymlink:
		return entry.NewSymlink(n.Name, n.Target), nil
	default:
		return nil, fmt.Errorf("%q: kind %q: %w", n.Name, n.Kind, ErrUnsupportedKind)
	}
}
