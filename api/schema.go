package api

// DocumentVersion is written into every exported document.
const DocumentVersion = "v1alpha1"

// Node kinds understood by the built-in codecs.
const (
	KindFolder  = "folder"
	KindFile    = "file"
	KindSymlink = "symlink"
)

// Document is the portable JSON form of an arbor tree.
type Document struct {
	// Version of the document format.
	Version string `json:"version"`
	// Root folder of the tree.
	Root Node `json:"root"`
}

// Node is one entry of a Document. Which fields are set depends on Kind.
type Node struct {
	// Name of the entry within its parent.
	Name string `json:"name"`
	// Kind selects the concrete entry type (folder, file, symlink).
	Kind string `json:"kind"`
	// Data is the content of a file. Encoded as base64 by encoding/json.
	Data []byte `json:"data,omitempty"`
	// Target is the destination of a symlink.
	Target string `json:"target,omitempty"`
	// Children of a folder.
	Children []Node `json:"children,omitempty"`
}
