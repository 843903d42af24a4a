package entry

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario mirrors the canonical walkthrough: build, overwrite, delete, clone.
func TestFolder_Scenario(t *testing.T) {
	f := NewFolder("root")
	assert.Equal(t, "root", f.Name())
	assert.True(t, f.IsEmpty())

	f.InsertChild(NewFolder("a"))
	assert.Equal(t, 1, f.ChildrenCount())
	assert.True(t, f.HasChildren())

	f.InsertChild(NewFolder("a"))
	assert.Equal(t, 1, f.ChildrenCount())

	f.DeleteChild("a")
	assert.Equal(t, 0, f.ChildrenCount())

	f.DeleteChild("nonexistent")
	assert.Equal(t, 0, f.ChildrenCount())

	g := f.CloneFolder()
	g.InsertChild(NewFolder("x"))
	assert.Equal(t, 0, f.ChildrenCount())
	assert.Equal(t, 1, g.ChildrenCount())
}

func TestFolder_ClonePreservesKind(t *testing.T) {
	f := NewFolder("root")
	f.InsertChild(NewFile("readme", []byte("hello")))
	f.InsertChild(NewSymlink("link", "readme"))
	f.InsertChild(NewFolder("sub"))

	var e Entry = f
	c := e.Clone()
	cf, ok := c.(*Folder)
	require.True(t, ok, "clone of *Folder is %T", c)
	require.NotSame(t, f, cf)

	readme, ok := cf.Child("readme")
	require.True(t, ok)
	assert.IsType(t, &File{}, readme)
	assert.Equal(t, []byte("hello"), readme.(*File).Data())

	link, ok := cf.Child("link")
	require.True(t, ok)
	assert.IsType(t, &Symlink{}, link)
	assert.Equal(t, "readme", link.(*Symlink).Target())

	sub, ok := cf.Child("sub")
	require.True(t, ok)
	assert.IsType(t, &Folder{}, sub)
}

func TestFolder_CloneIndependence(t *testing.T) {
	a := NewFolder("root")
	sub := NewFolder("sub")
	sub.InsertChild(NewFile("data", []byte("v1")))
	a.InsertChild(sub)

	b := a.CloneFolder()

	// Mutate b at every level.
	b.SetName("other")
	b.InsertChild(NewFolder("x"))
	bsub, _ := b.Child("sub")
	bsub.(*Folder).DeleteChild("data")
	bsub.(*Folder).InsertChild(NewFolder("y"))

	assert.Equal(t, "root", a.Name())
	assert.Equal(t, 1, a.ChildrenCount())
	assert.Equal(t, []string{"data"}, sub.ChildNames())

	// And the other direction.
	data, _ := sub.Child("data")
	data.(*File).SetData([]byte("v2"))
	a.DeleteChild("sub")

	assert.Equal(t, 2, b.ChildrenCount())
	assert.Equal(t, []string{"y"}, bsub.(*Folder).ChildNames())
}

func TestFile_CloneOwnsBytes(t *testing.T) {
	src := []byte("abc")
	f := NewFile("f", src)
	src[0] = 'z'
	assert.Equal(t, "abc", string(f.Data()), "NewFile must copy its input")

	c := f.Clone().(*File)
	c.Data()[0] = 'q'
	assert.Equal(t, "abc", string(f.Data()))
	assert.Equal(t, f.ModTime(), c.ModTime())
	assert.Equal(t, int64(3), c.Size())
}

func TestSymlink_CloneIndependence(t *testing.T) {
	s := NewSymlink("l", "target")
	c := s.Clone()
	c.SetName("m")
	assert.Equal(t, "l", s.Name())
	assert.Equal(t, "target", c.(*Symlink).Target())
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	f := NewFolder("root", WithTracer(LogTracer(log.New(&buf, "", 0))))
	f.InsertChild(NewFile("a", nil))
	assert.Equal(t, "adding child \"a\" to folder \"root\"\n", buf.String())
}
