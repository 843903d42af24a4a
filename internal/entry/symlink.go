package entry

// Symlink is a leaf entry naming another path. Nothing in this package
// resolves the target.
type Symlink struct {
	name   string
	target string
}

func NewSymlink(name, target string) *Symlink {
	return &Symlink{name: name, target: target}
}

func (s *Symlink) Name() string        { return s.name }
func (s *Symlink) SetName(name string) { s.name = name }
func (s *Symlink) Target() string      { return s.target }

func (s *Symlink) Clone() Entry {
	c := *s
	return &c
}

var _ Entry = (*Symlink)(nil)
