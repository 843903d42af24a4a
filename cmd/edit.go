package cmd

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/tree"
)

func kindLetter(e entry.Entry) string {
	switch e.(type) {
	case *entry.Folder:
		return "d"
	case *entry.File:
		return "f"
	case *entry.Symlink:
		return "l"
	default:
		return "?"
	}
}

func printEntry(w io.Writer, name string, e entry.Entry) {
	switch t := e.(type) {
	case *entry.File:
		fmt.Fprintf(w, "%s %8d %s\n", kindLetter(e), t.Size(), name)
	case *entry.Symlink:
		fmt.Fprintf(w, "%s %8s %s -> %s\n", kindLetter(e), "", name, t.Target())
	default:
		fmt.Fprintf(w, "%s %8s %s\n", kindLetter(e), "", name)
	}
}

func newLsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List the children of a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.load()
			if err != nil {
				return err
			}
			p := pathArg(args)
			return t.View(func(root *entry.Folder) error {
				e, err := tree.Lookup(root, p)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				dir, ok := e.(*entry.Folder)
				if !ok {
					printEntry(out, path.Base(p), e)
					return nil
				}
				for _, name := range dir.ChildNames() {
					child, _ := dir.Child(name)
					printEntry(out, name, child)
				}
				return nil
			})
		},
	}
}

func newTreeCmd(o *options) *cobra.Command {
	var depth int
	c := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print a folder and everything below it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return t.View(func(root *entry.Folder) error {
				dir, err := tree.LookupFolder(root, pathArg(args))
				if err != nil {
					return err
				}
				return tree.Walk(dir, func(p string, e entry.Entry) error {
					if p == "/" {
						fmt.Fprintln(out, dir.Name()+"/")
						return nil
					}
					level := strings.Count(p, "/")
					name := path.Base(p)
					switch s := e.(type) {
					case *entry.Folder:
						fmt.Fprintf(out, "%s%s/\n", strings.Repeat("  ", level), name)
						if depth > 0 && level >= depth {
							return tree.SkipDir
						}
					case *entry.Symlink:
						fmt.Fprintf(out, "%s%s -> %s\n", strings.Repeat("  ", level), name, s.Target())
					default:
						fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", level), name)
					}
					return nil
				})
			})
		},
	}
	c.Flags().IntVarP(&depth, "depth", "L", 0, "Descend at most this many levels (0 for no limit)")
	return c
}

func newMkdirCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir [path]",
		Short: "Create a folder and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.mutate(func(t *tree.Tree) error {
				return t.MkdirAll(args[0])
			})
		},
	}
}

func newRmCmd(o *options) *cobra.Command {
	var recursive bool
	c := &cobra.Command{
		Use:   "rm [path]",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.mutate(func(t *tree.Tree) error {
				return t.Update(func(root *entry.Folder) error {
					e, err := tree.Lookup(root, args[0])
					if err != nil {
						return err
					}
					if f, ok := e.(*entry.Folder); ok && f.HasChildren() && !recursive {
						return fmt.Errorf("rm %s: folder not empty (use -r)", args[0])
					}
					return tree.Remove(root, args[0])
				})
			})
		},
	}
	c.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove non-empty folders")
	return c
}

func newMvCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mv [from] [to]",
		Short: "Move or rename an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.mutate(func(t *tree.Tree) error {
				return t.Move(args[0], args[1])
			})
		},
	}
}

func newPutCmd(o *options) *cobra.Command {
	var symlink bool
	c := &cobra.Command{
		Use:   "put [path] [local-file]",
		Short: "Store a local file's content at path",
		Long: `Store a local file's content at path, creating missing parent folders
and replacing any existing entry with the same name.

With --symlink the second argument is stored as a symlink target instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := path.Split(path.Clean("/" + args[0]))
			if name == "" {
				return fmt.Errorf("put %q: %w", args[0], tree.ErrInvalidPath)
			}

			var e entry.Entry
			if symlink {
				e = entry.NewSymlink(name, args[1])
			} else {
				data, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[1], err)
				}
				info, err := os.Stat(args[1])
				if err != nil {
					return err
				}
				f := entry.NewFile(name, data)
				f.SetModTime(info.ModTime())
				e = f
			}

			return o.mutate(func(t *tree.Tree) error {
				if err := t.MkdirAll(dir); err != nil {
					return err
				}
				return t.Put(dir, e)
			})
		},
	}
	c.Flags().BoolVar(&symlink, "symlink", false, "Store the second argument as a symlink target")
	return c
}
