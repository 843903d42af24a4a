package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/store"
	"github.com/agentic-research/arbor/internal/tree"
)

// options holds the flags shared by every subcommand.
type options struct {
	dbPath string
	trace  bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Arbor: a named entry tree kept in SQLite and served over NFS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "Path to the tree database (default ~/.agentic-research/arbor/tree.db)")
	root.PersistentFlags().BoolVar(&o.trace, "trace", false, "Log folder insertions to stderr")

	root.AddCommand(
		newImportCmd(o),
		newExportCmd(o),
		newLsCmd(o),
		newTreeCmd(o),
		newMkdirCmd(o),
		newRmCmd(o),
		newMvCmd(o),
		newPutCmd(o),
		newServeCmd(o),
	)
	return root
}

// db resolves the database path, falling back to the per-user default.
func (o *options) db() (string, error) {
	if o.dbPath != "" {
		return o.dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".agentic-research", "arbor", "tree.db"), nil
}

func (o *options) folderOpts() []entry.Option {
	if !o.trace {
		return nil
	}
	return []entry.Option{entry.WithTracer(entry.LogTracer(log.New(os.Stderr, "arbor: ", 0)))}
}

// load opens the tree stored in the database. A database that does not
// exist yet yields an empty root.
func (o *options) load() (*tree.Tree, error) {
	db, err := o.db()
	if err != nil {
		return nil, err
	}
	root, err := store.Load(db, o.folderOpts()...)
	if errors.Is(err, os.ErrNotExist) {
		root = entry.NewFolder("root", o.folderOpts()...)
	} else if err != nil {
		return nil, err
	}
	return tree.New(root), nil
}

func (o *options) save(t *tree.Tree) error {
	db, err := o.db()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(db), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return t.View(func(root *entry.Folder) error {
		return store.Save(db, root)
	})
}

// mutate loads the tree, applies fn and saves the result.
func (o *options) mutate(fn func(t *tree.Tree) error) error {
	t, err := o.load()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return o.save(t)
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
