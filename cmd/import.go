package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/entry"
	"github.com/agentic-research/arbor/internal/ingest"
	"github.com/agentic-research/arbor/internal/tree"
)

func newImportCmd(o *options) *cobra.Command {
	var (
		selector string
		name     string
		at       string
		document bool
	)
	c := &cobra.Command{
		Use:   "import [file.json]",
		Short: "Import a JSON file into the tree",
		Long: `Import a JSON file as a folder named --name inside the folder at --at.
Objects and arrays become folders, scalars become files.

With --document the file must be the output of "arbor export" and replaces
the whole tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if document {
				var doc api.Document
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("decode document %s: %w", args[0], err)
				}
				if doc.Version != api.DocumentVersion {
					return fmt.Errorf("document version %q, want %q", doc.Version, api.DocumentVersion)
				}
				root, err := ingest.FromDocument(&doc, o.folderOpts()...)
				if err != nil {
					return err
				}
				return o.save(tree.New(root))
			}

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
				return fmt.Errorf("import name %q: %w: must be a single path segment", name, tree.ErrInvalidPath)
			}
			imported, err := ingest.FromJSON(name, data, selector, o.folderOpts()...)
			if err != nil {
				return err
			}
			err = o.mutate(func(t *tree.Tree) error {
				return t.Update(func(root *entry.Folder) error {
					dir, err := tree.MkdirAll(root, at)
					if err != nil {
						return err
					}
					dir.InsertChild(imported)
					return nil
				})
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", args[0], tree.Join(at, name))
			return nil
		},
	}
	c.Flags().StringVar(&selector, "selector", "", "JSONPath selecting the part of the document to import")
	c.Flags().StringVar(&name, "name", "", "Name of the imported folder (default: file name without extension)")
	c.Flags().StringVar(&at, "at", "/", "Folder to import into, created if missing")
	c.Flags().BoolVar(&document, "document", false, "Treat the file as an exported document and replace the tree")
	return c
}

func newExportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write a folder as a JSON document to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.load()
			if err != nil {
				return err
			}
			var doc *api.Document
			err = t.View(func(root *entry.Folder) error {
				dir, err := tree.LookupFolder(root, pathArg(args))
				if err != nil {
					return err
				}
				doc, err = ingest.ToDocument(dir)
				return err
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}
