package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/arbor/internal/nfsmount"
)

func newServeCmd(o *options) *cobra.Command {
	var (
		mountPoint string
		listen     string
		writable   bool
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "Export the tree over NFSv3",
		Long: `Export the tree over NFSv3 until interrupted.

With --mount the export is also mounted at the given directory (requires
sudo). With --writable, changes made through the mount are saved back to the
database on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.load()
			if err != nil {
				return err
			}

			fs := nfsmount.NewTreeFS(t)
			fs.SetWritable(writable)
			var dirty atomic.Bool
			fs.OnChange(func() { dirty.Store(true) })

			srv, err := nfsmount.NewServer(fs, listen)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Serving NFS on port %d (writable=%v)\n", srv.Port(), writable)

			mounted := false
			if mountPoint != "" {
				if err := os.MkdirAll(mountPoint, 0o755); err != nil {
					_ = srv.Close()
					return fmt.Errorf("create mountpoint: %w", err)
				}
				if err := nfsmount.Mount(srv.Port(), mountPoint, writable); err != nil {
					_ = srv.Close()
					return err
				}
				mounted = true
				fmt.Fprintf(out, "Mounted at %s\n", mountPoint)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			if mounted {
				if err := nfsmount.Unmount(mountPoint); err != nil {
					log.Printf("serve: %v", err)
				}
			}
			if err := srv.Close(); err != nil {
				log.Printf("serve: close: %v", err)
			}

			if !dirty.Load() {
				return nil
			}
			if err := o.save(t); err != nil {
				return fmt.Errorf("save changes: %w", err)
			}
			fmt.Fprintln(out, "Saved changes")
			return nil
		},
	}
	c.Flags().StringVar(&mountPoint, "mount", "", "Also mount the export at this directory")
	c.Flags().StringVar(&listen, "listen", "", "Address to listen on (default: an ephemeral localhost port)")
	c.Flags().BoolVar(&writable, "writable", false, "Allow changes through the export")
	return c
}
