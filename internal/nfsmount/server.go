package nfsmount

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server manages the NFS server lifecycle.
type Server struct {
	listener net.Listener
	port     int
	done     chan struct{}
}

// NewServer starts an NFS server on addr backed by fs. An empty addr listens
// on an ephemeral localhost port.
func NewServer(fs billy.Filesystem, addr string) (*Server, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, 4096)

	s := &Server{listener: listener, port: port, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := nfs.Serve(listener, cacheHelper); err != nil {
			log.Printf("nfs serve on :%d stopped: %v", port, err)
		}
	}()
	return s, nil
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Close stops the NFS server and waits for the serve loop to exit.
func (s *Server) Close() error {
	err := s.listener.Close()
	<-s.done
	return err
}

// mountCommand builds the system mount invocation for goos.
func mountCommand(goos string, port int, mountpoint string, writable bool) (*exec.Cmd, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint), nil
}

// unmountCommands lists the unmount invocations to try in order for goos.
// macOS user mounts detach with diskutil; sudo umount is the fallback
// everywhere.
func unmountCommands(goos, mountpoint string) [][]string {
	var cmds [][]string
	if goos == "darwin" {
		cmds = append(cmds, []string{"diskutil", "unmount", mountpoint})
	}
	return append(cmds, []string{"sudo", "umount", mountpoint})
}

// runCombined runs cmd and folds its output into the error on failure.
func runCombined(op string, cmd *exec.Cmd) error {
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", op, strings.Join(cmd.Args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// Mount attaches the export on port at mountpoint. It shells out to the
// system mount tool through sudo.
func Mount(port int, mountpoint string, writable bool) error {
	cmd, err := mountCommand(runtime.GOOS, port, mountpoint, writable)
	if err != nil {
		return err
	}
	return runCombined("mount", cmd)
}

// Unmount detaches mountpoint, trying each platform unmount tool until one
// succeeds. The last failure is returned.
func Unmount(mountpoint string) error {
	var err error
	for _, argv := range unmountCommands(runtime.GOOS, mountpoint) {
		if err = runCombined("unmount", exec.Command(argv[0], argv[1:]...)); err == nil {
			return nil
		}
	}
	return err
}
