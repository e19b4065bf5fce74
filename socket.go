package contactsync

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const staleDialTimeout = 500 * time.Millisecond

// DefaultSocketPath returns <tmp>/<app>-opensync-<uid>. The uid part is 0
// on platforms without user ids.
func DefaultSocketPath(app string) string {
	if app == "" {
		app = DefaultAppName
	}
	uid := os.Getuid()
	if uid < 0 {
		uid = 0
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-opensync-%d", app, uid))
}

// listenUnix binds path, replacing a stale socket file. A socket that still
// accepts connections belongs to a live instance and yields ErrSocketInUse.
func listenUnix(path string) (net.Listener, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	// owner only
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}

	return ln, nil
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", path, staleDialTimeout)
	if err == nil {
		conn.Close()
		return fmt.Errorf("%s: %w", path, ErrSocketInUse)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

func removeSocket(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
