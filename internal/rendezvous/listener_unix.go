//go:build !windows

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
)

// NewPath returns a fresh endpoint path under dir, or under the temp directory if dir is empty.
func NewPath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, endpointName())
}

// Listener is a bound rendezvous endpoint.
type Listener struct {
	path string
	ln   *net.UnixListener

	removeOnce sync.Once
	removeErr  error
}

// Listen binds a unix socket at path.
func Listen(path string) (*Listener, error) {
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", path, err)
	}
	// Remove unlinks the path itself so that it happens exactly once.
	ln.SetUnlinkOnClose(false)
	return &Listener{path: path, ln: ln}, nil
}

func (l *Listener) Path() string { return l.path }

// Accept waits up to wait for a peer. It returns ErrWouldBlock if none connected.
func (l *Listener) Accept(wait time.Duration) (net.Conn, error) {
	if wait < minWait {
		wait = minWait
	}
	if err := l.ln.SetDeadline(time.Now().Add(wait)); err != nil {
		return nil, fmt.Errorf("setting accept deadline: %w", err)
	}
	conn, err := l.ln.Accept()
	if err != nil {
		if IsTimeout(err) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("accepting on %s: %w", l.path, err)
	}
	return conn, nil
}

// Remove closes the listener and deletes the socket file. Only the first call does any work.
func (l *Listener) Remove() error {
	l.removeOnce.Do(func() {
		l.removeErr = multierr.Append(l.ln.Close(), Remove(l.path))
	})
	return l.removeErr
}

// Remove deletes the endpoint at path if it exists.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

func retryable(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
