//go:build windows

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// NewPath returns a fresh named pipe path. Pipes live in their own namespace,
// so dir is ignored.
func NewPath(dir string) string {
	return pipePrefix + endpointName()
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// Listener is a bound rendezvous endpoint. winio listeners have no accept deadline,
// so a goroutine accepts in the background and Accept waits on it with a timer.
type Listener struct {
	path    string
	ln      net.Listener
	accepts chan acceptResult
	done    chan struct{}

	removeOnce sync.Once
	removeErr  error
}

// Listen creates a named pipe at path.
func Listen(path string) (*Listener, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", path, err)
	}
	l := &Listener{
		path:    path,
		ln:      ln,
		accepts: make(chan acceptResult),
		done:    make(chan struct{}),
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		select {
		case l.accepts <- acceptResult{conn: conn, err: err}:
		case <-l.done:
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

func (l *Listener) Path() string { return l.path }

// Accept waits up to wait for a peer. It returns ErrWouldBlock if none connected.
func (l *Listener) Accept(wait time.Duration) (net.Conn, error) {
	if wait < minWait {
		wait = minWait
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case res := <-l.accepts:
		if res.err != nil {
			return nil, fmt.Errorf("accepting on %s: %w", l.path, res.err)
		}
		return res.conn, nil
	case <-t.C:
		return nil, ErrWouldBlock
	}
}

// Remove closes the pipe listener, which destroys the pipe. Only the first call does any work.
func (l *Listener) Remove() error {
	l.removeOnce.Do(func() {
		close(l.done)
		l.removeErr = l.ln.Close()
	})
	return l.removeErr
}

// Remove is a no-op for named pipes, which disappear with their last handle.
func Remove(path string) error {
	return nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

func retryable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, winio.ErrTimeout)
}
