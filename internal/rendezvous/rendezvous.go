// Package rendezvous manages the short-lived local endpoint a callee connects back to
// in order to deliver its result.
//
// Each call gets its own endpoint, named from the caller's pid, a per-process sequence
// number, and a random suffix, so concurrent calls from one process never share a name.
// On POSIX the endpoint is a unix socket under the temp directory; on Windows it is a
// named pipe.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrWouldBlock is returned by Accept when no peer connected within the wait.
var ErrWouldBlock = errors.New("rendezvous: no connection pending")

// minWait keeps a bounded accept from failing on an already-expired deadline
// before it looks at the pending queue.
const minWait = time.Millisecond

var seq atomic.Uint64

func endpointName() string {
	return fmt.Sprintf("caat_%d_%d_%s.sock", os.Getpid(), seq.Add(1), uuid.NewString()[:8])
}

// Backoff configures client reconnection attempts.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff retries quickly at first; a callee normally starts before the caller
// has bound its endpoint.
var DefaultBackoff = Backoff{
	Initial:    5 * time.Millisecond,
	Max:        250 * time.Millisecond,
	Multiplier: 2,
}

// Delay returns the wait before retry attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 1 || b.Initial <= 0 {
		return b.Initial
	}
	m := b.Multiplier
	if m < 1 {
		m = 1
	}
	d := float64(b.Initial) * math.Pow(m, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}

// Dial connects to the endpoint at path, retrying while it does not exist yet or
// refuses connections, until ctx is done.
func Dial(ctx context.Context, path string, b Backoff) (net.Conn, error) {
	for attempt := 1; ; attempt++ {
		conn, err := dial(ctx, path)
		if err == nil {
			return conn, nil
		}
		if !retryable(err) {
			return nil, fmt.Errorf("connecting to %s: %w", path, err)
		}
		t := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("connecting to %s: %w (last error: %s)", path, ctx.Err(), err)
		case <-t.C:
		}
	}
}

// IsTimeout reports whether err is a deadline expiry on a connection or listener.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
