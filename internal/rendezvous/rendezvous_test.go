package rendezvous

import (
	"context"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathUnique(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	var mut sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := NewPath(dir)
			mut.Lock()
			defer mut.Unlock()
			assert.False(t, seen[p], "duplicate path %s", p)
			seen[p] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)

	p := NewPath(dir)
	assert.Contains(t, p, "caat_"+strconv.Itoa(os.Getpid())+"_")
	if runtime.GOOS != "windows" {
		assert.True(t, strings.HasPrefix(p, dir))
	}
}

func TestAcceptWouldBlock(t *testing.T) {
	l, err := Listen(NewPath(""))
	require.NoError(t, err)
	defer l.Remove()

	start := time.Now()
	_, err = l.Accept(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	_, err = l.Accept(0)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestDialAcceptExchange(t *testing.T) {
	l, err := Listen(NewPath(""))
	require.NoError(t, err)
	defer l.Remove()

	errCh := make(chan error, 1)
	go func() {
		conn, err := Dial(context.Background(), l.Path(), DefaultBackoff)
		if err != nil {
			errCh <- err
			return
		}
		_, err = conn.Write([]byte("hello"))
		conn.Close()
		errCh <- err
	}()

	var conn io.ReadCloser
	for conn == nil {
		c, err := l.Accept(50 * time.Millisecond)
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
		conn = c
	}
	defer conn.Close()

	b, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	require.NoError(t, <-errCh)
}

func TestPendingConnectionSurvivesZeroWait(t *testing.T) {
	l, err := Listen(NewPath(""))
	require.NoError(t, err)
	defer l.Remove()

	client, err := Dial(context.Background(), l.Path(), DefaultBackoff)
	require.NoError(t, err)
	defer client.Close()

	var accepted bool
	for i := 0; i < 10 && !accepted; i++ {
		conn, err := l.Accept(0)
		if err == nil {
			conn.Close()
			accepted = true
		}
	}
	assert.True(t, accepted)
}

func TestDialRetriesUntilBound(t *testing.T) {
	path := NewPath("")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	connCh := make(chan error, 1)
	go func() {
		conn, err := Dial(ctx, path, DefaultBackoff)
		if err == nil {
			conn.Close()
		}
		connCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	l, err := Listen(path)
	require.NoError(t, err)
	defer l.Remove()

	for {
		conn, err := l.Accept(50 * time.Millisecond)
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
		conn.Close()
		break
	}
	require.NoError(t, <-connCh)
}

func TestDialGivesUpWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, NewPath(""), DefaultBackoff)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoveOnceAndRebind(t *testing.T) {
	path := NewPath("")
	l, err := Listen(path)
	require.NoError(t, err)

	require.NoError(t, l.Remove())
	require.NoError(t, l.Remove())
	if runtime.GOOS != "windows" {
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	}

	l2, err := Listen(path)
	require.NoError(t, err)
	require.NoError(t, l2.Remove())

	assert.NoError(t, Remove(path))
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 10*time.Millisecond, b.Delay(1))
	assert.Equal(t, 20*time.Millisecond, b.Delay(2))
	assert.Equal(t, 40*time.Millisecond, b.Delay(3))
	assert.Equal(t, 50*time.Millisecond, b.Delay(4))

	flat := Backoff{Initial: 10 * time.Millisecond, Multiplier: 0.5}
	assert.Equal(t, 10*time.Millisecond, flat.Delay(5))
}
