package callee

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/guseggert/caat/internal/rendezvous"
	"github.com/guseggert/caat/value"
	"github.com/guseggert/caat/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFallbackArgsAreRawTokens(t *testing.T) {
	c := FromLookup(lookupMap(nil), []string{"a", "42", "[1]"})
	assert.False(t, c.HasArgs)
	assert.Empty(t, c.Socket)

	args, err := c.Args()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.String("a"), value.String("42"), value.String("[1]")}, args.Remaining())
}

func TestFromEnvFallsBackToCommandLine(t *testing.T) {
	if prev, ok := os.LookupEnv(ArgsEnv); ok {
		require.NoError(t, os.Unsetenv(ArgsEnv))
		t.Cleanup(func() { os.Setenv(ArgsEnv, prev) })
	}

	args, err := FromEnv().Args()
	require.NoError(t, err)
	want := make([]value.Value, len(os.Args))
	for i, s := range os.Args {
		want[i] = value.String(s)
	}
	assert.Equal(t, want, args.Remaining())
}

func TestArgsFromEnv(t *testing.T) {
	blob := wire.EncodeList([]value.Value{value.String("a"), value.Integer(5), value.Unit()})
	c := FromLookup(lookupMap(map[string]string{ArgsEnv: string(blob), SocketEnv: "/tmp/x.sock"}), []string{"ignored"})
	assert.True(t, c.HasArgs)
	assert.Equal(t, "/tmp/x.sock", c.Socket)

	args, err := c.Args()
	require.NoError(t, err)
	require.Equal(t, 3, args.Len())
	v, _ := args.PopFront()
	assert.Equal(t, value.String("a"), v)
	v, _ = args.PopFront()
	assert.Equal(t, value.Integer(5), v)
}

func TestEmptyArgsEnvIsNotFallback(t *testing.T) {
	c := FromLookup(lookupMap(map[string]string{ArgsEnv: "[]"}), []string{"raw"})
	args, err := c.Args()
	require.NoError(t, err)
	assert.Equal(t, 0, args.Len())
}

func TestBadArgs(t *testing.T) {
	c := FromLookup(lookupMap(map[string]string{ArgsEnv: `[{"value": 1}]`}), nil)
	_, err := c.Args()
	assert.ErrorIs(t, err, wire.ErrMissingType)
}

func TestArgsDeque(t *testing.T) {
	a := NewArgs([]value.Value{value.Integer(1), value.Integer(2), value.Integer(3), value.Integer(4), value.Integer(5)})

	v, ok := a.Back()
	assert.True(t, ok)
	assert.Equal(t, value.Integer(5), v)

	v, _ = a.PopBack()
	assert.Equal(t, value.Integer(5), v)
	a.Skip(1)
	v, _ = a.Front()
	assert.Equal(t, value.Integer(2), v)
	a.SkipBack(1)
	assert.Equal(t, []value.Value{value.Integer(2), value.Integer(3)}, a.Remaining())

	a.Skip(10)
	assert.Equal(t, 0, a.Len())
	_, ok = a.PopFront()
	assert.False(t, ok)
	_, ok = a.PopBack()
	assert.False(t, ok)
	a.SkipBack(3)
	assert.Equal(t, 0, a.Len())
}

func TestReturnWithoutSocketIsSilent(t *testing.T) {
	c := FromLookup(lookupMap(nil), nil)
	assert.Equal(t, 0, c.returnCode(context.Background(), value.Integer(1)))
	assert.Error(t, c.Deliver(context.Background(), value.Integer(1)))
}

// serve accepts one connection on a fresh endpoint and returns everything written to it.
func serve(t *testing.T) (string, <-chan []byte) {
	t.Helper()
	l, err := rendezvous.Listen(rendezvous.NewPath(""))
	require.NoError(t, err)
	t.Cleanup(func() { l.Remove() })

	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			conn, err := l.Accept(20 * time.Millisecond)
			if err != nil {
				continue
			}
			b, _ := io.ReadAll(conn)
			conn.Close()
			out <- b
			return
		}
	}()
	return l.Path(), out
}

func TestDeliver(t *testing.T) {
	path, out := serve(t)
	c := FromLookup(lookupMap(map[string]string{SocketEnv: path}), nil)

	v := value.ListOf(value.String("x"), value.Float(1.5))
	require.NoError(t, c.Deliver(context.Background(), v))

	got, err := c.Codec.Decode(<-out)
	require.NoError(t, err)
	assert.True(t, value.Equal(v, got))
}

func TestRunReportsBadArguments(t *testing.T) {
	path, out := serve(t)
	c := FromLookup(lookupMap(map[string]string{ArgsEnv: "not json", SocketEnv: path}), nil)

	called := false
	code := c.run(context.Background(), func(ctx context.Context, args *Args) value.Value {
		called = true
		return value.Unit()
	})
	assert.Equal(t, 0, code)
	assert.False(t, called)

	got, err := c.Codec.Decode(<-out)
	require.NoError(t, err)
	msg, ok := value.AsFailure(got)
	require.True(t, ok)
	assert.Contains(t, msg, "bad arguments: ")
}

func TestRunNilResultIsNull(t *testing.T) {
	path, out := serve(t)
	c := FromLookup(lookupMap(map[string]string{ArgsEnv: "[]", SocketEnv: path}), nil)

	code := c.run(context.Background(), func(ctx context.Context, args *Args) value.Value { return nil })
	assert.Equal(t, 0, code)

	got, err := c.Codec.Decode(<-out)
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, got)
}

func TestDeliverFailureExitsOne(t *testing.T) {
	c := FromLookup(lookupMap(map[string]string{SocketEnv: rendezvous.NewPath("")}), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Equal(t, 1, c.returnCode(ctx, value.Integer(1)))
}
