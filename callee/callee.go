// Package callee is the runtime for programs invoked through a process capability.
//
// A callee reads its launch context once, recovers its arguments, computes a Value and
// sends it back over the caller's rendezvous endpoint:
//
//	func main() {
//		callee.Main(func(ctx context.Context, args *callee.Args) value.Value {
//			v, _ := args.PopFront()
//			return v
//		})
//	}
//
// Run outside of a call (no CAAT_SOCKET), a callee still works: arguments fall back to the
// full command line as Strings (program name first), and returning a value just exits cleanly.
package callee

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/guseggert/caat/internal/rendezvous"
	"github.com/guseggert/caat/process"
	"github.com/guseggert/caat/value"
	"github.com/guseggert/caat/wire"
	"go.uber.org/zap"
)

const (
	ArgsEnv   = process.ArgsEnv
	SocketEnv = process.SocketEnv

	// DefaultDialTimeout bounds delivery when the caller's context has no deadline.
	DefaultDialTimeout = 30 * time.Second
)

var defaultLogger = newDefaultLogger()

func newDefaultLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("error constructing default logger: %s", err))
	}
	return logger.Sugar().Named("caat_callee")
}

// Context is the launch context of a callee, read once at startup.
type Context struct {
	// ArgsJSON is the wire-encoded argument list, valid when HasArgs is set.
	ArgsJSON string
	HasArgs  bool
	// Socket is the rendezvous address. Empty when not launched by a caller.
	Socket string
	// RawArgs are the command-line tokens, starting with the program name.
	RawArgs []string

	Codec wire.Codec
	log   *zap.SugaredLogger
}

func FromEnv() *Context {
	return FromLookup(os.LookupEnv, os.Args)
}

// FromLookup builds a Context from an environment lookup function and raw tokens.
func FromLookup(lookup func(string) (string, bool), raw []string) *Context {
	c := &Context{
		RawArgs: append([]string(nil), raw...),
		Codec:   process.Codec,
		log:     defaultLogger,
	}
	c.ArgsJSON, c.HasArgs = lookup(ArgsEnv)
	c.Socket, _ = lookup(SocketEnv)
	return c
}

func (c *Context) WithLogger(l *zap.Logger) *Context {
	cp := *c
	cp.log = l.Sugar().Named("caat_callee")
	return &cp
}

// Args recovers the argument sequence: the decoded argument list when the caller provided
// one, otherwise each raw token as a String.
func (c *Context) Args() (*Args, error) {
	if !c.HasArgs {
		vals := make([]value.Value, len(c.RawArgs))
		for i, s := range c.RawArgs {
			vals[i] = value.String(s)
		}
		return NewArgs(vals), nil
	}
	vals, err := c.Codec.DecodeList([]byte(c.ArgsJSON))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ArgsEnv, err)
	}
	return NewArgs(vals), nil
}

// Deliver sends v to the caller and closes the connection, which ends the message.
func (c *Context) Deliver(ctx context.Context, v value.Value) error {
	if c.Socket == "" {
		return fmt.Errorf("%s is not set", SocketEnv)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	conn, err := rendezvous.Dial(ctx, c.Socket, rendezvous.DefaultBackoff)
	if err != nil {
		return err
	}
	defer conn.Close()

	data := wire.Encode(v)
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	c.log.Debugw("delivered result", "socket", c.Socket, "bytes", len(data))
	return nil
}

// Return delivers v and exits the process. Without a socket it exits 0 silently. If
// delivery fails the process exits 1, which the caller sees as Integer(1).
func (c *Context) Return(v value.Value) {
	os.Exit(c.returnCode(context.Background(), v))
}

func (c *Context) returnCode(ctx context.Context, v value.Value) int {
	if c.Socket == "" {
		return 0
	}
	if v == nil {
		v = value.Null{}
	}
	if err := c.Deliver(ctx, v); err != nil {
		c.log.Errorw("delivering result", "error", err)
		return 1
	}
	return 0
}

// Return delivers v using the process's launch context and exits.
func Return(v value.Value) {
	FromEnv().Return(v)
}

// Main runs a whole callee: recover arguments, call fn, deliver its result, exit.
// Undecodable arguments are reported to the caller as a Failure without calling fn.
func Main(fn func(ctx context.Context, args *Args) value.Value) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := FromEnv().run(ctx, fn)
	stop()
	os.Exit(code)
}

func (c *Context) run(ctx context.Context, fn func(ctx context.Context, args *Args) value.Value) int {
	var v value.Value
	args, err := c.Args()
	if err != nil {
		v = value.Failure{Message: "bad arguments: " + err.Error()}
	} else {
		v = fn(ctx, args)
	}
	return c.returnCode(ctx, v)
}
