package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/guseggert/caat/internal/rendezvous"
	"github.com/guseggert/caat/value"
	"github.com/guseggert/caat/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Invoker runs calls against process capabilities. An Invoker holds only configuration,
// so one can serve any number of concurrent calls.
type Invoker struct {
	log           *zap.SugaredLogger
	pollInterval  time.Duration
	acceptRetries int
	chunkSize     int
	socketDir     string
	codec         *wire.Codec
	stdout        io.Writer
	stderr        io.Writer
}

// DefaultInvoker is used by Caats that were not given an invoker.
var DefaultInvoker = NewInvoker()

func NewInvoker(opts ...Option) *Invoker {
	i := &Invoker{}
	defaultOptions(i)
	for _, o := range opts {
		o(i)
	}
	return i
}

// decoder returns the codec for responses. Capabilities found in a response are bound to i
// so calling them inherits this invoker's configuration.
func (i *Invoker) decoder() wire.Codec {
	if i.codec != nil {
		return *i.codec
	}
	return wire.Codec{ParseCaat: func(s string) (value.Caat, error) {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		return c.WithInvoker(i), nil
	}}
}

// Invoke runs c once with args and returns its result. Every failure is reported as a
// value.Failure or, when the child exits without answering, its exit code.
func (i *Invoker) Invoke(ctx context.Context, c *Caat, args []value.Value) value.Value {
	if c == nil || c.name == "" {
		return value.Failure{Message: ErrEmptyCommand.Error()}
	}
	r := &call{
		inv:  i,
		caat: c,
		path: rendezvous.NewPath(i.socketDir),
	}
	r.log = i.log.Named("call").With("caat", c.String(), "socket", r.path)
	return r.run(ctx, args)
}

type call struct {
	inv  *Invoker
	caat *Caat
	path string
	log  *zap.SugaredLogger

	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
}

func (r *call) run(ctx context.Context, args []value.Value) value.Value {
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}

	outgoing := make([]value.Value, 0, len(r.caat.args)+len(args))
	for _, a := range r.caat.args {
		outgoing = append(outgoing, value.String(a))
	}
	outgoing = append(outgoing, args...)

	argv := append([]string(nil), r.caat.args...)
	for _, a := range args {
		argv = append(argv, renderArg(a))
	}

	cmd := exec.Command(r.caat.name, argv...)
	cmd.Env = append(os.Environ(),
		ArgsEnv+"="+string(wire.EncodeList(outgoing)),
		SocketEnv+"="+r.path,
	)
	cmd.Stdout = r.inv.stdout
	cmd.Stderr = r.inv.stderr
	if err := cmd.Start(); err != nil {
		r.log.Debugw("spawn failed", "error", err)
		return failure(fmt.Errorf("starting %s: %w", r.caat.name, err))
	}
	r.cmd = cmd
	r.log = r.log.With("pid", cmd.Process.Pid)
	r.log.Debug("spawned")

	r.exited = make(chan struct{})
	go func() {
		r.waitErr = cmd.Wait()
		close(r.exited)
	}()

	ln, err := rendezvous.Listen(r.path)
	if err != nil {
		r.log.Debugw("bind failed", "error", err)
		err = multierr.Append(err, rendezvous.Remove(r.path))
		r.kill()
		return failure(err)
	}
	defer func() {
		if err := ln.Remove(); err != nil {
			r.log.Debugw("removing endpoint", "error", err)
		}
	}()

	conn, res := r.accept(ctx, ln)
	if res != nil {
		return res
	}
	defer conn.Close()
	r.log.Debug("callee connected")

	data, res := r.read(ctx, conn)
	if res != nil {
		return res
	}

	select {
	case <-r.exited:
	case <-ctx.Done():
		return r.cancel(ctx.Err())
	}
	conn.Close()

	// A whole message stands whatever the exit status. A truncated one from a child that
	// died is reported as the exit.
	v, err := r.decode(data)
	if err != nil {
		r.log.Debugw("decoding response", "error", err, "bytes", len(data))
		if !r.succeeded() {
			return r.exitValue()
		}
		return value.Failure{Message: "failed to parse response"}
	}
	if !r.succeeded() {
		r.log.Debugw("callee exited unsuccessfully after responding", "error", r.waitErr)
	}
	r.log.Debugw("call complete", "kind", v.Kind())
	return v
}

func (r *call) decode(data []byte) (value.Value, error) {
	return r.inv.decoder().Decode(data)
}

// accept polls the listener until the callee connects. After every acceptRetries empty
// polls it checks whether the child is gone, giving a last-instant connection one more try.
func (r *call) accept(ctx context.Context, ln *rendezvous.Listener) (net.Conn, value.Value) {
	misses := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, r.cancel(err)
		}
		conn, err := ln.Accept(r.inv.pollInterval)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, rendezvous.ErrWouldBlock) {
			r.log.Debugw("accept failed", "error", err)
			r.kill()
			return nil, failure(err)
		}
		misses++
		if misses < r.inv.acceptRetries {
			continue
		}
		misses = 0
		select {
		case <-r.exited:
			if conn, err := ln.Accept(0); err == nil {
				return conn, nil
			}
			r.log.Debugw("callee exited without connecting", "error", r.waitErr)
			return nil, r.exitValue()
		default:
		}
	}
}

// read accumulates chunks until the callee closes its end. A child that dies unsuccessfully
// mid-message discards what was read, unless what it left behind is a whole message.
func (r *call) read(ctx context.Context, conn net.Conn) ([]byte, value.Value) {
	var buf bytes.Buffer
	chunk := make([]byte, r.inv.chunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil, r.cancel(ctx.Err())
		case <-r.exited:
			if !r.succeeded() {
				if v, ok := r.salvage(conn, &buf, chunk); ok {
					return nil, v
				}
				r.log.Debugw("callee exited mid-response", "error", r.waitErr, "read", buf.Len())
				return nil, r.exitValue()
			}
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(r.inv.pollInterval)); err != nil {
			r.kill()
			return nil, failure(fmt.Errorf("setting read deadline: %w", err))
		}
		n, err := conn.Read(chunk)
		buf.Write(chunk[:n])
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return buf.Bytes(), nil
		case rendezvous.IsTimeout(err):
		default:
			r.log.Debugw("read failed", "error", err)
			r.kill()
			return nil, failure(fmt.Errorf("reading response: %w", err))
		}
	}
}

// salvage drains what an exited child left in the connection. It reports a value only if
// the stream reached EOF and holds a decodable message.
func (r *call) salvage(conn net.Conn, buf *bytes.Buffer, chunk []byte) (value.Value, bool) {
	if err := conn.SetReadDeadline(time.Now().Add(r.inv.pollInterval)); err != nil {
		return nil, false
	}
	for {
		n, err := conn.Read(chunk)
		buf.Write(chunk[:n])
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return nil, false
		}
		v, err := r.decode(buf.Bytes())
		if err != nil {
			return nil, false
		}
		return v, true
	}
}

func (r *call) succeeded() bool {
	return r.cmd.ProcessState != nil && r.cmd.ProcessState.Success()
}

// exitValue reports how the child ended: its exit code, or Null if a signal killed it.
func (r *call) exitValue() value.Value {
	state := r.cmd.ProcessState
	if state == nil {
		return failure(fmt.Errorf("waiting for %s: %w", r.caat.name, r.waitErr))
	}
	code := state.ExitCode()
	if code < 0 {
		return value.Null{}
	}
	return value.Integer(code)
}

func (r *call) cancel(err error) value.Value {
	r.log.Debugw("call canceled", "error", err)
	r.kill()
	return canceled(err)
}

// kill stops the child if it is still running and waits for it to be reaped.
func (r *call) kill() {
	select {
	case <-r.exited:
		return
	default:
	}
	if err := r.cmd.Process.Kill(); err != nil {
		r.log.Debugw("killing callee", "error", err)
	}
	<-r.exited
}

// renderArg is the command-line form of a call argument: raw text for a String,
// wire JSON for anything else.
func renderArg(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return string(s)
	}
	return string(wire.Encode(v))
}

func canceled(err error) value.Value {
	return value.Failure{Message: "call canceled: " + err.Error()}
}

func failure(err error) value.Value {
	return value.Failure{Message: err.Error()}
}
