package process

import (
	"context"
	"errors"
	"strings"

	"github.com/guseggert/caat/value"
	"github.com/guseggert/caat/wire"
)

const (
	// ArgsEnv carries the wire-encoded argument list into the child.
	ArgsEnv = "CAAT_ARGS"
	// SocketEnv carries the rendezvous address into the child.
	SocketEnv = "CAAT_SOCKET"
)

var ErrEmptyCommand = errors.New("empty command")

// Caat is a capability backed by an external program.
type Caat struct {
	name    string
	args    []string
	invoker *Invoker
}

var _ value.Caat = (*Caat)(nil)

// Parse splits s on whitespace: the first field names the program and the rest are bound
// leading arguments passed on every call.
func Parse(s string) (*Caat, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return New(fields[0], fields[1:]...), nil
}

func MustParse(s string) *Caat {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func New(name string, args ...string) *Caat {
	return &Caat{name: name, args: append([]string(nil), args...)}
}

func (c *Caat) Name() string { return c.name }

// Args returns a copy of the bound arguments.
func (c *Caat) Args() []string { return append([]string(nil), c.args...) }

func (c *Caat) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// WithInvoker returns a copy of c that is invoked through inv.
func (c *Caat) WithInvoker(inv *Invoker) *Caat {
	cp := *c
	cp.invoker = inv
	return &cp
}

func (c *Caat) Invoke(ctx context.Context, args []value.Value) value.Value {
	inv := c.invoker
	if inv == nil {
		inv = DefaultInvoker
	}
	return inv.Invoke(ctx, c, args)
}

// Codec decodes wire values, rebuilding capabilities as process Caats.
var Codec = wire.Codec{ParseCaat: parseCaat}

func parseCaat(s string) (value.Caat, error) {
	c, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return c, nil
}
