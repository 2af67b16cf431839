package value

import "context"

// Func is an in-process capability backed by a Go function.
// Its display name is what the wire codec transmits, so a Func sent to another process
// is received as whatever strategy the receiver's codec builds from that name.
type Func struct {
	name string
	fn   func(ctx context.Context, args []Value) Value
}

func NewFunc(name string, fn func(ctx context.Context, args []Value) Value) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) String() string { return f.name }

func (f *Func) Invoke(ctx context.Context, args []Value) Value {
	if f.fn == nil {
		return Failure{Message: "nil function " + f.name}
	}
	return f.fn(ctx, args)
}
