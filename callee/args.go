package callee

import "github.com/guseggert/caat/value"

// Args is the recovered argument sequence, consumable from either end.
type Args struct {
	vals []value.Value
	head int
	tail int
}

func NewArgs(vals []value.Value) *Args {
	return &Args{vals: vals, tail: len(vals)}
}

func (a *Args) Len() int { return a.tail - a.head }

func (a *Args) Front() (value.Value, bool) {
	if a.Len() == 0 {
		return nil, false
	}
	return a.vals[a.head], true
}

func (a *Args) PopFront() (value.Value, bool) {
	v, ok := a.Front()
	if ok {
		a.head++
	}
	return v, ok
}

func (a *Args) Back() (value.Value, bool) {
	if a.Len() == 0 {
		return nil, false
	}
	return a.vals[a.tail-1], true
}

func (a *Args) PopBack() (value.Value, bool) {
	v, ok := a.Back()
	if ok {
		a.tail--
	}
	return v, ok
}

// Skip drops up to n values from the front.
func (a *Args) Skip(n int) {
	if n > a.Len() {
		n = a.Len()
	}
	if n > 0 {
		a.head += n
	}
}

// SkipBack drops up to n values from the back.
func (a *Args) SkipBack(n int) {
	if n > a.Len() {
		n = a.Len()
	}
	if n > 0 {
		a.tail -= n
	}
}

// Remaining returns a copy of the unconsumed values in order.
func (a *Args) Remaining() []value.Value {
	return append([]value.Value(nil), a.vals[a.head:a.tail]...)
}
