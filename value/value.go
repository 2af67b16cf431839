// Package value defines the tagged Value type passed into and returned from caat calls,
// along with conversions to and from native Go types.
package value

import (
	"context"
	"sort"
)

// Kind identifies the variant of a Value. Kind names double as the wire "type" tags.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindString
	KindBoolean
	KindNull
	KindList
	KindMap
	KindCallable
	KindFailure
)

var kindNames = [...]string{
	KindInteger:  "Integer",
	KindFloat:    "Float",
	KindString:   "String",
	KindBoolean:  "Boolean",
	KindNull:     "Null",
	KindList:     "List",
	KindMap:      "Map",
	KindCallable: "CAAT",
	KindFailure:  "Failure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Value is a sealed interface; only the types in this package implement it.
type Value interface {
	Kind() Kind
	String() string
	GoString() string

	sealed()
}

// Caat is a capability that can be invoked with arguments to produce a Value.
// Implementations must be immutable and safe for concurrent use.
type Caat interface {
	// String returns the display name, which is also the wire representation.
	String() string
	Invoke(ctx context.Context, args []Value) Value
}

type Integer int64

func (Integer) Kind() Kind { return KindInteger }
func (Integer) sealed()    {}

type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) sealed()    {}

type String string

func (String) Kind() Kind { return KindString }
func (String) sealed()    {}

type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }
func (Boolean) sealed()    {}

type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) sealed()    {}

// List is an ordered sequence of values. Lists are never modified after construction.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) sealed()    {}

// Map maps string keys to values and carries an optional opaque format tag.
// The tag survives the wire codec but is ignored by Equal.
type Map struct {
	entries map[string]Value
	format  string
}

func (Map) Kind() Kind { return KindMap }
func (Map) sealed()    {}

// NewMap copies entries so the returned Map cannot be changed through the caller's map.
func NewMap(entries map[string]Value, format string) Map {
	m := Map{entries: make(map[string]Value, len(entries)), format: format}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

func (m Map) Len() int { return len(m.entries) }

func (m Map) Format() string { return m.format }

func (m Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Keys returns the keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the entries.
func (m Map) Entries() map[string]Value {
	out := make(map[string]Value, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// WithFormat returns a copy of m carrying the given format tag.
func (m Map) WithFormat(format string) Map {
	return NewMap(m.entries, format)
}

// Callable holds a capability as a first-class value.
type Callable struct {
	Caat Caat
}

func (Callable) Kind() Kind { return KindCallable }
func (Callable) sealed()    {}

// Invoke calls the underlying capability.
func (c Callable) Invoke(ctx context.Context, args ...Value) Value {
	if c.Caat == nil {
		return Failure{Message: "nil capability"}
	}
	return c.Caat.Invoke(ctx, args)
}

// Failure is a protocol-level failure. It is distinct from any error value a callee
// chooses to encode in its own result.
type Failure struct {
	Message string
}

func (Failure) Kind() Kind { return KindFailure }
func (Failure) sealed()    {}

// Equal reports structural equality. Map format tags are ignored.
// Callable and Failure values are never equal to anything, including themselves.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av.entries) != len(bv.entries) {
			return false
		}
		for k, x := range av.entries {
			y, ok := bv.entries[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
