package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	ErrWrongVariant = errors.New("wrong variant")
	ErrOutOfRange   = errors.New("value out of range")
)

// ConversionError is returned when a Value cannot be converted into a native Go type.
type ConversionError struct {
	From   Kind
	Target string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s to %s: %s", e.From, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func wrongVariant(v Value, target string) error {
	return &ConversionError{From: kindOf(v), Target: target, Err: ErrWrongVariant}
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Unsigned32 lists the unsigned types that always fit in an int64.
type Unsigned32 interface {
	~uint8 | ~uint16 | ~uint32
}

type Integral interface {
	Signed | Unsigned
}

type Floating interface {
	~float32 | ~float64
}

// FromInt widens any signed integer, or an unsigned integer of at most 32 bits.
// uint and uint64 may not fit in an Integer; convert those with FromUint64.
func FromInt[T Signed | Unsigned32](i T) Value {
	return Integer(int64(i))
}

// FromUint64 converts an unsigned 64-bit integer, failing if it does not fit in an int64.
func FromUint64(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, &ConversionError{From: KindInteger, Target: "Integer", Err: ErrOutOfRange}
	}
	return Integer(int64(u)), nil
}

func FromFloat[T Floating](f T) Value {
	return Float(float64(f))
}

func FromString(s string) Value { return String(s) }

func FromBool(b bool) Value { return Boolean(b) }

// Unit returns Null.
func Unit() Value { return Null{} }

func FromCaat(c Caat) Value { return Callable{Caat: c} }

func ListOf(vs ...Value) Value {
	out := make(List, len(vs))
	copy(out, vs)
	return out
}

// FromSlice converts a homogeneous slice into a List.
func FromSlice[T any](xs []T, conv func(T) Value) Value {
	out := make(List, len(xs))
	for i, x := range xs {
		out[i] = conv(x)
	}
	return out
}

// MapOf builds a Map without a format tag.
func MapOf(entries map[string]Value) Value {
	return NewMap(entries, "")
}

// Of converts a dynamically typed Go value.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case Caat:
		return Callable{Caat: v}, nil
	case int:
		return Integer(v), nil
	case int8:
		return Integer(v), nil
	case int16:
		return Integer(v), nil
	case int32:
		return Integer(v), nil
	case int64:
		return Integer(v), nil
	case uint8:
		return Integer(v), nil
	case uint16:
		return Integer(v), nil
	case uint32:
		return Integer(v), nil
	case uint:
		return FromUint64(uint64(v))
	case uint64:
		return FromUint64(v)
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", v, ErrOutOfRange)
		}
		return Float(f), nil
	case string:
		return String(v), nil
	case bool:
		return Boolean(v), nil
	case []Value:
		return ListOf(v...), nil
	case []any:
		out := make(List, len(v))
		for i, e := range v {
			ev, err := Of(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case []string:
		return FromSlice(v, FromString), nil
	case map[string]Value:
		return MapOf(v), nil
	case map[string]any:
		entries := make(map[string]Value, len(v))
		for k, e := range v {
			ev, err := Of(e)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			entries[k] = ev
		}
		return MapOf(entries), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", x)
	}
}

// AsInt converts an Integer into T, range-checking narrowing targets.
func AsInt[T Integral](v Value) (T, error) {
	var zero T
	target := fmt.Sprintf("%T", zero)
	i, ok := v.(Integer)
	if !ok {
		return zero, wrongVariant(v, target)
	}
	t := T(i)
	if int64(t) != int64(i) || (t < 0) != (i < 0) {
		return zero, &ConversionError{From: KindInteger, Target: target, Err: ErrOutOfRange}
	}
	return t, nil
}

// AsFloat converts a Float into T. Integers are not coerced.
func AsFloat[T Floating](v Value) (T, error) {
	var zero T
	target := fmt.Sprintf("%T", zero)
	f, ok := v.(Float)
	if !ok {
		return zero, wrongVariant(v, target)
	}
	if reflect.TypeOf(zero).Kind() == reflect.Float32 && math.Abs(float64(f)) > math.MaxFloat32 && !math.IsInf(float64(f), 0) {
		return zero, &ConversionError{From: KindFloat, Target: target, Err: ErrOutOfRange}
	}
	return T(f), nil
}

func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", wrongVariant(v, "string")
	}
	return string(s), nil
}

func AsBool(v Value) (bool, error) {
	b, ok := v.(Boolean)
	if !ok {
		return false, wrongVariant(v, "bool")
	}
	return bool(b), nil
}

func AsNull(v Value) error {
	if _, ok := v.(Null); !ok {
		return wrongVariant(v, "null")
	}
	return nil
}

// AsList returns a copy of the list's elements.
func AsList(v Value) ([]Value, error) {
	l, ok := v.(List)
	if !ok {
		return nil, wrongVariant(v, "list")
	}
	out := make([]Value, len(l))
	copy(out, l)
	return out, nil
}

// AsSlice converts a List element-wise.
func AsSlice[T any](v Value, conv func(Value) (T, error)) ([]T, error) {
	l, ok := v.(List)
	if !ok {
		return nil, wrongVariant(v, "list")
	}
	out := make([]T, len(l))
	for i, e := range l {
		t, err := conv(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

func AsMap(v Value) (map[string]Value, error) {
	m, ok := v.(Map)
	if !ok {
		return nil, wrongVariant(v, "map")
	}
	return m.Entries(), nil
}

func AsCaat(v Value) (Caat, error) {
	c, ok := v.(Callable)
	if !ok || c.Caat == nil {
		return nil, wrongVariant(v, "callable")
	}
	return c.Caat, nil
}

// AsFailure reports whether v is a protocol Failure and returns its message.
func AsFailure(v Value) (string, bool) {
	f, ok := v.(Failure)
	return f.Message, ok
}
