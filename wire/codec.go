// Package wire implements the self-describing JSON encoding of values.
//
// Every value is wrapped in an envelope naming its variant:
//
//	{"type": "Integer", "value": 42}
//	{"type": "Map", "value": {"k": {"type": "Null", "value": null}}, "format": "csv"}
//	{"type": "CAAT", "value": "echo-helper --upper"}
//
// Plain JSON cannot tell an integer from a float, or a string from a capability
// reference; the envelope carries that information so values round-trip losslessly.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/guseggert/caat/value"
)

var (
	ErrNotObject     = errors.New("not a JSON object")
	ErrMissingType   = errors.New(`missing "type" field`)
	ErrUnknownType   = errors.New("unknown type")
	ErrBadPayload    = errors.New("bad payload")
	ErrNoCaatParser  = errors.New("no capability parser configured")
	ErrTrailingInput = errors.New("trailing data after value")
)

// DecodeError locates a decode failure inside a compound value.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "decoding value: " + e.Err.Error()
	}
	return fmt.Sprintf("decoding value at %s: %s", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Codec decodes wire text. ParseCaat rebuilds capabilities from their display string;
// it is a field rather than an import so that this package stays independent of any
// invocation strategy.
type Codec struct {
	ParseCaat func(s string) (value.Caat, error)
}

const (
	nanText    = "NaN"
	posInfText = "+Inf"
	negInfText = "-Inf"
)

// Encode renders v in the wire format. Encoding never fails: a nil Value is encoded
// as Null and non-finite floats are carried as strings.
func Encode(v value.Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// EncodeList renders vs as a JSON array of encoded values.
func EncodeList(vs []value.Value) []byte {
	var buf bytes.Buffer
	writeList(&buf, vs)
	return buf.Bytes()
}

func writeList(buf *bytes.Buffer, vs []value.Value) {
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeValue(buf, v)
	}
	buf.WriteByte(']')
}

func writeValue(buf *bytes.Buffer, v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	buf.WriteString(`{"type": `)
	writeString(buf, v.Kind().String())
	buf.WriteString(`, "value": `)

	var format string
	switch val := v.(type) {
	case value.Integer:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case value.Float:
		writeFloat(buf, float64(val))
	case value.String:
		writeString(buf, string(val))
	case value.Boolean:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case value.Null:
		buf.WriteString("null")
	case value.List:
		writeList(buf, val)
	case value.Map:
		buf.WriteByte('{')
		for i, k := range val.Keys() {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeString(buf, k)
			buf.WriteString(": ")
			elem, _ := val.Get(k)
			writeValue(buf, elem)
		}
		buf.WriteByte('}')
		format = val.Format()
	case value.Callable:
		writeString(buf, val.String())
	case value.Failure:
		writeString(buf, val.Message)
	}

	if format != "" {
		buf.WriteString(`, "format": `)
		writeString(buf, format)
	}
	buf.WriteByte('}')
}

func writeFloat(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsNaN(f):
		writeString(buf, nanText)
	case math.IsInf(f, 1):
		writeString(buf, posInfText)
	case math.IsInf(f, -1):
		writeString(buf, negInfText)
	default:
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// writeString writes s as a JSON string literal without HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	// Encode terminates its output with a newline.
	buf.Truncate(buf.Len() - 1)
}

// Decode parses a single encoded value.
func (c Codec) Decode(data []byte) (value.Value, error) {
	raw, err := parse(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return c.fromJSON(raw, "")
}

// DecodeList parses a JSON array of encoded values, failing if any element fails.
func (c Codec) DecodeList(data []byte) ([]value.Value, error) {
	raw, err := parse(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("%w: expected array", ErrBadPayload)}
	}
	return c.decodeElems(arr, "")
}

func parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, ErrTrailingInput
	}
	return raw, nil
}

func (c Codec) decodeElems(arr []any, path string) ([]value.Value, error) {
	out := make([]value.Value, len(arr))
	for i, elem := range arr {
		v, err := c.fromJSON(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c Codec) fromJSON(raw any, path string) (value.Value, error) {
	fail := func(err error) (value.Value, error) {
		return nil, &DecodeError{Path: path, Err: err}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return fail(ErrNotObject)
	}
	typ, ok := obj["type"].(string)
	if !ok {
		return fail(ErrMissingType)
	}
	payload, present := obj["value"]

	switch typ {
	case value.KindInteger.String():
		n, ok := payload.(json.Number)
		if !ok {
			return value.Integer(0), nil
		}
		i, err := n.Int64()
		if err != nil {
			return value.Integer(0), nil
		}
		return value.Integer(i), nil

	case value.KindFloat.String():
		switch p := payload.(type) {
		case json.Number:
			f, err := p.Float64()
			if err != nil {
				return value.Float(0), nil
			}
			return value.Float(f), nil
		case string:
			return value.Float(parseNonFinite(p)), nil
		}
		return value.Float(0), nil

	case value.KindString.String():
		s, _ := payload.(string)
		return value.String(s), nil

	case value.KindBoolean.String():
		b, _ := payload.(bool)
		return value.Boolean(b), nil

	case value.KindFailure.String():
		s, _ := payload.(string)
		return value.Failure{Message: s}, nil

	case value.KindNull.String():
		if !present || payload != nil {
			return fail(fmt.Errorf("%w: Null requires a null payload", ErrBadPayload))
		}
		return value.Null{}, nil

	case value.KindList.String():
		arr, ok := payload.([]any)
		if !ok {
			return fail(fmt.Errorf("%w: List requires an array payload", ErrBadPayload))
		}
		elems, err := c.decodeElems(arr, path)
		if err != nil {
			return nil, err
		}
		return value.List(elems), nil

	case value.KindMap.String():
		m, ok := payload.(map[string]any)
		if !ok {
			return fail(fmt.Errorf("%w: Map requires an object payload", ErrBadPayload))
		}
		entries := make(map[string]value.Value, len(m))
		for k, elem := range m {
			v, err := c.fromJSON(elem, fmt.Sprintf("%s[%q]", path, k))
			if err != nil {
				return nil, err
			}
			entries[k] = v
		}
		format, _ := obj["format"].(string)
		return value.NewMap(entries, format), nil

	case value.KindCallable.String():
		s, ok := payload.(string)
		if !ok {
			return fail(fmt.Errorf("%w: CAAT requires a string payload", ErrBadPayload))
		}
		if c.ParseCaat == nil {
			return fail(ErrNoCaatParser)
		}
		caat, err := c.ParseCaat(s)
		if err != nil {
			return fail(fmt.Errorf("parsing capability %q: %w", s, err))
		}
		return value.Callable{Caat: caat}, nil

	default:
		return fail(fmt.Errorf("%w %q", ErrUnknownType, typ))
	}
}

func parseNonFinite(s string) float64 {
	switch s {
	case nanText:
		return math.NaN()
	case posInfText:
		return math.Inf(1)
	case negInfText:
		return math.Inf(-1)
	}
	return 0
}
