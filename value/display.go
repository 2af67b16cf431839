package value

import (
	"strconv"
	"strings"
)

// String and GoString render values for diagnostics. Neither is a transport encoding.

func (i Integer) String() string   { return strconv.FormatInt(int64(i), 10) }
func (i Integer) GoString() string { return "Integer(" + i.String() + ")" }

func (f Float) String() string   { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f Float) GoString() string { return "Float(" + f.String() + ")" }

func (s String) String() string   { return strconv.Quote(string(s)) }
func (s String) GoString() string { return "String(" + string(s) + ")" }

func (b Boolean) String() string   { return strconv.FormatBool(bool(b)) }
func (b Boolean) GoString() string { return "Boolean(" + b.String() + ")" }

func (Null) String() string   { return "null" }
func (Null) GoString() string { return "Null" }

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(render(v))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (l List) GoString() string {
	var sb strings.Builder
	sb.WriteString("List(")
	for i, v := range l {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(renderDebug(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (m Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteString(": ")
		sb.WriteString(render(m.entries[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (m Map) GoString() string {
	var sb strings.Builder
	sb.WriteString("Map(")
	for i, k := range m.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteString(": ")
		sb.WriteString(renderDebug(m.entries[k]))
	}
	if m.format != "" {
		sb.WriteString("; format=")
		sb.WriteString(m.format)
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c Callable) String() string {
	if c.Caat == nil {
		return ""
	}
	return c.Caat.String()
}

func (c Callable) GoString() string { return "Function(" + c.String() + ")" }

func (f Failure) String() string   { return "failure: " + f.Message }
func (f Failure) GoString() string { return "Failure(" + f.Message + ")" }

func render(v Value) string {
	if v == nil {
		return "null"
	}
	return v.String()
}

func renderDebug(v Value) string {
	if v == nil {
		return "Null"
	}
	return v.GoString()
}
