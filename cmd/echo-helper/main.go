// echo-helper is a minimal callee: it returns its first argument as a String.
// Strings come back unchanged and every other value comes back in its display form,
// so calling it with Integer(42) yields String("42").
package main

import (
	"context"

	"github.com/guseggert/caat/callee"
	"github.com/guseggert/caat/value"
)

func main() {
	callee.Main(echo)
}

func echo(_ context.Context, args *callee.Args) value.Value {
	v, ok := args.Front()
	if !ok {
		return value.Failure{Message: "echo-helper: no arguments"}
	}
	if s, ok := v.(value.String); ok {
		return s
	}
	return value.String(v.String())
}
