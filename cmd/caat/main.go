package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/guseggert/caat/process"
	"github.com/guseggert/caat/value"
	"github.com/guseggert/caat/wire"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "caat",
		Usage:     "call programs as typed functions",
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log call lifecycle events to stderr.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "call",
				Usage:     "invoke a capability and print its result",
				ArgsUsage: "<capability> [args...]",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "poll-interval",
						Usage:   "How long each accept or read attempt waits before rechecking the callee.",
						Value:   process.DefaultPollInterval,
						EnvVars: []string{"CAAT_POLL_INTERVAL"},
					},
					&cli.StringFlag{
						Name:    "socket-dir",
						Usage:   "The directory to create rendezvous sockets in.",
						EnvVars: []string{"CAAT_SOCKET_DIR"},
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Cancel the call after this long. Zero waits forever.",
					},
					&cli.BoolFlag{
						Name:  "typed",
						Usage: "Parse each argument as JSON instead of passing it as a string.",
					},
					&cli.BoolFlag{
						Name:  "wire",
						Usage: "Print the result in wire format instead of its display form.",
					},
				},
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() == 0 {
						return fmt.Errorf("missing capability")
					}
					caat, err := process.Parse(ctx.Args().First())
					if err != nil {
						return fmt.Errorf("parsing capability: %w", err)
					}

					var args []value.Value
					for _, a := range ctx.Args().Tail() {
						v, err := parseArg(a, ctx.Bool("typed"))
						if err != nil {
							return fmt.Errorf("parsing argument %q: %w", a, err)
						}
						args = append(args, v)
					}

					logger, err := newLogger(ctx.Bool("debug"))
					if err != nil {
						return err
					}
					defer logger.Sync()

					inv := process.NewInvoker(
						process.WithLogger(logger),
						process.WithPollInterval(ctx.Duration("poll-interval")),
						process.WithSocketDir(ctx.String("socket-dir")),
					)

					callCtx := ctx.Context
					if d := ctx.Duration("timeout"); d > 0 {
						var cancel context.CancelFunc
						callCtx, cancel = context.WithTimeout(callCtx, d)
						defer cancel()
					}

					res := inv.Invoke(callCtx, caat, args)
					if err := printValue(ctx.App.Writer, res, ctx.Bool("wire")); err != nil {
						return err
					}
					if msg, ok := value.AsFailure(res); ok {
						return cli.Exit("call failed: "+msg, 1)
					}
					return nil
				},
			},
			{
				Name:      "encode",
				Usage:     "convert plain JSON into wire format",
				ArgsUsage: "[json]",
				Action: func(ctx *cli.Context) error {
					data, err := input(ctx, stdin)
					if err != nil {
						return err
					}
					v, err := parseArg(string(data), true)
					if err != nil {
						return fmt.Errorf("parsing JSON: %w", err)
					}
					return printValue(ctx.App.Writer, v, true)
				},
			},
			{
				Name:      "decode",
				Usage:     "parse a wire value and print it",
				ArgsUsage: "[wire-json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print the debug form, which shows every variant.",
					},
				},
				Action: func(ctx *cli.Context) error {
					data, err := input(ctx, stdin)
					if err != nil {
						return err
					}
					v, err := process.Codec.Decode(data)
					if err != nil {
						return fmt.Errorf("decoding: %w", err)
					}
					if ctx.Bool("verbose") {
						_, err = fmt.Fprintf(ctx.App.Writer, "%#v\n", v)
						return err
					}
					return printValue(ctx.App.Writer, v, false)
				},
			},
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
		return l, nil
	}
	return zap.NewNop(), nil
}

// input is the first argument, or all of stdin when there is none.
func input(ctx *cli.Context, stdin io.Reader) ([]byte, error) {
	if ctx.NArg() > 0 {
		return []byte(ctx.Args().First()), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return bytes.TrimSpace(b), nil
}

// parseArg turns a command-line token into a Value: a String, or with typed set, the
// Value of the plain JSON document it holds.
func parseArg(s string, typed bool) (value.Value, error) {
	if !typed {
		return value.String(s), nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, wire.ErrTrailingInput
	}
	return value.Of(x)
}

func printValue(w io.Writer, v value.Value, wireFormat bool) error {
	var err error
	if wireFormat {
		_, err = fmt.Fprintf(w, "%s\n", wire.Encode(v))
	} else {
		_, err = fmt.Fprintln(w, v.String())
	}
	return err
}
