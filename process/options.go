package process

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/guseggert/caat/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	loggerName = "caat"

	DefaultPollInterval  = 100 * time.Millisecond
	DefaultAcceptRetries = 3
	DefaultChunkSize     = 1024
)

// defaultLogger is built by a var initializer rather than init so DefaultInvoker sees it.
var defaultLogger = newDefaultLogger()

func newDefaultLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("error constructing default logger: %s", err))
	}
	return logger.Sugar().Named(loggerName)
}

type Option func(i *Invoker)

func WithLogger(l *zap.Logger) Option {
	return func(i *Invoker) {
		i.log = l.Named(loggerName).Sugar()
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(i *Invoker) {
		i.log = i.log.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithPollInterval sets how long each accept or read attempt waits before the invoker
// rechecks the child and the context.
func WithPollInterval(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.pollInterval = d
		}
	}
}

// WithAcceptRetries sets how many empty accept polls happen between child exit checks.
func WithAcceptRetries(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.acceptRetries = n
		}
	}
}

func WithChunkSize(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.chunkSize = n
		}
	}
}

// WithSocketDir sets the directory rendezvous sockets are created in. Ignored on Windows.
func WithSocketDir(dir string) Option {
	return func(i *Invoker) {
		i.socketDir = dir
	}
}

// WithCodec overrides how results are decoded. By default capabilities in results are
// rebuilt as process Caats bound to the same invoker.
func WithCodec(c wire.Codec) Option {
	return func(i *Invoker) {
		i.codec = &c
	}
}

// WithStdout sets where the child's stdout goes. nil discards it.
func WithStdout(w io.Writer) Option {
	return func(i *Invoker) {
		i.stdout = w
	}
}

// WithStderr sets where the child's stderr goes. nil discards it.
func WithStderr(w io.Writer) Option {
	return func(i *Invoker) {
		i.stderr = w
	}
}

func defaultOptions(i *Invoker) {
	i.log = defaultLogger
	i.pollInterval = DefaultPollInterval
	i.acceptRetries = DefaultAcceptRetries
	i.chunkSize = DefaultChunkSize
	i.stdout = os.Stdout
	i.stderr = os.Stderr
}
