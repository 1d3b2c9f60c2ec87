package commands

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ygzhang/sealkit/observability"
)

func newLogger(verbose, quiet bool) observability.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if quiet {
		level = zerolog.ErrorLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
	return zlogLogger{zl: zl}
}

// zlogLogger adapts zerolog to the library's logging hook.
type zlogLogger struct{ zl zerolog.Logger }

func (l zlogLogger) Debug(msg string, fields ...observability.Field) { emit(l.zl.Debug(), msg, fields) }
func (l zlogLogger) Info(msg string, fields ...observability.Field)  { emit(l.zl.Info(), msg, fields) }
func (l zlogLogger) Warn(msg string, fields ...observability.Field)  { emit(l.zl.Warn(), msg, fields) }
func (l zlogLogger) Error(msg string, fields ...observability.Field) { emit(l.zl.Error(), msg, fields) }

func (l zlogLogger) With(fields ...observability.Field) observability.Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key(), f.Value())
	}
	return zlogLogger{zl: ctx.Logger()}
}

func emit(evt *zerolog.Event, msg string, fields []observability.Field) {
	for _, f := range fields {
		evt = evt.Interface(f.Key(), f.Value())
	}
	evt.Msg(msg)
}
