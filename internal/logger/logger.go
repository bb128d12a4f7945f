// Package logger provides the component-tagged structured logger used by the
// reader, the image layer and the CLI.
package logger

import (
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value context for one log event.
type Fields map[string]interface{}

// Logger provides structured logging with a component tag.
type Logger interface {
	Info(component, message string, fields Fields)
	Warning(component, message string, fields Fields)
	Error(component string, err error, fields Fields)
	Debug(component, message string, fields Fields)
}

// ZerologAdapter implements Logger on top of zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// New returns a JSON logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) *ZerologAdapter {
	zerolog.DurationFieldInteger = true
	return &ZerologAdapter{
		logger: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// NewConsole returns a human readable logger on stderr. Command output goes
// to stdout, so log lines never mix with it.
func NewConsole(level zerolog.Level) *ZerologAdapter {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level)
}

func (z *ZerologAdapter) Info(component, message string, fields Fields) {
	emit(z.logger.Info(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Warning(component, message string, fields Fields) {
	emit(z.logger.Warn(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Error(component string, err error, fields Fields) {
	emit(z.logger.Error().Err(err), component, fields).Msg("operation failed")
}

func (z *ZerologAdapter) Debug(component, message string, fields Fields) {
	emit(z.logger.Debug(), component, fields).Msg(message)
}

// emit adds the component and the fields in key order. A disabled level
// yields a nil event, on which zerolog calls are no-ops.
func emit(e *zerolog.Event, component string, fields Fields) *zerolog.Event {
	if e == nil {
		return nil
	}
	e = e.Str("component", component)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e = e.Interface(k, fields[k])
	}
	return e
}

type nop struct{}

func (nop) Info(string, string, Fields)    {}
func (nop) Warning(string, string, Fields) {}
func (nop) Error(string, error, Fields)    {}
func (nop) Debug(string, string, Fields)   {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Level returns debug when verbose is set and info otherwise.
func Level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
