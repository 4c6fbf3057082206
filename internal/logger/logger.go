package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(io.Discard)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

const (
	ErrInvalidLogLevel = errors.ErrInvalidLogLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the global logger at the given level
func Init(level LogLevel, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
	SetLogLevel(level)
}

// SetOutput replaces the global logger with a JSON logger writing to w.
func SetOutput(w io.Writer) {
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// ParseLevel maps a configured level name to a LogLevel
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(ErrInvalidLogLevel, name)
	}
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return codedEvent(log.Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return codedEvent(log.Fatal(), err)
}

func codedEvent(ev *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{ev.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Default returns a Logger backed by the global logger.
func Default() Logger {
	return component{}
}

// New returns a Logger writing JSON lines to w, independent of the global
// logger. Mostly useful in tests.
func New(w io.Writer) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return component{own: &zl}
}

type component struct {
	own  *zerolog.Logger
	name string
}

func (c component) base() *zerolog.Logger {
	if c.own != nil {
		return c.own
	}
	return &log
}

func (c component) event(ev *zerolog.Event) *LogEvent {
	if c.name != "" {
		ev = ev.Str("component", c.name)
	}
	return &LogEvent{ev}
}

func (c component) Debug() *LogEvent { return c.event(c.base().Debug()) }
func (c component) Info() *LogEvent  { return c.event(c.base().Info()) }
func (c component) Warn() *LogEvent  { return c.event(c.base().Warn()) }
func (c component) Error() *LogEvent { return c.event(c.base().Error()) }

func (c component) ErrorWithCode(err errors.Error) *LogEvent {
	ev := codedEvent(c.base().Error(), err)
	return c.event(ev.Event)
}

func (c component) With(name string) Logger {
	c.name = name
	return c
}
