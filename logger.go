package rf24

import (
	"io"
	"sync"
)

// Logger defines the logging interface for simple string messages.
// Using simple strings instead of formatted strings helps reduce binary size
// and memory allocations on microcontrollers (TinyGo).
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = nopLogger{}

// SetLogger sets the package logger used by devices created without
// HardwareConfig.Logger. Passing nil silences them.
func SetLogger(l Logger) {
	if l == nil {
		globalLogger = nopLogger{}
		return
	}
	globalLogger = l
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

// nopLogger is a logger that does nothing.
type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string)  {}
func (nopLogger) Warn(string)  {}
func (nopLogger) Error(string) {}

// packageLogger forwards to whatever SetLogger installed last.
type packageLogger struct{}

func (packageLogger) Debug(msg string) { globalLogger.Debug(msg) }
func (packageLogger) Info(msg string)  { globalLogger.Info(msg) }
func (packageLogger) Warn(msg string)  { globalLogger.Warn(msg) }
func (packageLogger) Error(msg string) { globalLogger.Error(msg) }

// lineLogger writes each message as one "[LEVEL] rf24: msg" line, in a
// single Write so lines from several devices do not interleave.
type lineLogger struct {
	w     io.Writer
	debug bool

	mu  sync.Mutex
	buf []byte
}

// NewLineLogger returns a Logger writing to w without any formatting
// package, for boards where binary size matters. Debug is dropped unless
// debug is set.
func NewLineLogger(w io.Writer, debug bool) Logger {
	return &lineLogger{w: w, debug: debug}
}

func (l *lineLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf[:0], level...)
	l.buf = append(l.buf, "rf24: "...)
	l.buf = append(l.buf, msg...)
	l.buf = append(l.buf, '\r', '\n')
	l.w.Write(l.buf)
}

func (l *lineLogger) Debug(msg string) {
	if l.debug {
		l.log("[DEBUG] ", msg)
	}
}
func (l *lineLogger) Info(msg string)  { l.log("[INFO]  ", msg) }
func (l *lineLogger) Warn(msg string)  { l.log("[WARN]  ", msg) }
func (l *lineLogger) Error(msg string) { l.log("[ERROR] ", msg) }
