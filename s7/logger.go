package s7

import (
	"log"
	"os"
)

// Logger is the logging trait a Client accepts. It is always injected, never
// read from process-wide state, so multiple Clients in one process can log
// independently (or not at all).
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// NopLogger returns a Logger that discards everything. It is the Client
// default.
func NopLogger() Logger { return nopLogger{} }

// stdLogger adapts a standard library *log.Logger into a Logger, tagging
// each line with its level.
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger wraps l as a Logger. If l is nil, a new logger writing to
// os.Stderr with the standard flags is created.
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &stdLogger{l: l}
}

func (s *stdLogger) Debugf(format string, args ...any) { s.l.Printf("DEBUG "+format, args...) }
func (s *stdLogger) Infof(format string, args ...any)  { s.l.Printf("INFO  "+format, args...) }
func (s *stdLogger) Warnf(format string, args ...any)  { s.l.Printf("WARN  "+format, args...) }
func (s *stdLogger) Errorf(format string, args ...any) { s.l.Printf("ERROR "+format, args...) }
