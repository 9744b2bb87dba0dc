package logger

// Fields are structured key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is the logging surface used by the control loop and the adapters.
// The *w variants attach fields to a single entry; With returns a child
// logger carrying them on every entry.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	Debugw(msg string, fields Fields)
	Infow(msg string, fields Fields)

	With(fields Fields) Logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
func (NopLogger) Debugw(string, Fields) {}
func (NopLogger) Infow(string, Fields)  {}
func (n NopLogger) With(Fields) Logger  { return n }
