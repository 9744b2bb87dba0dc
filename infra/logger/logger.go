package logger

import corelogger "github.com/BusBom/rpi-server/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// Fields aliases the structured field map.
type Fields = corelogger.Fields

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The output format is
// selected by APP_ENV and the minimum level by LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
