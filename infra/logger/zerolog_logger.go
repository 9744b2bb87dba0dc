package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger using the APP_ENV environment variable
// to determine the output format. All logs include the provided component field.
func NewZerologLogger(component string) Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewZerologLoggerWithWriter(component, out, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// NewZerologLoggerWithWriter writes JSON logs at or above level to w.
func NewZerologLoggerWithWriter(component string, w io.Writer, level zerolog.Level) Logger {
	z := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// ParseLevel maps debug, info, warn and error to zerolog levels. Unknown
// values default to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields Fields) {
	l.log.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (l *ZerologLogger) Infow(msg string, fields Fields) {
	l.log.Info().Fields(map[string]any(fields)).Msg(msg)
}

// With returns a child logger that adds fields to every entry.
func (l *ZerologLogger) With(fields Fields) Logger {
	return &ZerologLogger{log: l.log.With().Fields(map[string]any(fields)).Logger()}
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

// SetGlobalLevel raises the minimum level of every logger, including
// those already created.
func SetGlobalLevel(s string) {
	zerolog.SetGlobalLevel(ParseLevel(s))
}
