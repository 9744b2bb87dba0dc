package config

import "github.com/BusBom/rpi-server/core/dispatch/logging"

// LoggingConfig selects the process log level and the cycle log store.
type LoggingConfig struct {
	Level  string         `json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Cycles logging.Config `json:"cycles"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Cycles.Backend == "" {
		c.Cycles.Backend = "jsonl"
	}
	if c.Cycles.Path == "" {
		c.Cycles.Path = "cycles.log"
	}
}
