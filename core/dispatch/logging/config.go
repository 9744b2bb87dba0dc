package logging

import "fmt"

// Config selects the cycle log backend.
type Config struct {
	// Backend is one of "", "none", "jsonl", "rotating" or "sqlite".
	Backend    string `json:"backend" validate:"omitempty,oneof=none jsonl rotating sqlite"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
}

const defaultMaxSizeMB = 10

// NewLogStore opens the configured store. It returns nil when logging is
// disabled.
func NewLogStore(cfg Config) (LogStore, error) {
	if cfg.Backend == "" || cfg.Backend == "none" {
		return nil, nil
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("log backend %s: path required", cfg.Backend)
	}
	var (
		store LogStore
		err   error
	)
	switch cfg.Backend {
	case "jsonl":
		store, err = NewJSONLStore(cfg.Path)
	case "rotating":
		size := cfg.MaxSizeMB
		if size <= 0 {
			size = defaultMaxSizeMB
		}
		store, err = NewRotatingJSONLStore(cfg.Path, size, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
