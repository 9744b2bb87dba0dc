package config

import "time"

// SentryConfig enables error reporting when DSN is set. Events are tagged
// with the station id of the dispatch section.
type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
	Release     string `json:"release"`
	// SampleRate is the share of error events sent; zero sends all.
	SampleRate       float64 `json:"sample_rate" validate:"gte=0,lte=1"`
	TracesSampleRate float64 `json:"traces_sample_rate" validate:"gte=0,lte=1"`
	FlushTimeoutMS   int     `json:"flush_timeout_ms" validate:"gte=0"`
}

// Enabled reports whether a DSN is configured.
func (c SentryConfig) Enabled() bool { return c.DSN != "" }

// FlushTimeout bounds the wait for buffered events on shutdown.
func (c SentryConfig) FlushTimeout() time.Duration {
	if c.FlushTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.FlushTimeoutMS) * time.Millisecond
}
