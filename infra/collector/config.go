package collector

import (
	"time"

	"github.com/BusBom/rpi-server/auth"
)

// Config holds the endpoints of the stop-status and approach-queue services.
type Config struct {
	StopStatusURL string `json:"stop_status_url" validate:"required,url"`
	// QueueURL may be empty on stops without an approach camera; the queue
	// is then always empty.
	QueueURL  string `json:"queue_url" validate:"omitempty,url"`
	TimeoutMS int    `json:"timeout_ms" validate:"gte=0"`

	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`

	Auth auth.Conf `json:"auth"`
}

// SetDefaults applies the reference timeout.
func (c *Config) SetDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 2000
	}
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// TLSEnabled reports whether mutual TLS files are configured.
func (c Config) TLSEnabled() bool {
	return c.ClientCert != "" || c.ClientKey != "" || c.CABundle != ""
}
