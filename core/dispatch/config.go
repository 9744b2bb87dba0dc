package dispatch

import (
	"time"

	"github.com/BusBom/rpi-server/core/factory"
)

// Config defines control loop and dispatch settings.
type Config struct {
	StationID string `json:"station_id"`
	// IntervalMS is the pause between control loop cycles. A cycle emits
	// while holding the manager lock, so an emitter that blocks (an MQTT
	// emitter waiting for a display ack, for instance) delays the next
	// cycle by up to its own timeout.
	IntervalMS int `json:"interval_ms" validate:"gte=0"`
	// RetrySleepMS is the pause after a skipped cycle.
	RetrySleepMS int `json:"retry_sleep_ms" validate:"gte=0"`
	// PendingMaxAgeSeconds expires instructions for buses that never
	// arrived. Zero applies the default; negative disables expiry.
	PendingMaxAgeSeconds int `json:"pending_max_age_seconds"`
	// MaxPlatforms rejects occupancy vectors longer than this.
	MaxPlatforms int `json:"max_platforms" validate:"gte=0"`
	// ExpectedPlatforms, when set, rejects vectors whose valid platform
	// count differs.
	ExpectedPlatforms int                    `json:"expected_platforms" validate:"gte=0"`
	Emitters          []factory.ModuleConfig `json:"emitters"`
}

const (
	defaultIntervalMS           = 500
	defaultRetrySleepMS         = 500
	defaultPendingMaxAgeSeconds = 300
	defaultMaxPlatforms         = 20
)

// SetDefaults applies the reference cadence for unset fields.
func (c *Config) SetDefaults() {
	if c.IntervalMS <= 0 {
		c.IntervalMS = defaultIntervalMS
	}
	if c.RetrySleepMS <= 0 {
		c.RetrySleepMS = defaultRetrySleepMS
	}
	if c.PendingMaxAgeSeconds == 0 {
		c.PendingMaxAgeSeconds = defaultPendingMaxAgeSeconds
	}
	if c.MaxPlatforms <= 0 {
		c.MaxPlatforms = defaultMaxPlatforms
	}
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c Config) RetrySleep() time.Duration {
	return time.Duration(c.RetrySleepMS) * time.Millisecond
}

// PendingMaxAge returns zero when expiry is disabled.
func (c Config) PendingMaxAge() time.Duration {
	if c.PendingMaxAgeSeconds < 0 {
		return 0
	}
	return time.Duration(c.PendingMaxAgeSeconds) * time.Second
}
