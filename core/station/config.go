package station

import "time"

// Config defines the debounce and reentry timings of a stop.
type Config struct {
	// ConfirmationMS is how long a sensor vector must stay unchanged before
	// it is trusted.
	ConfirmationMS int `json:"confirmation_ms" validate:"gte=0"`
	// ReentryCooldownMS is how long a departed bus may still re-park and be
	// recognised as the same bus.
	ReentryCooldownMS int `json:"reentry_cooldown_ms" validate:"gte=0"`
	// MaxDeparted bounds the departed pool; the oldest record is dropped
	// when the bound is reached.
	MaxDeparted int `json:"max_departed" validate:"gte=0"`
}

const (
	defaultConfirmationMS    = 2000
	defaultReentryCooldownMS = 5000
	defaultMaxDeparted       = 16
)

// SetDefaults applies the reference timings for unset fields.
func (c *Config) SetDefaults() {
	if c.ConfirmationMS <= 0 {
		c.ConfirmationMS = defaultConfirmationMS
	}
	if c.ReentryCooldownMS <= 0 {
		c.ReentryCooldownMS = defaultReentryCooldownMS
	}
	if c.MaxDeparted <= 0 {
		c.MaxDeparted = defaultMaxDeparted
	}
}

func (c Config) ConfirmationWindow() time.Duration {
	return time.Duration(c.ConfirmationMS) * time.Millisecond
}

func (c Config) ReentryCooldown() time.Duration {
	return time.Duration(c.ReentryCooldownMS) * time.Millisecond
}
