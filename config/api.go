package config

// APIConfig enables the read-only HTTP API when Addr is set.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token protects /api/dispatch/logs when set.
	Token string `json:"token"`
	// DwellWindow is the number of dwell samples kept per platform.
	DwellWindow int `json:"dwell_window" validate:"gte=0"`
}

func (c *APIConfig) SetDefaults() {
	if c.DwellWindow <= 0 {
		c.DwellWindow = 50
	}
}
