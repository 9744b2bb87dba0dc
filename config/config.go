package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/metrics"
	"github.com/BusBom/rpi-server/core/station"
	"github.com/BusBom/rpi-server/infra/collector"
)

// Config is the root configuration of the stop controller.
type Config struct {
	Station  station.Config   `json:"station"`
	Dispatch dispatch.Config  `json:"dispatch"`
	Sources  collector.Config `json:"sources"`
	Metrics  metrics.Config   `json:"metrics"`
	Logging  LoggingConfig    `json:"logging"`
	Sentry   SentryConfig     `json:"sentry"`
	API      APIConfig        `json:"api"`
}

// Load reads a YAML or JSON file, applies K_ prefixed environment
// overrides (K_SOURCES__STOP_STATUS_URL sets sources.stop_status_url),
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields with the reference values.
func (c *Config) SetDefaults() {
	c.Station.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Sources.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.API.Addr == "" && c.API.Token != "" {
		return fmt.Errorf("invalid config: api.token set without api.addr")
	}
	return nil
}
