package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step is one control loop cycle. The clock advances by AdvanceMS before
// the cycle runs. Status and Queue persist until a later step sets them.
type Step struct {
	Name       string   `yaml:"name,omitempty"`
	AdvanceMS  int      `yaml:"advance_ms"`
	Status     []int    `yaml:"status,omitempty"`
	Queue      []string `yaml:"queue,omitempty"`
	FetchError bool     `yaml:"fetch_error,omitempty"`
	QueueError bool     `yaml:"queue_error,omitempty"`
	Expect     Expect   `yaml:"expect"`
}

// Expect lists the checks run after a step. Nil fields are not checked;
// an empty map or list asserts emptiness.
type Expect struct {
	Skipped  *bool          `yaml:"skipped,omitempty"`
	Stable   *bool          `yaml:"stable,omitempty"`
	Emitted  *bool          `yaml:"emitted,omitempty"`
	Render   string         `yaml:"render,omitempty"`
	Events   []string       `yaml:"events,omitempty"`
	Bindings map[int]string `yaml:"bindings,omitempty"`
	Pending  map[int]string `yaml:"pending,omitempty"`
	Departed []string       `yaml:"departed,omitempty"`
}

// StationDef overrides the station timings.
type StationDef struct {
	ConfirmationMS    int `yaml:"confirmation_ms"`
	ReentryCooldownMS int `yaml:"reentry_cooldown_ms"`
	MaxDeparted       int `yaml:"max_departed"`
}

// DispatchDef overrides the dispatch settings.
type DispatchDef struct {
	PendingMaxAgeSeconds int `yaml:"pending_max_age_seconds"`
	MaxPlatforms         int `yaml:"max_platforms"`
	ExpectedPlatforms    int `yaml:"expected_platforms"`
}

// Scenario is a scripted sequence of sensor readings and queues.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	StationID   string      `yaml:"station_id,omitempty"`
	Station     StationDef  `yaml:"station"`
	Dispatch    DispatchDef `yaml:"dispatch"`
	Steps       []Step      `yaml:"steps"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a scenario and checks it has runnable steps.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario: name is required")
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", sc.Name)
	}
	if sc.Steps[0].Status == nil && !sc.Steps[0].FetchError {
		return nil, fmt.Errorf("scenario %s: first step needs a status", sc.Name)
	}
	for i, st := range sc.Steps {
		if st.AdvanceMS < 0 {
			return nil, fmt.Errorf("scenario %s: step %d: negative advance_ms", sc.Name, i)
		}
	}
	return &sc, nil
}
