package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Addr     string
	Scenario string
	Loop     bool
	Verbose  bool

	Broker           string
	InstructionTopic string
	AckTopic         string
	Codec            string
	AckLatency       time.Duration
	DropRate         float64
}

// Validate checks flag combinations.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("scenario file is required")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be within [0,1]")
	}
	if c.AckTopic != "" && c.Broker == "" {
		return fmt.Errorf("ack topic requires a broker")
	}
	return nil
}
