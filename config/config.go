// Package config holds the host-side configuration for driving jimulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/iguana-debugger/libiguana/jimulator"
)

// Config holds tool locations and polling behaviour.
type Config struct {
	// Jimulator is the simulator executable. Looked up on PATH when it has
	// no directory component.
	Jimulator string `json:"jimulator"`

	// Aasm is the path to the aasm assembler.
	Aasm string `json:"aasm"`

	// Mnemonics is the path to the aasm mnemonics definition file.
	Mnemonics string `json:"mnemonics"`

	// PollIntervalMS is the delay between status polls while a program
	// runs. Default: 50ms.
	PollIntervalMS uint64 `json:"poll_interval_ms"`

	// Verbosity is the log verbosity (0 lifecycle, 1 diagnostics, 2 wire).
	Verbosity int `json:"verbosity"`

	// Trace logs every command exchange.
	Trace bool `json:"trace"`
}

// DefaultConfig returns a Config with the standard install locations.
func DefaultConfig() *Config {
	return &Config{
		Jimulator:      "jimulator",
		Aasm:           jimulator.DefaultAasmPath,
		Mnemonics:      jimulator.DefaultMnemonicsPath,
		PollIntervalMS: 50,
		Verbosity:      0,
		Trace:          false,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Jimulator == "" {
		return fmt.Errorf("jimulator must be set")
	}
	if c.PollIntervalMS == 0 {
		return fmt.Errorf("poll_interval_ms must be > 0")
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("verbosity must be >= 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SessionOptions returns the session options implied by the Config.
func (c *Config) SessionOptions() []jimulator.Option {
	return []jimulator.Option{
		jimulator.WithAasm(c.Aasm),
		jimulator.WithMnemonics(c.Mnemonics),
	}
}
