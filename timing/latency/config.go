// Package latency provides the extra-cycle timing model charged by the
// pipelined core for long-latency instructions (multiply and divide/remainder).
package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the extra-cycle charges levied on top of the baseline
// one cycle per clock.
type TimingConfig struct {
	// MultiplyExtraCycles is charged for mul/mulh/mulhsu/mulhu/mulw.
	// Default: 1.
	MultiplyExtraCycles uint64 `json:"multiply_extra_cycles"`

	// DivideExtraCycles is charged for div/divu/divw/divuw and for
	// rem/remu/remw/remuw, unless the DIV/REM fusion rule applies.
	// Default: 39.
	DivideExtraCycles uint64 `json:"divide_extra_cycles"`
}

// DefaultTimingConfig returns the charges fixed by the timing model: +1 for
// multiply, +39 for divide/remainder.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		MultiplyExtraCycles: 1,
		DivideExtraCycles:   39,
	}
}

// LoadConfig loads a TimingConfig from a JSON file, defaulting any field the
// file omits.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that both charges are nonzero.
func (c *TimingConfig) Validate() error {
	if c.MultiplyExtraCycles == 0 {
		return fmt.Errorf("multiply_extra_cycles must be > 0")
	}
	if c.DivideExtraCycles == 0 {
		return fmt.Errorf("divide_extra_cycles must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
