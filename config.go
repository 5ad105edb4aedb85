package fabolas

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of a run configuration: the plain fields of
// OptimizationConfig plus an optional seed.
type fileConfig struct {
	OptimizationConfig `yaml:",inline"`

	Seed *uint64 `yaml:"seed"`
}

// ParseConfig reads a YAML run configuration on top of DefaultConfig and
// validates it.
//
// Example document:
//
//	lower: [-10, -10]
//	upper: [2, 2]
//	s_min: 100
//	s_max: 50000
//	n_init: 4
//	num_iterations: 40
//	seed: 7
func ParseConfig(data []byte) (OptimizationConfig, error) {
	fc := fileConfig{OptimizationConfig: DefaultConfig()}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return OptimizationConfig{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	config := fc.OptimizationConfig
	if fc.Seed != nil {
		config.RandomState = NewRandomState(*fc.Seed)
	}

	if err := config.Validate(); err != nil {
		return OptimizationConfig{}, err
	}

	return config, nil
}

// LoadConfig reads and parses the YAML run configuration at path.
func LoadConfig(path string) (OptimizationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OptimizationConfig{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}
