package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Only tuning sections live here; secrets and
// connection settings stay in the environment.
type fileConfig struct {
	RateLimit  *RateLimitConfig  `yaml:"rate_limit"`
	Worker     *WorkerConfig     `yaml:"worker"`
	Extraction *ExtractionConfig `yaml:"extraction"`
	Fetch      *FetchConfig      `yaml:"fetch"`
	Sweeper    *SweeperConfig    `yaml:"sweeper"`
}

// applyFile decodes path over cfg. ${VAR} references are expanded first.
// Sections are decoded onto the current values, so keys absent from the file
// keep their defaults.
func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	fc := fileConfig{
		RateLimit:  &cfg.RateLimit,
		Worker:     &cfg.Worker,
		Extraction: &cfg.Extraction,
		Fetch:      &cfg.Fetch,
		Sweeper:    &cfg.Sweeper,
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
