package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in default-answer profile names.
const (
	ProfileStandard     = "standard"
	ProfileConservative = "conservative"
)

// DefaultsConfig holds named default-answer profiles.
type DefaultsConfig struct {
	Profiles map[string]DefaultsProfile `yaml:"profiles"`
}

// DefaultsProfile is one default-answer table.
type DefaultsProfile struct {
	Description string `yaml:"description,omitempty"`
	// Values pins the default answer of individual questions.
	Values map[string]string `yaml:"values,omitempty"`
	// Fallback answers questions with no pinned value and no catalog default.
	Fallback string `yaml:"fallback,omitempty"`
	// IgnoreCatalogDefaults makes Fallback win over catalog defaults.
	IgnoreCatalogDefaults bool `yaml:"ignore_catalog_defaults,omitempty"`
}

// LoadDefaultsConfig reads default-answer profiles from a YAML file.
func LoadDefaultsConfig(path string) (*DefaultsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DefaultsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("defaults config %s defines no profiles", path)
	}
	return &cfg, nil
}

// DefaultDefaultsConfig returns the built-in profiles.
func DefaultDefaultsConfig() *DefaultsConfig {
	return &DefaultsConfig{
		Profiles: map[string]DefaultsProfile{
			ProfileStandard: {
				Description: "catalog defaults with a few organisation-wide answers pinned",
				Values: map[string]string{
					"1.2": "Yes",
					"6.1": "Yes",
				},
			},
			ProfileConservative: {
				Description:           "every defaulted answer is left for confirmation",
				Fallback:              "To Be Confirmed",
				IgnoreCatalogDefaults: true,
			},
		},
	}
}
