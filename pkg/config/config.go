// Package config loads anchorfill configuration: the user config file,
// environment overrides, and the rule, default-answer, and alias tables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	CatalogPath     string
	ArchivePath     string
	EvidenceDir     string
	ListenAddr      string
	DefaultsProfile string
	MaxQuestions    int
	Rules           *RulesConfig
	Defaults        *DefaultsConfig
	Aliases         *AnswerAliases
	ConfigDir       string
}

// FileConfig represents the structure of ~/.anchorfill/config.yaml
type FileConfig struct {
	Catalog         string `yaml:"catalog"`
	Archive         string `yaml:"archive"`
	EvidenceDir     string `yaml:"evidence_dir"`
	ListenAddr      string `yaml:"listen_addr"`
	DefaultsProfile string `yaml:"defaults_profile"`
	MaxQuestions    int    `yaml:"max_questions"`
}

const (
	defaultListenAddr   = ":8080"
	defaultMaxQuestions = 7
)

// Load reads configuration from the config directory and environment.
// Environment variables take precedence over file configuration; rules,
// defaults, and aliases fall back to the built-in tables when their files
// are absent.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := fromFile(configDir)

	rulesPath := filepath.Join(configDir, "rules.yaml")
	if _, err := os.Stat(rulesPath); err == nil {
		rules, err := LoadRulesConfig(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules config: %w", err)
		}
		cfg.Rules = rules
	} else {
		cfg.Rules = DefaultRulesConfig()
	}

	if err := cfg.loadTables(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithRulesFile loads config with a specific rules file.
func LoadWithRulesFile(rulesPath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := fromFile(configDir)

	rules, err := LoadRulesConfig(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules config from %s: %w", rulesPath, err)
	}
	cfg.Rules = rules

	if err := cfg.loadTables(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(configDir string) *Config {
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		CatalogPath:     getEnvOrDefault("ANCHORFILL_CATALOG", fileConfig.Catalog),
		ArchivePath:     getEnvOrDefault("ANCHORFILL_ARCHIVE", fileConfig.Archive),
		EvidenceDir:     getEnvOrDefault("ANCHORFILL_EVIDENCE_DIR", fileConfig.EvidenceDir),
		ListenAddr:      getEnvOrDefault("ANCHORFILL_ADDR", fileConfig.ListenAddr),
		DefaultsProfile: getEnvOrDefault("ANCHORFILL_DEFAULTS", fileConfig.DefaultsProfile),
		MaxQuestions:    fileConfig.MaxQuestions,
		ConfigDir:       configDir,
	}
	if v := os.Getenv("ANCHORFILL_MAX_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxQuestions = n
		}
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = defaultMaxQuestions
	}
	if cfg.DefaultsProfile == "" {
		cfg.DefaultsProfile = ProfileStandard
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = filepath.Join(configDir, "history.db")
	}
	return cfg
}

func (c *Config) loadTables() error {
	defaultsPath := filepath.Join(c.ConfigDir, "defaults.yaml")
	if _, err := os.Stat(defaultsPath); err == nil {
		d, err := LoadDefaultsConfig(defaultsPath)
		if err != nil {
			return fmt.Errorf("failed to load defaults config: %w", err)
		}
		c.Defaults = d
	} else {
		c.Defaults = DefaultDefaultsConfig()
	}

	aliases, err := LoadAliasesWithFallback(filepath.Join(c.ConfigDir, "aliases.yaml"))
	if err != nil {
		return fmt.Errorf("failed to load answer aliases: %w", err)
	}
	c.Aliases = aliases
	return nil
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("ANCHORFILL_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".anchorfill")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
