package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/config"
	"github.com/zen-systems/anchorfill/pkg/defaults"
	"github.com/zen-systems/anchorfill/pkg/inference"
	"github.com/zen-systems/anchorfill/pkg/rules"
)

const version = "0.3.0"

var (
	configFile  string
	catalogFlag string
	debug       bool

	logger = zap.NewNop()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anchorfill",
		Short: "Answer compliance questionnaires from a handful of anchor questions",
		Long: `anchorfill asks a small set of high-impact anchor questions and infers
	answers for the rest of the questionnaire from cluster gating rules,
	falling back to a default-answer table for everything left over.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if debug {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to gating rules file")
	rootCmd.PersistentFlags().StringVar(&catalogFlag, "catalog", "", "path to question catalog (defaults to the built-in catalog)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(anchorsCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(attestCmd())
	rootCmd.AddCommand(verifyCmd())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadWithRulesFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if catalogFlag != "" {
		cfg.CatalogPath = catalogFlag
	}
	if cfg.EvidenceDir == "" {
		cfg.EvidenceDir = filepath.Join(cfg.ConfigDir, "runs")
	}
	return cfg, nil
}

// loadCatalog reads the catalog at path, or the built-in catalog when path
// is empty.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Builtin(), nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// resolveCatalog prefers the manifest's catalog over the configured one.
func resolveCatalog(cfg *config.Config, manifestCatalog string) (*catalog.Catalog, error) {
	if manifestCatalog != "" && catalogFlag == "" {
		return loadCatalog(manifestCatalog)
	}
	return loadCatalog(cfg.CatalogPath)
}

func buildEngine(cfg *config.Config, profile string) (*inference.Engine, error) {
	if profile == "" {
		profile = cfg.DefaultsProfile
	}
	table, err := defaults.NewRegistry(cfg.Defaults).Get(profile)
	if err != nil {
		return nil, err
	}
	rs := rules.NewRuleSet(cfg.Rules, rules.WithAliases(cfg.Aliases))
	return inference.New(rs, inference.WithDefaults(table), inference.WithLogger(logger)), nil
}
