package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/anchorfill/pkg/archive"
	"github.com/zen-systems/anchorfill/pkg/attest"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/config"
	"github.com/zen-systems/anchorfill/pkg/manifest"
	"github.com/zen-systems/anchorfill/pkg/rules"
	"github.com/zen-systems/anchorfill/pkg/server"
)

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Show the gating rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			rs := rules.NewRuleSet(cfg.Rules, rules.WithAliases(cfg.Aliases))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tGATE\tTARGET\tPOSITIVE\tNEGATIVE\tNEGATIVE VALUE")
			for _, r := range rs.Rules() {
				pos, neg := r.Triggers()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Gate, formatTarget(r.Target),
					formatList(pos), formatList(neg), r.NegativeValue)
			}
			return w.Flush()
		},
	}
}

func formatTarget(t config.RuleTarget) string {
	switch {
	case t.From != "" && t.To != "":
		return fmt.Sprintf("%s.* [%s-%s]", t.Cluster, t.From, t.To)
	case t.From != "":
		return fmt.Sprintf("%s.* [%s-]", t.Cluster, t.From)
	case t.To != "":
		return fmt.Sprintf("%s.* [-%s]", t.Cluster, t.To)
	default:
		return t.Cluster + ".*"
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest.yaml...]",
		Short: "Validate the catalog, gating rules, and run manifests",
		Long: `Checks that every rule's gate and target exist in the catalog, and
	that each given manifest parses and names known questions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Rules.Validate(); err != nil {
				return err
			}

			cat, err := loadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}

			var problems []string
			rs := rules.NewRuleSet(cfg.Rules, rules.WithAliases(cfg.Aliases))
			for _, err := range rs.Validate(cat) {
				problems = append(problems, err.Error())
			}
			for _, err := range rs.CheckGating(cat) {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			for _, path := range args {
				m, err := manifest.Load(path)
				if err != nil {
					problems = append(problems, err.Error())
					continue
				}
				mcat := cat
				if p := m.CatalogPath(); p != "" {
					if mcat, err = loadCatalog(p); err != nil {
						problems = append(problems, fmt.Sprintf("%s: %v", path, err))
						continue
					}
				}
				for _, a := range m.Anchors {
					if !mcat.Has(a.QuestionID) {
						problems = append(problems, fmt.Sprintf("%s: unknown anchor question %s", path, a.QuestionID))
					}
				}
				for id := range m.Allowed() {
					if !mcat.Has(id) {
						problems = append(problems, fmt.Sprintf("%s: allowed_options for unknown question %s", path, id))
					}
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(os.Stderr, "  - %s\n", p)
				}
				return fmt.Errorf("validation failed: %d problem(s)", len(problems))
			}

			fmt.Printf("Catalog %s (%d questions, %d anchors) and %d rules are valid.\n",
				cat.Version(), cat.Len(), len(cat.Anchors()), rs.Len())
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addrFlag string
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inference API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			engine, err := buildEngine(cfg, "")
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg.CatalogPath)
			if err != nil {
				return err
			}
			holder := catalog.NewHolder(cat)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watchFlag && cfg.CatalogPath != "" {
				watcher, err := catalog.NewWatcher(cfg.CatalogPath, holder, catalog.WithWatchLogger(logger))
				if err != nil {
					return err
				}
				if err := watcher.Start(ctx); err != nil {
					return err
				}
				defer watcher.Stop()
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithMaxQuestions(cfg.MaxQuestions),
				server.WithDefaultsProfile(cfg.DefaultsProfile),
			}
			store, err := archive.Open(cfg.ArchivePath)
			if err != nil {
				logger.Warn("run archive unavailable", zap.String("path", cfg.ArchivePath), zap.Error(err))
			} else {
				defer store.Close()
				opts = append(opts, server.WithArchive(store))
			}

			addr := addrFlag
			if addr == "" {
				addr = cfg.ListenAddr
			}
			return server.New(holder, engine, opts...).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (defaults to config listen_addr)")
	cmd.Flags().BoolVar(&watchFlag, "watch", true, "reload the catalog file when it changes")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			store, err := archive.Open(cfg.ArchivePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				rec, err := store.GetRun(runID)
				if err != nil {
					return err
				}
				return printJSON(rec)
			}

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No archived runs.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tCATALOG\tPASSES\tHIGH\tMEDIUM\tLOW\tNONE\tATTESTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), shortVersion(r.CatalogVersion), r.Passes,
					r.Histogram.High, r.Histogram.Medium, r.Histogram.Low, r.Histogram.None, r.Attested)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "print one archived run as JSON")

	return cmd
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

func attestCmd() *cobra.Command {
	var runDir string
	var outFile string
	var keyID string
	var noSign bool

	cmd := &cobra.Command{
		Use:   "attest",
		Short: "Export an attestation for a run's evidence bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runDir == "" || outFile == "" {
				return fmt.Errorf("--run and --out are required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			attestation, err := attest.BuildAttestation(runDir)
			if err != nil {
				return err
			}

			if !noSign {
				signer, err := attest.NewSigner(filepath.Join(cfg.ConfigDir, "keys"), keyID)
				if err != nil {
					return fmt.Errorf("failed to initialize signer: %w", err)
				}
				if err := signer.Sign(attestation); err != nil {
					return err
				}
			}

			data, err := json.MarshalIndent(attestation, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, data, 0644); err != nil {
				return err
			}

			if store, err := archive.Open(cfg.ArchivePath); err == nil {
				defer store.Close()
				if err := store.SaveAttestation(attestation.Subject.RunID, data); err != nil {
					logger.Warn("failed to archive attestation", zap.String("run_id", attestation.Subject.RunID), zap.Error(err))
				}
			} else {
				logger.Warn("run archive unavailable", zap.String("path", cfg.ArchivePath), zap.Error(err))
			}

			fmt.Fprintf(os.Stderr, "Attestation %s written to %s\n", attestation.AttestationID, outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&runDir, "run", "", "run directory containing evidence")
	cmd.Flags().StringVar(&outFile, "out", "", "output file path")
	cmd.Flags().StringVar(&keyID, "key-id", "anchorfill", "signing key id")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "do not sign the attestation")

	return cmd
}

func verifyCmd() *cobra.Command {
	var attestationPath string
	var runDir string
	var keyDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an attestation against a run directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if attestationPath == "" || runDir == "" {
				return fmt.Errorf("--attestation and --run are required")
			}

			att, err := attest.VerifyAttestationFile(attestationPath, runDir)
			if err != nil {
				return err
			}

			if att.Signature != nil {
				if keyDir == "" {
					cfg, err := loadConfig()
					if err != nil {
						return fmt.Errorf("failed to load config: %w", err)
					}
					keyDir = filepath.Join(cfg.ConfigDir, "keys")
				}
				if err := attest.VerifySignature(att, keyDir); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Signature by %s verified.\n", att.Signature.PubKeyID)
			}

			fmt.Fprintln(os.Stdout, "Attestation verified.")
			return nil
		},
	}

	cmd.Flags().StringVar(&attestationPath, "attestation", "", "attestation file path")
	cmd.Flags().StringVar(&runDir, "run", "", "run directory containing evidence")
	cmd.Flags().StringVar(&keyDir, "keys", "", "directory holding signing keys (defaults to the config keys directory)")

	return cmd
}
