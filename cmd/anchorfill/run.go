package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/anchorfill/pkg/anchor"
	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/archive"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/evidence"
	"github.com/zen-systems/anchorfill/pkg/gate"
	"github.com/zen-systems/anchorfill/pkg/inference"
	"github.com/zen-systems/anchorfill/pkg/manifest"
	"github.com/zen-systems/anchorfill/pkg/prompt"
)

func anchorsCmd() *cobra.Command {
	var manifestFile string
	var existingFlag map[string]string
	var maxFlag int
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "anchors",
		Short: "List the anchor questions to ask next",
		Long: `Selects the highest-priority anchor questions that have no answer yet.
	Existing answers come from --file (its anchors and existing sections)
	and from repeated --existing id=value flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			existing, m, err := existingAnswers(manifestFile, existingFlag)
			if err != nil {
				return err
			}
			cat, err := resolveCatalog(cfg, m.CatalogPath())
			if err != nil {
				return err
			}

			max := maxFlag
			if max <= 0 {
				max = m.MaxQuestions
			}
			if max <= 0 {
				max = cfg.MaxQuestions
			}

			selected := anchor.Select(cat, existing, max)
			if jsonFlag {
				if selected == nil {
					selected = []catalog.Question{}
				}
				return printJSON(selected)
			}
			if len(selected) == 0 {
				fmt.Println("All anchor questions are answered.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tID\tQUESTION\tOPTIONS")
			for _, q := range selected {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", q.Priority, q.ID, q.Text, strings.Join(q.Options, " | "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&manifestFile, "file", "f", "", "run manifest with answers already given")
	cmd.Flags().StringToStringVar(&existingFlag, "existing", nil, "existing answer as id=value (repeatable)")
	cmd.Flags().IntVar(&maxFlag, "max", 0, "maximum number of questions (defaults to config max_questions)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print questions as JSON")

	return cmd
}

func predictCmd() *cobra.Command {
	var manifestFile string
	var outFlag string
	var evidenceFlag string
	var interactiveFlag bool
	var noEvidence bool
	var noArchive bool
	var reuse bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Infer answers for every question from the manifest's anchors",
		Long: `Runs inference for the anchors in the manifest and prints the result as JSON.

	Each run writes an evidence bundle (run.json, answers.json, gate results,
	review.log) under the evidence directory and is recorded in the run
	archive. Use --reuse to return an archived run with identical inputs
	instead of predicting again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestFile == "" {
				return fmt.Errorf("manifest file is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			raw, err := os.ReadFile(manifestFile)
			if err != nil {
				return err
			}
			m, err := manifest.Load(manifestFile)
			if err != nil {
				return err
			}

			profile := m.Defaults
			if profile == "" {
				profile = cfg.DefaultsProfile
			}
			engine, err := buildEngine(cfg, profile)
			if err != nil {
				return err
			}
			cat, err := resolveCatalog(cfg, m.CatalogPath())
			if err != nil {
				return err
			}

			allowed := m.Allowed()
			interactive := m.Interactive || interactiveFlag
			inputHash := archive.InputHash(m.Anchors, allowed, profile, engine.Fingerprint())

			var store *archive.Store
			if !noArchive {
				store, err = archive.Open(cfg.ArchivePath)
				if err != nil {
					logger.Warn("run archive unavailable", zap.String("path", cfg.ArchivePath), zap.Error(err))
				} else {
					defer store.Close()
				}
			}

			if reuse && store != nil {
				rec, err := store.FindByInput(inputHash, cat.Version())
				if err == nil {
					fmt.Fprintf(os.Stderr, "Reusing archived run %s\n", rec.ID)
					return writeOutput(outFlag, archivedResult(rec, engine, cat, allowed, interactive))
				}
				logger.Debug("no archived run for input", zap.String("input_hash", inputHash), zap.Error(err))
			}

			res, err := engine.Predict(cat, m.Anchors, inference.PredictOptions{
				AllowedOptions: allowed,
				Interactive:    interactive,
			})
			if err != nil {
				return err
			}
			for _, d := range res.Diagnostics {
				logger.Info("diagnostic", zap.String("run_id", res.RunID), zap.Error(d))
			}

			var runDir string
			if !noEvidence {
				base := evidenceFlag
				if base == "" {
					base = cfg.EvidenceDir
				}
				runDir, err = writeEvidence(base, manifestFile, raw, res, allowed, inputHash, profile)
				if err != nil {
					return fmt.Errorf("failed to write evidence: %w", err)
				}
			}

			if store != nil {
				err := store.SaveRun(archive.RunRecord{
					ID:              res.RunID,
					CatalogVersion:  res.CatalogVersion,
					InputHash:       inputHash,
					DefaultsProfile: profile,
					Passes:          res.Passes,
					Histogram:       res.Histogram,
					Answers:         res.Answers,
					EvidenceDir:     runDir,
				})
				if err != nil {
					logger.Warn("failed to archive run", zap.String("run_id", res.RunID), zap.Error(err))
				}
			}

			if err := writeOutput(outFlag, res); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Run %s complete: %d answers, %d need review.\n", res.RunID, len(res.Answers), len(res.NeedsReview()))
			if runDir != "" {
				fmt.Fprintf(os.Stderr, "Evidence: %s\n", runDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestFile, "file", "f", "", "run manifest path (required)")
	cmd.Flags().StringVar(&outFlag, "out", "", "write the result JSON to this file instead of stdout")
	cmd.Flags().StringVar(&evidenceFlag, "evidence", "", "evidence output base directory")
	cmd.Flags().BoolVar(&interactiveFlag, "interactive", false, "include the prompt for the next unanswered anchor")
	cmd.Flags().BoolVar(&noEvidence, "no-evidence", false, "do not write an evidence bundle")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "do not record the run in the archive")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "return an archived run with identical inputs when one exists")

	return cmd
}

func nextCmd() *cobra.Command {
	var manifestFile string
	var existingFlag map[string]string

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the prompt for the next anchor question",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			existing, m, err := existingAnswers(manifestFile, existingFlag)
			if err != nil {
				return err
			}
			profile := m.Defaults
			if profile == "" {
				profile = cfg.DefaultsProfile
			}
			engine, err := buildEngine(cfg, profile)
			if err != nil {
				return err
			}
			cat, err := resolveCatalog(cfg, m.CatalogPath())
			if err != nil {
				return err
			}

			q, ok := engine.NextAnchor(cat, existing)
			if !ok {
				fmt.Println("All anchor questions are answered.")
				return nil
			}
			fmt.Println(prompt.Next(q, engine.Explain(cat, q)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestFile, "file", "f", "", "run manifest with answers already given")
	cmd.Flags().StringToStringVar(&existingFlag, "existing", nil, "existing answer as id=value (repeatable)")

	return cmd
}

// existingAnswers merges the manifest's answers with --existing flags. The
// returned manifest is empty when no file was given.
func existingAnswers(manifestFile string, flags map[string]string) (map[string]answer.Answer, *manifest.Manifest, error) {
	m := &manifest.Manifest{}
	if manifestFile != "" {
		var err error
		m, err = manifest.Load(manifestFile)
		if err != nil {
			return nil, nil, err
		}
	}

	existing := m.ExistingAnswers()
	for id, v := range flags {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, nil, fmt.Errorf("--existing requires id=value")
		}
		src, conf := answer.SourceUser, answer.ConfidenceUser
		if answer.IsSkipped(v) {
			src, conf = answer.SourceSkipped, answer.ConfidenceSkipped
		}
		existing[id] = answer.Answer{QuestionID: id, Value: v, Source: src, Confidence: conf}
	}
	return existing, m, nil
}

// writeEvidence writes the run's evidence bundle and returns its directory.
func writeEvidence(baseDir, manifestFile string, manifestData []byte, res *inference.Result, allowed map[string][]string, inputHash, profile string) (string, error) {
	w, err := evidence.NewWriter(baseDir, res.RunID)
	if err != nil {
		return "", err
	}

	ref, _, err := w.WriteBlob("manifest", manifestData)
	if err != nil {
		return "", err
	}

	record := evidence.RunRecord{
		ID:              res.RunID,
		Timestamp:       time.Now().UTC(),
		CatalogVersion:  res.CatalogVersion,
		ManifestFile:    manifestFile,
		ManifestRef:     ref,
		InputHash:       inputHash,
		DefaultsProfile: profile,
		Passes:          res.Passes,
		Histogram:       res.Histogram,
		ToolVersions:    map[string]string{"anchorfill": version},
	}
	if err := w.WriteRun(record); err != nil {
		return "", err
	}
	if err := w.WriteAnswers(res.Answers); err != nil {
		return "", err
	}

	if len(allowed) > 0 {
		// Check works on a copy; the result already carries the flags.
		answers := append([]answer.Answer(nil), res.Answers...)
		g := gate.NewOptionGate(allowed)
		if err := w.WriteGate(g.Name(), g.Check(answers)); err != nil {
			return "", err
		}
	}

	if err := w.WriteReviewLog(res.Answers, res.DiagnosticMessages()); err != nil {
		return "", err
	}
	if err := w.WritePrompt(res.NextPrompt); err != nil {
		return "", err
	}
	return w.RunDir(), nil
}

// archivedResult rebuilds the Result of an archived run. Option violations
// and the next prompt are recomputed; anchor diagnostics are not archived.
func archivedResult(rec *archive.RunRecord, engine *inference.Engine, cat *catalog.Catalog, allowed map[string][]string, interactive bool) *inference.Result {
	res := &inference.Result{
		RunID:          rec.ID,
		CatalogVersion: rec.CatalogVersion,
		Answers:        rec.Answers,
		Histogram:      rec.Histogram,
		Passes:         rec.Passes,
	}

	if len(allowed) > 0 {
		answers := append([]answer.Answer(nil), rec.Answers...)
		gr := gate.NewOptionGate(allowed).Check(answers)
		res.Violations = gr.Violations
		res.Diagnostics = gr.Errors
	}

	if interactive {
		existing := make(map[string]answer.Answer)
		for _, a := range rec.Answers {
			if a.Source == answer.SourceUser || a.Source == answer.SourceSkipped {
				existing[a.QuestionID] = a
			}
		}
		if q, ok := engine.NextAnchor(cat, existing); ok {
			res.NextQuestionID = q.ID
			res.NextPrompt = prompt.Next(q, engine.Explain(cat, q))
		}
	}
	return res
}

func writeOutput(path string, v any) error {
	if path == "" {
		return printJSON(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
