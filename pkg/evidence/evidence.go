// Package evidence writes per-run evidence bundles: run metadata, the
// produced answers, gate results, and a human-readable review log.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/gate"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	CatalogVersion  string            `json:"catalog_version"`
	ManifestFile    string            `json:"manifest_file,omitempty"`
	ManifestRef     string            `json:"manifest_ref,omitempty"`
	InputHash       string            `json:"input_hash"`
	DefaultsProfile string            `json:"defaults_profile,omitempty"`
	Passes          int               `json:"passes"`
	Histogram       answer.Histogram  `json:"histogram"`
	ToolVersions    map[string]string `json:"tool_versions,omitempty"`
}

// GateRecord captures gate evaluation results.
type GateRecord struct {
	Name       string           `json:"name"`
	Passed     bool             `json:"passed"`
	Score      int              `json:"score"`
	Checked    int              `json:"checked"`
	Violations []gate.Violation `json:"violations,omitempty"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	for _, dir := range []string{runDir, filepath.Join(runDir, "gates"), filepath.Join(runDir, "blobs")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		// MkdirAll leaves existing directories alone and is subject to umask.
		if err := os.Chmod(dir, 0700); err != nil {
			return nil, err
		}
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteAnswers writes the run's answers to answers.json.
func (w *Writer) WriteAnswers(answers []answer.Answer) error {
	return writeJSON(filepath.Join(w.runDir, "answers.json"), answers)
}

// WriteGate writes a gate result to gates/<name>.json.
func (w *Writer) WriteGate(name string, result *gate.GateResult) error {
	if name == "" {
		return fmt.Errorf("gate name is required")
	}
	if result == nil {
		return fmt.Errorf("gate %s: result is required", name)
	}
	record := GateRecord{
		Name:       name,
		Passed:     result.Passed,
		Score:      result.Score,
		Checked:    result.Checked,
		Violations: result.Violations,
	}
	return writeJSON(filepath.Join(w.runDir, "gates", name+".json"), record)
}

// WriteReviewLog writes review.log: one line per answer needing review,
// then one line per diagnostic.
func (w *Writer) WriteReviewLog(answers []answer.Answer, diagnostics []string) error {
	var sb strings.Builder
	for _, a := range answers {
		if !a.NeedsReview {
			continue
		}
		sb.WriteString(fmt.Sprintf("review %s: %q (%s, %.2f)\n", a.QuestionID, a.Value, a.Source, a.Confidence))
	}
	for _, d := range diagnostics {
		sb.WriteString(fmt.Sprintf("diagnostic: %s\n", d))
	}
	return os.WriteFile(filepath.Join(w.runDir, "review.log"), []byte(sb.String()), 0600)
}

// WritePrompt writes the next-anchor prompt to next_prompt.txt.
func (w *Writer) WritePrompt(text string) error {
	if text == "" {
		return nil
	}
	return os.WriteFile(filepath.Join(w.runDir, "next_prompt.txt"), []byte(text+"\n"), 0600)
}

// WriteBlob stores content under blobs/ addressed by its sha256 and
// returns the run-relative reference and the hex digest.
func (w *Writer) WriteBlob(kind string, content []byte) (string, string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])
	ref := filepath.ToSlash(filepath.Join("blobs", fmt.Sprintf("%s-%s.bin", sanitizeKind(kind), sha[:16])))
	path := filepath.Join(w.runDir, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err == nil {
		return ref, sha, nil
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", "", err
	}
	return ref, sha, nil
}

func sanitizeKind(kind string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(kind) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "blob"
	}
	return sb.String()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
