// Package attest builds, signs, and verifies attestations over a run's
// evidence bundle.
package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/evidence"
)

// SchemaV1 identifies the attestation format.
const SchemaV1 = "anchorfill.attestation.v1"

// Attestation binds a run's claims to the hashes of its evidence files.
type Attestation struct {
	Schema        string            `json:"schema"`
	AttestationID string            `json:"attestation_id"`
	Subject       Subject           `json:"subject"`
	Claim         Claim             `json:"claim"`
	Evidence      Evidence          `json:"evidence"`
	Hashes        map[string]string `json:"hashes"`
	Timestamp     int64             `json:"timestamp"`
	Signature     *Signature        `json:"signature,omitempty"`
}

// Subject identifies the attested run.
type Subject struct {
	RunID          string `json:"run_id"`
	CatalogVersion string `json:"catalog_version"`
	InputHash      string `json:"input_hash"`
}

// Claim summarizes the run's answers and gate outcomes.
type Claim struct {
	AnswerCount int              `json:"answer_count"`
	NeedsReview int              `json:"needs_review"`
	Histogram   answer.Histogram `json:"histogram"`
	Passed      bool             `json:"passed"`
	Gates       []GateClaim      `json:"gates,omitempty"`
}

// GateClaim summarizes a gate outcome.
type GateClaim struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Score  int    `json:"score"`
}

// Evidence references run artifacts.
type Evidence struct {
	RunJSON     string   `json:"run_json"`
	AnswersJSON string   `json:"answers_json"`
	ReviewLog   string   `json:"review_log,omitempty"`
	Blobs       []string `json:"blobs,omitempty"`
	Gates       []string `json:"gates,omitempty"`
}

// BuildAttestation builds an attestation for the evidence bundle in runDir.
func BuildAttestation(runDir string) (*Attestation, error) {
	if runDir == "" {
		return nil, fmt.Errorf("runDir is required")
	}

	var runRecord evidence.RunRecord
	if err := readJSON(runDir, "run.json", &runRecord); err != nil {
		return nil, err
	}
	claim, gateFiles, err := buildClaim(runDir)
	if err != nil {
		return nil, err
	}

	blobs, err := listDir(runDir, "blobs", "")
	if err != nil {
		return nil, err
	}
	if runRecord.ManifestRef != "" {
		if _, err := safeJoin(runDir, runRecord.ManifestRef); err != nil {
			return nil, fmt.Errorf("manifest ref %q: %w", runRecord.ManifestRef, err)
		}
		blobs = appendUnique(blobs, filepath.ToSlash(runRecord.ManifestRef))
	}

	ev := Evidence{
		RunJSON:     "run.json",
		AnswersJSON: "answers.json",
		Blobs:       blobs,
		Gates:       gateFiles,
	}
	if _, err := os.Stat(filepath.Join(runDir, "review.log")); err == nil {
		ev.ReviewLog = "review.log"
	}

	hashes := make(map[string]string)
	for _, rel := range ev.files() {
		if _, ok := hashes[rel]; ok {
			continue
		}
		sum, err := hashFile(runDir, rel)
		if err != nil {
			return nil, err
		}
		hashes[rel] = sum
	}

	att := &Attestation{
		Schema: SchemaV1,
		Subject: Subject{
			RunID:          runRecord.ID,
			CatalogVersion: runRecord.CatalogVersion,
			InputHash:      runRecord.InputHash,
		},
		Claim:     claim,
		Evidence:  ev,
		Hashes:    hashes,
		Timestamp: time.Now().UTC().Unix(),
	}
	id, err := att.computeID()
	if err != nil {
		return nil, err
	}
	att.AttestationID = id
	return att, nil
}

// buildClaim derives the claim from answers.json and gates/*.json.
func buildClaim(runDir string) (Claim, []string, error) {
	var answers []answer.Answer
	if err := readJSON(runDir, "answers.json", &answers); err != nil {
		return Claim{}, nil, err
	}

	claim := Claim{
		AnswerCount: len(answers),
		Histogram:   answer.HistogramOf(answers),
		Passed:      true,
	}
	for _, a := range answers {
		if a.NeedsReview {
			claim.NeedsReview++
		}
	}

	gateFiles, err := listDir(runDir, "gates", ".json")
	if err != nil {
		return Claim{}, nil, err
	}
	for _, rel := range gateFiles {
		var rec evidence.GateRecord
		if err := readJSON(runDir, rel, &rec); err != nil {
			return Claim{}, nil, err
		}
		claim.Gates = append(claim.Gates, GateClaim{Name: rec.Name, Passed: rec.Passed, Score: rec.Score})
		if !rec.Passed {
			claim.Passed = false
		}
	}
	sort.Slice(claim.Gates, func(i, j int) bool {
		return claim.Gates[i].Name < claim.Gates[j].Name
	})
	return claim, gateFiles, nil
}

func (e Evidence) files() []string {
	out := []string{e.RunJSON, e.AnswersJSON}
	if e.ReviewLog != "" {
		out = append(out, e.ReviewLog)
	}
	out = append(out, e.Blobs...)
	out = append(out, e.Gates...)
	return out
}

// computeID hashes the attestation content without id and signature.
func (a *Attestation) computeID() (string, error) {
	c := *a
	c.AttestationID = ""
	c.Signature = nil
	data, err := json.Marshal(&c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Validate checks the attestation for structural errors.
func (a *Attestation) Validate() error {
	if a.Schema != SchemaV1 {
		return fmt.Errorf("unknown attestation schema: %s", a.Schema)
	}
	if strings.TrimSpace(a.Subject.RunID) == "" {
		return fmt.Errorf("subject run_id required")
	}
	if !isHex64(a.AttestationID) {
		return fmt.Errorf("attestation_id invalid")
	}
	if len(a.Hashes) == 0 {
		return fmt.Errorf("hashes required")
	}
	for rel, sum := range a.Hashes {
		if !isHex64(sum) {
			return fmt.Errorf("hash for %s invalid", rel)
		}
	}
	if a.Timestamp <= 0 {
		return fmt.Errorf("timestamp required")
	}
	if a.Signature != nil {
		if err := a.Signature.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func readJSON(runDir, rel string, v any) error {
	path, err := safeJoin(runDir, rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", rel, err)
	}
	return nil
}

func hashFile(runDir, rel string) (string, error) {
	path, err := safeJoin(runDir, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// listDir returns run-relative paths of the files in runDir/dir with the
// given extension ("" for any), sorted.
func listDir(runDir, dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(runDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext != "" && filepath.Ext(entry.Name()) != ext {
			continue
		}
		out = append(out, filepath.ToSlash(filepath.Join(dir, entry.Name())))
	}
	sort.Strings(out)
	return out, nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	out := append(list, v)
	sort.Strings(out)
	return out
}

func safeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path not allowed")
	}
	normalized := filepath.FromSlash(rel)
	segments := strings.Split(normalized, string(filepath.Separator))
	for _, seg := range segments {
		if seg == ".." {
			return "", fmt.Errorf("path traversal detected")
		}
	}
	clean := filepath.Clean(normalized)
	if clean == "." {
		return "", fmt.Errorf("invalid path")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	targetAbs, err := filepath.Abs(filepath.Join(rootAbs, clean))
	if err != nil {
		return "", err
	}
	if targetAbs != rootAbs && !strings.HasPrefix(targetAbs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes run dir")
	}
	return targetAbs, nil
}

func isHex64(value string) bool {
	if len(value) != 64 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
