// Package archive keeps the history of inference runs in SQLite.
package archive

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zen-systems/anchorfill/pkg/answer"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when a run is not in the archive.
var ErrNotFound = errors.New("run not found")

// RunRecord is a stored inference run.
type RunRecord struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	CatalogVersion  string           `json:"catalog_version"`
	InputHash       string           `json:"input_hash"`
	DefaultsProfile string           `json:"defaults_profile,omitempty"`
	Passes          int              `json:"passes"`
	Histogram       answer.Histogram `json:"histogram"`
	Answers         []answer.Answer  `json:"answers,omitempty"`
	EvidenceDir     string           `json:"evidence_dir,omitempty"`
}

// RunSummary is a RunRecord without answers.
type RunSummary struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	CatalogVersion string           `json:"catalog_version"`
	InputHash      string           `json:"input_hash"`
	Passes         int              `json:"passes"`
	Histogram      answer.Histogram `json:"histogram"`
	Attested       bool             `json:"attested"`
}

// Store is the SQLite run archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the archive database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("archive: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %s: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id               TEXT PRIMARY KEY,
			created_at       TEXT    NOT NULL,
			catalog_version  TEXT    NOT NULL,
			input_hash       TEXT    NOT NULL,
			defaults_profile TEXT    NOT NULL DEFAULT '',
			passes           INTEGER NOT NULL,
			histogram        TEXT    NOT NULL,
			answers          TEXT    NOT NULL,
			evidence_dir     TEXT    NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input_hash, catalog_version);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

		CREATE TABLE IF NOT EXISTS attestations (
			run_id     TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			payload    TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores rec. A run id may be stored once.
func (s *Store) SaveRun(rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("archive: run id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	hist, err := json.Marshal(rec.Histogram)
	if err != nil {
		return err
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, created_at, catalog_version, input_hash, defaults_profile, passes, histogram, answers, evidence_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.CatalogVersion, rec.InputHash,
		rec.DefaultsProfile, rec.Passes, string(hist), string(answers), rec.EvidenceDir,
	)
	if err != nil {
		return fmt.Errorf("archive: save run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun returns the stored run with id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, catalog_version, input_hash, defaults_profile, passes, histogram, answers, evidence_dir
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive: %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// FindByInput returns the most recent run with the same input hash against
// the same catalog version.
func (s *Store) FindByInput(inputHash, catalogVersion string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, catalog_version, input_hash, defaults_profile, passes, histogram, answers, evidence_dir
		FROM runs WHERE input_hash = ? AND catalog_version = ?
		ORDER BY created_at DESC LIMIT 1`, inputHash, catalogVersion)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive: input %s: %w", inputHash, ErrNotFound)
	}
	return rec, err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT r.id, r.created_at, r.catalog_version, r.input_hash, r.passes, r.histogram, a.run_id IS NOT NULL
		FROM runs r LEFT JOIN attestations a ON a.run_id = r.id
		ORDER BY r.created_at DESC, r.id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum       RunSummary
			createdAt string
			hist      string
		)
		if err := rows.Scan(&sum.ID, &createdAt, &sum.CatalogVersion, &sum.InputHash, &sum.Passes, &hist, &sum.Attested); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(hist), &sum.Histogram); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SaveAttestation stores the attestation payload for a run, replacing any
// previous one.
func (s *Store) SaveAttestation(runID string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("archive: attestation for %s is not valid json", runID)
	}
	_, err := s.db.Exec(`
		INSERT INTO attestations (run_id, created_at, payload) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET created_at = excluded.created_at, payload = excluded.payload`,
		runID, time.Now().UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("archive: save attestation %s: %w", runID, err)
	}
	return nil
}

// GetAttestation returns the stored attestation payload for a run.
func (s *Store) GetAttestation(runID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM attestations WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive: attestation %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		rec       RunRecord
		createdAt string
		hist      string
		answers   string
	)
	if err := row.Scan(&rec.ID, &createdAt, &rec.CatalogVersion, &rec.InputHash, &rec.DefaultsProfile,
		&rec.Passes, &hist, &answers, &rec.EvidenceDir); err != nil {
		return nil, err
	}
	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hist), &rec.Histogram); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return nil, err
	}
	return &rec, nil
}

// InputHash fingerprints a run's inputs: anchors in order, the option
// constraints, the defaults profile, and the engine fingerprint covering
// the rule, alias, and default tables.
func InputHash(anchors []answer.AnchorAnswer, allowed map[string][]string, profile, engine string) string {
	h := sha256.New()
	for _, a := range anchors {
		fmt.Fprintf(h, "a\x00%s\x00%s\n", strings.TrimSpace(a.QuestionID), a.Value)
	}
	ids := make([]string, 0, len(allowed))
	for id := range allowed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(h, "o\x00%s\x00%s\n", id, strings.Join(allowed[id], "\x1f"))
	}
	fmt.Fprintf(h, "p\x00%s\n", profile)
	fmt.Fprintf(h, "e\x00%s\n", engine)
	return hex.EncodeToString(h.Sum(nil))
}
