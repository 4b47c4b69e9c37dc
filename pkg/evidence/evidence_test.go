package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/gate"
)

func TestEvidenceWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-123")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	run := RunRecord{
		ID:             "run-123",
		Timestamp:      time.Now().UTC(),
		CatalogVersion: "builtin-1",
		InputHash:      "abc",
		Passes:         2,
	}
	if err := writer.WriteRun(run); err != nil {
		t.Fatalf("write run: %v", err)
	}

	answers := []answer.Answer{
		{QuestionID: "2.6", Value: "No", Source: answer.SourceUser, Confidence: 1},
		{QuestionID: "4.1", Value: "Not Applicable", Source: answer.SourceInferred, Confidence: 0.45, NeedsReview: true},
	}
	if err := writer.WriteAnswers(answers); err != nil {
		t.Fatalf("write answers: %v", err)
	}
	if err := writer.WriteReviewLog(answers, []string{"anchor references unknown question \"99.1\""}); err != nil {
		t.Fatalf("write review log: %v", err)
	}
	result := gate.NewOptionGate(map[string][]string{"4.1": {"Yes", "No"}}).Check(answers)
	if err := writer.WriteGate("allowed_options", result); err != nil {
		t.Fatalf("write gate: %v", err)
	}
	if err := writer.WritePrompt("Why we're asking 7.1: x"); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	for _, name := range []string{"run.json", "answers.json", "review.log", "next_prompt.txt", filepath.Join("gates", "allowed_options.json")} {
		if _, err := os.Stat(filepath.Join(writer.RunDir(), name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(writer.RunDir(), "answers.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded []answer.Answer
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Source != answer.SourceInferred {
		t.Fatalf("unexpected answers: %+v", decoded)
	}

	log, err := os.ReadFile(filepath.Join(writer.RunDir(), "review.log"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(log), "review 2.6") || !strings.Contains(string(log), "review 4.1") {
		t.Fatalf("unexpected review log:\n%s", log)
	}
	if !strings.Contains(string(log), "diagnostic: anchor references unknown question") {
		t.Fatalf("missing diagnostic line:\n%s", log)
	}

	if runtime.GOOS != "windows" {
		assertPerm(t, writer.RunDir(), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "gates"), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "blobs"), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "run.json"), 0600)
		assertPerm(t, filepath.Join(writer.RunDir(), "review.log"), 0600)
	}
}

func TestWritePromptSkipsEmpty(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run-empty")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.WritePrompt(""); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	if _, err := os.Stat(filepath.Join(writer.RunDir(), "next_prompt.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no prompt file, got %v", err)
	}
}

func TestNewWriterRequiresIDs(t *testing.T) {
	if _, err := NewWriter("", "run"); err == nil {
		t.Fatal("expected error for empty base dir")
	}
	if _, err := NewWriter(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty run ID")
	}
}

func TestWriteBlob(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run1")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	content := []byte("anchors:\n  \"2.6\": \"No\"\n")
	sum := sha256.Sum256(content)
	expectedSha := hex.EncodeToString(sum[:])

	ref, sha, err := writer.WriteBlob("manifest", content)
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if sha != expectedSha {
		t.Fatalf("sha mismatch: %s", sha)
	}

	data, err := os.ReadFile(filepath.Join(writer.RunDir(), ref))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != string(content) {
		t.Fatalf("content mismatch: %q", string(data))
	}

	ref2, sha2, err := writer.WriteBlob("manifest", content)
	if err != nil {
		t.Fatalf("write blob again: %v", err)
	}
	if ref2 != ref || sha2 != sha {
		t.Fatalf("expected same ref and sha")
	}
}

func TestWriteBlobKindSanitization(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run2")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	ref, _, err := writer.WriteBlob("Manifest 123/../", []byte("x"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if !strings.HasPrefix(ref, "blobs/manifest123-") {
		t.Fatalf("unexpected ref: %s", ref)
	}
	if strings.Count(ref, "/") != 1 {
		t.Fatalf("unexpected path separators in ref: %s", ref)
	}

	ref, _, err = writer.WriteBlob("!!!", []byte("y"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if !strings.HasPrefix(ref, "blobs/blob-") {
		t.Fatalf("expected blob kind fallback in ref: %s", ref)
	}
}

func assertPerm(t *testing.T, path string, expected os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Mode().Perm() != expected {
		t.Fatalf("expected %s mode %o, got %o", path, expected, info.Mode().Perm())
	}
}
