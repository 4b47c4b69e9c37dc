package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/archive"
	"github.com/zen-systems/anchorfill/pkg/config"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestPredictAttestVerify(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ANCHORFILL_HOME", home)
	work := t.TempDir()

	manifestPath := writeManifest(t, work, `anchors:
  "2.6": "No"
allowed_options:
  "2.6": [Yes, No]
  "4.1": Yes
`)
	out := filepath.Join(work, "result.json")
	evidenceDir := filepath.Join(work, "evidence")

	require.NoError(t, execute(t, "predict", "-f", manifestPath, "--out", out, "--evidence", evidenceDir))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var res struct {
		RunID   string          `json:"run_id"`
		Answers []answer.Answer `json:"answers"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	require.NotEmpty(t, res.RunID)

	byID := make(map[string]answer.Answer, len(res.Answers))
	for _, a := range res.Answers {
		byID[a.QuestionID] = a
	}
	assert.Equal(t, answer.SourceUser, byID["2.6"].Source)
	assert.Equal(t, answer.NotApplicable, byID["4.1"].Value)
	assert.True(t, byID["4.1"].NeedsReview, "4.1 is outside its allowed options")

	runDir := filepath.Join(evidenceDir, res.RunID)
	for _, rel := range []string{"run.json", "answers.json", "review.log", "gates/allowed_options.json"} {
		_, err := os.Stat(filepath.Join(runDir, rel))
		assert.NoError(t, err, rel)
	}

	attPath := filepath.Join(work, "attestation.json")
	require.NoError(t, execute(t, "attest", "--run", runDir, "--out", attPath))
	require.NoError(t, execute(t, "verify", "--attestation", attPath, "--run", runDir))

	store, err := archive.Open(filepath.Join(home, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, runDir, rec.EvidenceDir)

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Attested)
}

func TestVerifyDetectsTamperedEvidence(t *testing.T) {
	t.Setenv("ANCHORFILL_HOME", t.TempDir())
	work := t.TempDir()

	manifestPath := writeManifest(t, work, "anchors:\n  \"2.6\": \"Yes\"\n")
	out := filepath.Join(work, "result.json")
	evidenceDir := filepath.Join(work, "evidence")
	require.NoError(t, execute(t, "predict", "-f", manifestPath, "--out", out, "--evidence", evidenceDir, "--no-archive"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var res struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	runDir := filepath.Join(evidenceDir, res.RunID)

	attPath := filepath.Join(work, "attestation.json")
	require.NoError(t, execute(t, "attest", "--run", runDir, "--out", attPath, "--no-sign"))

	require.NoError(t, os.WriteFile(filepath.Join(runDir, "answers.json"), []byte("[]"), 0600))
	assert.Error(t, execute(t, "verify", "--attestation", attPath, "--run", runDir))
}

type predictOutput struct {
	RunID      string          `json:"run_id"`
	NextPrompt string          `json:"next_prompt"`
	Answers    []answer.Answer `json:"answers"`
}

func readPredictOutput(t *testing.T, path string) predictOutput {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out predictOutput
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func answerFor(out predictOutput, id string) answer.Answer {
	for _, a := range out.Answers {
		if a.QuestionID == id {
			return a
		}
	}
	return answer.Answer{}
}

func TestPredictReuse(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ANCHORFILL_HOME", home)
	work := t.TempDir()

	manifestPath := writeManifest(t, work, "anchors:\n  \"2.6\": \"No\"\ninteractive: true\n")
	run := func(name string) predictOutput {
		out := filepath.Join(work, name)
		require.NoError(t, execute(t, "predict", "-f", manifestPath, "--out", out, "--no-evidence", "--reuse"))
		return readPredictOutput(t, out)
	}

	first := run("first.json")
	require.NotEmpty(t, first.RunID)
	require.NotEmpty(t, first.NextPrompt)

	second := run("second.json")
	assert.Equal(t, first.RunID, second.RunID, "identical inputs reuse the archived run")
	assert.Equal(t, first.NextPrompt, second.NextPrompt)
	assert.Equal(t, first.Answers, second.Answers)

	// Dropping the privacy rule must invalidate the archived prediction.
	rulesYAML := `rules:
  ai-ml:
    gate: "7.1"
    positive: ["Yes"]
    negative: ["No"]
    target:
      cluster: "7"
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "rules.yaml"), []byte(rulesYAML), 0644))

	third := run("third.json")
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.Equal(t, answer.SourceDefault, answerFor(third, "4.1").Source)
	assert.Equal(t, answer.SourceInferred, answerFor(first, "4.1").Source)
}

func TestPredictRequiresManifest(t *testing.T) {
	t.Setenv("ANCHORFILL_HOME", t.TempDir())
	assert.Error(t, execute(t, "predict"))
}

func TestExistingAnswers(t *testing.T) {
	work := t.TempDir()
	manifestPath := writeManifest(t, work, `anchors:
  "2.6": __SKIPPED__
existing:
  "1.2": "Yes"
`)

	existing, m, err := existingAnswers(manifestPath, map[string]string{"7.1": "No", "1.2": "No"})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, answer.SourceSkipped, existing["2.6"].Source)
	assert.Equal(t, "No", existing["1.2"].Value, "flags override the manifest")
	assert.Equal(t, answer.SourceUser, existing["7.1"].Source)

	_, _, err = existingAnswers("", map[string]string{" ": "Yes"})
	assert.Error(t, err)
}

func TestFormatTarget(t *testing.T) {
	tests := []struct {
		target config.RuleTarget
		want   string
	}{
		{config.RuleTarget{Cluster: "4"}, "4.*"},
		{config.RuleTarget{Cluster: "7", From: "7.15", To: "7.22"}, "7.* [7.15-7.22]"},
		{config.RuleTarget{Cluster: "7", From: "7.15"}, "7.* [7.15-]"},
		{config.RuleTarget{Cluster: "7", To: "7.14"}, "7.* [-7.14]"},
	}
	for _, tt := range tests {
		if got := formatTarget(tt.target); got != tt.want {
			t.Errorf("formatTarget(%+v) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
