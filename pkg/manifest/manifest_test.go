package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/anchorfill/pkg/answer"
)

func TestLoadManifest(t *testing.T) {
	content := `catalog: questions.yaml
defaults: conservative
max_questions: 5
interactive: true
anchors:
  "2.6": "No"
  "7.1": "Yes"
  "13.1": __SKIPPED__
allowed_options:
  "4.1": "Yes | No"
  "9.2": ["Yes", "No", "Not Applicable"]
existing:
  "9.1": "Outsourced to a PCI DSS compliant processor"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "questions.yaml"), m.CatalogPath())
	assert.Equal(t, "conservative", m.Defaults)
	assert.Equal(t, 5, m.MaxQuestions)
	assert.True(t, m.Interactive)

	require.Len(t, m.Anchors, 3)
	assert.Equal(t, answer.AnchorAnswer{QuestionID: "2.6", Value: "No"}, m.Anchors[0])
	assert.Equal(t, "13.1", m.Anchors[2].QuestionID)
	assert.True(t, m.Anchors[2].Skipped())

	allowed := m.Allowed()
	assert.Equal(t, []string{"Yes", "No"}, allowed["4.1"])
	assert.Len(t, allowed["9.2"], 3)

	existing := m.ExistingAnswers()
	assert.Len(t, existing, 4)
	assert.Equal(t, answer.SourceSkipped, existing["13.1"].Source)
	assert.Equal(t, answer.SourceUser, existing["9.1"].Source)
}

func TestParseJSONListAnchors(t *testing.T) {
	m, err := Parse([]byte(`{"anchors": [{"question_id": "2.6", "value": "No"}, {"question_id": "2.6", "value": "Yes"}]}`))
	require.NoError(t, err)
	require.Len(t, m.Anchors, 2)
	assert.Equal(t, "Yes", m.Anchors[1].Value)
	assert.Empty(t, m.CatalogPath())
	assert.Nil(t, m.Allowed())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative max":    "max_questions: -1\n",
		"nested anchor":   "anchors:\n  \"2.6\":\n    - No\n",
		"scalar anchors":  "anchors: yes\n",
		"empty anchor id": "anchors:\n  - question_id: \"\"\n    value: No\n",
		"mapping options": "allowed_options:\n  \"4.1\":\n    a: b\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
