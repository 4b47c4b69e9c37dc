package prompt

import (
	"strings"
	"testing"

	"github.com/zen-systems/anchorfill/pkg/catalog"
)

func TestNextFormat(t *testing.T) {
	q := catalog.Question{
		ID:          "2.6",
		Text:        "Does the service process personal data?",
		Options:     []string{"Yes", "No", "Not Applicable"},
		Explanation: "privacy section",
	}

	got := Next(q, "it decides the privacy section")
	want := "Why we're asking 2.6: it decides the privacy section\n\n" +
		"Actual Question (2.6): Does the service process personal data?\n\n" +
		"Available options: Yes | No | Not Applicable"
	if got != want {
		t.Fatalf("unexpected prompt:\n%s\nwant:\n%s", got, want)
	}
}

func TestNextFallsBackToQuestionExplanation(t *testing.T) {
	q := catalog.Question{ID: "7.1", Text: "Uses AI?", Options: []string{"Yes", "No"}, Explanation: "AI section"}
	if got := Next(q, "  "); !strings.HasPrefix(got, "Why we're asking 7.1: AI section\n") {
		t.Fatalf("explanation fallback missing: %q", got)
	}

	q.Explanation = ""
	if got := Next(q, ""); !strings.Contains(got, Resolves(0)) {
		t.Fatalf("generic fallback missing: %q", got)
	}
}

func TestResolves(t *testing.T) {
	if got := Resolves(1); got != "this answer settles 1 other question" {
		t.Fatalf("Resolves(1) = %q", got)
	}
	if got := Resolves(12); got != "this answer settles 12 other questions" {
		t.Fatalf("Resolves(12) = %q", got)
	}
}
