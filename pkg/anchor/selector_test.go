package anchor

import (
	"testing"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/catalog"
)

func ids(qs []catalog.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectOrdersByPriority(t *testing.T) {
	got := ids(Select(catalog.Builtin(), nil, 0))
	want := []string{"2.6", "7.1", "9.1", "7.3", "13.1", "11.1", "5.1"}
	if !equalIDs(got, want) {
		t.Fatalf("Select = %v, want %v", got, want)
	}
}

func TestSelectSkipsExistingAnswers(t *testing.T) {
	existing := map[string]answer.Answer{
		"2.6": {QuestionID: "2.6", Value: "Yes", Source: answer.SourceUser},
		"9.1": {QuestionID: "9.1", Value: "No", Source: answer.SourceUser},
	}
	got := ids(Select(catalog.Builtin(), existing, 5))
	want := []string{"7.1", "7.3", "13.1", "11.1", "5.1"}
	if !equalIDs(got, want) {
		t.Fatalf("Select = %v, want %v", got, want)
	}
}

func TestSelectTieBreaksByID(t *testing.T) {
	cat, err := catalog.New("", []catalog.Question{
		{ID: "3.10", IsAnchor: true, Priority: 1},
		{ID: "3.2", IsAnchor: true, Priority: 1},
		{ID: "1.1", IsAnchor: true, Priority: 2},
		{ID: "1.2", Priority: 0},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	got := ids(Select(cat, nil, 10))
	want := []string{"3.2", "3.10", "1.1"}
	if !equalIDs(got, want) {
		t.Fatalf("Select = %v, want %v", got, want)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	cat := catalog.Builtin()
	first := ids(Select(cat, nil, 10))
	for i := 0; i < 5; i++ {
		if got := ids(Select(cat, nil, 10)); !equalIDs(got, first) {
			t.Fatalf("run %d = %v, want %v", i, got, first)
		}
	}
}

func TestSelectAllAnswered(t *testing.T) {
	cat := catalog.Builtin()
	existing := make(map[string]answer.Answer)
	for _, q := range cat.Anchors() {
		existing[q.ID] = answer.Answer{QuestionID: q.ID, Value: "Yes"}
	}
	if got := Select(cat, existing, 3); len(got) != 0 {
		t.Fatalf("expected no anchors, got %v", ids(got))
	}
}
