package catalog

import (
	"errors"
	"testing"
)

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"7.3", "7.15", -1},
		{"7.15", "7.3", 1},
		{"10.1", "9.6", 1},
		{"2.6", "2.6", 0},
		{"7", "7.1", -1},
		{"7.1.2", "7.1", 1},
		{"7.a", "7.1", 1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClusterOf(t *testing.T) {
	tests := map[string]string{
		"7.15":  "7",
		"12.1":  "12",
		"4":     "4",
		" 9.2 ": "9",
	}
	for id, want := range tests {
		if got := ClusterOf(id); got != want {
			t.Errorf("ClusterOf(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New("", nil); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New("", []Question{{ID: "1.1"}, {ID: "1.1"}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewSortsAndVersions(t *testing.T) {
	c, err := New("", []Question{{ID: "7.15"}, {ID: "7.3"}, {ID: "10.1"}, {ID: "2.6"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var ids []string
	for _, q := range c.Questions() {
		ids = append(ids, q.ID)
	}
	want := []string{"2.6", "7.3", "7.15", "10.1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
	if c.Version() == "" {
		t.Fatalf("expected content hash version")
	}

	again, _ := New("", []Question{{ID: "2.6"}, {ID: "7.3"}, {ID: "7.15"}, {ID: "10.1"}})
	if again.Version() != c.Version() {
		t.Fatalf("version should not depend on input order")
	}
}

func TestGetUnknownReturnsLookupError(t *testing.T) {
	c := Builtin()
	_, err := c.Get("99.9")
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if lookupErr.ID != "99.9" {
		t.Fatalf("lookup id = %q", lookupErr.ID)
	}
}

func TestQuestionsReturnsCopy(t *testing.T) {
	c := Builtin()
	qs := c.Questions()
	qs[0].Text = "mutated"
	q, _ := c.Get(qs[0].ID)
	if q.Text == "mutated" {
		t.Fatalf("catalog must not be mutable through Questions()")
	}
}

func TestBuiltinShape(t *testing.T) {
	c := Builtin()
	if got := len(c.Clusters()); got != 13 {
		t.Fatalf("clusters = %d, want 13", got)
	}
	if len(c.Anchors()) < 7 {
		t.Fatalf("expected at least 7 anchors, got %d", len(c.Anchors()))
	}
	for _, q := range c.Questions() {
		if q.GatingQuestionID == "" {
			continue
		}
		if !c.Has(q.GatingQuestionID) {
			t.Errorf("question %s gated by unknown %s", q.ID, q.GatingQuestionID)
		}
	}
	if got := len(c.InCluster("7")); got != 22 {
		t.Fatalf("cluster 7 size = %d, want 22", got)
	}
}

func TestGatingQuestion(t *testing.T) {
	c := Builtin()
	g, ok, err := c.GatingQuestion("7.18")
	if err != nil || !ok {
		t.Fatalf("gating question: ok=%v err=%v", ok, err)
	}
	if g.ID != "7.3" {
		t.Fatalf("gate = %s, want 7.3", g.ID)
	}
	if _, ok, _ := c.GatingQuestion("1.1"); ok {
		t.Fatalf("1.1 should not be gated")
	}
}

func TestHolderSwap(t *testing.T) {
	first := Builtin()
	h := NewHolder(first)
	second, _ := New("v2", []Question{{ID: "1.1"}})
	if prev := h.Swap(second); prev != first {
		t.Fatalf("swap returned wrong previous snapshot")
	}
	if h.Load().Version() != "v2" {
		t.Fatalf("holder did not publish new snapshot")
	}
}
