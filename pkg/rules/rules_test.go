package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/config"
)

func builtinRules(t *testing.T) *RuleSet {
	t.Helper()
	return NewRuleSet(config.DefaultRulesConfig(), WithAliases(config.DefaultAliases()))
}

func TestRule_Match(t *testing.T) {
	rs := builtinRules(t)

	tests := []struct {
		name  string
		rule  string
		value string
		want  Outcome
	}{
		{"plain yes", "privacy", "Yes", Positive},
		{"lower case no", "privacy", "no", Negative},
		{"not applicable variant", "privacy", "Not applicable - internal tool", Negative},
		{"alias n/a", "privacy", "N/A", Negative},
		{"alias y", "privacy", "y", Positive},
		{"unmatched", "privacy", "Partially", Unknown},
		{"blank", "privacy", "   ", Unknown},
		{"skip sentinel", "privacy", answer.SkippedAnswer, Unknown},
		{"pci long negative", "payment-card", "Not applicable / No credit card data involved", Negative},
		{"pci extra spaces", "payment-card", "Not applicable /  No credit card data involved", Negative},
		{"pci outsourced", "payment-card", "Outsourced to a PCI DSS compliant processor", Positive},
		{"pci yes", "payment-card", "Yes - we store, process or transmit card data", Positive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := rs.Get(tt.rule)
			if !ok {
				t.Fatalf("rule %s missing", tt.rule)
			}
			if got := r.Match(tt.value); got != tt.want {
				t.Errorf("Match(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestRule_EvaluateSkippedAnswer(t *testing.T) {
	rs := builtinRules(t)
	r, _ := rs.Get("privacy")

	skipped := &answer.Answer{QuestionID: "2.6", Value: "No", Source: answer.SourceSkipped}
	if got := r.Evaluate(skipped); got != Unknown {
		t.Fatalf("skipped answer evaluated to %s, want unknown", got)
	}
	if got := r.Evaluate(nil); got != Unknown {
		t.Fatalf("nil answer evaluated to %s, want unknown", got)
	}
	user := &answer.Answer{QuestionID: "2.6", Value: "No", Source: answer.SourceUser}
	if got := r.Evaluate(user); got != Negative {
		t.Fatalf("user answer evaluated to %s, want negative", got)
	}
}

func TestRule_Covers(t *testing.T) {
	rs := builtinRules(t)
	ai, _ := rs.Get("ai-ml")
	gen, _ := rs.Get("generative-ai")

	if ai.Covers("7.1") {
		t.Errorf("rule must not cover its own gate")
	}
	if !ai.Covers("7.3") || !ai.Covers("7.18") {
		t.Errorf("ai-ml should cover the whole cluster")
	}
	if ai.Covers("17.1") {
		t.Errorf("cluster match must not be a string prefix match")
	}
	if gen.Covers("7.3") || gen.Covers("7.14") || gen.Covers("7.23") {
		t.Errorf("generative-ai covers outside its range")
	}
	if !gen.Covers("7.15") || !gen.Covers("7.22") {
		t.Errorf("generative-ai range must be inclusive")
	}
	if !gen.Covers("7.22.1") || !gen.Covers("7.15.3") {
		t.Errorf("generative-ai must cover ids nested under its bounds")
	}
	if gen.Covers("7.23.1") || gen.Covers("7.2") {
		t.Errorf("nesting must not widen the range")
	}
}

func TestRuleSet_Covers(t *testing.T) {
	rs := builtinRules(t)
	ai, _ := rs.Get("ai-ml")

	if !rs.Covers(ai, "7.3") {
		t.Errorf("set should report coverage for its own rule")
	}
	if rs.Covers(nil, "7.3") {
		t.Errorf("nil rule covers nothing")
	}
	other, _ := builtinRules(t).Get("ai-ml")
	if rs.Covers(other, "7.3") {
		t.Errorf("rule from another set must not be reported")
	}
}

func TestRuleSet_Governing(t *testing.T) {
	rs := builtinRules(t)
	tests := map[string]string{
		"7.2":  "ai-ml",
		"7.3":  "ai-ml",
		"7.16": "generative-ai",
		"4.1":  "privacy",
		"1.1":  "",
	}
	for id, want := range tests {
		got := ""
		if r := rs.Governing(id); r != nil {
			got = r.ID
		}
		if got != want {
			t.Errorf("Governing(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestRuleSet_OrderAndGates(t *testing.T) {
	rs := builtinRules(t)
	rules := rs.Rules()
	if rules[len(rules)-1].ID != "generative-ai" {
		t.Fatalf("range rules should evaluate last, got %s", rules[len(rules)-1].ID)
	}
	if got := rs.ForGate("9.1"); len(got) != 1 || got[0].ID != "payment-card" {
		t.Fatalf("ForGate(9.1) = %v", got)
	}
}

func TestRule_PositiveValueFor(t *testing.T) {
	rs := builtinRules(t)
	pci, _ := rs.Get("payment-card")
	if v, ok := pci.PositiveValueFor("9.2"); !ok || v != "No" {
		t.Fatalf("override for 9.2 = %q, %v", v, ok)
	}
	if _, ok := pci.PositiveValueFor("9.3"); ok {
		t.Fatalf("9.3 should use its own default")
	}
}

func TestRuleSet_Validate(t *testing.T) {
	rs := builtinRules(t)
	if errs := rs.Validate(catalog.Builtin()); len(errs) != 0 {
		t.Fatalf("builtin rules should validate: %v", errs)
	}

	cfg := &config.RulesConfig{Rules: map[string]config.GateRule{
		"orphan": {Gate: "42.1", Positive: []string{"Yes"}},
	}}
	errs := NewRuleSet(cfg).Validate(catalog.Builtin())
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var lookupErr *catalog.LookupError
	if !errors.As(errs[0], &lookupErr) || lookupErr.ID != "42.1" {
		t.Fatalf("expected lookup error for 42.1, got %v", errs[0])
	}
}

func TestRuleSet_CheckGating(t *testing.T) {
	if errs := builtinRules(t).CheckGating(catalog.Builtin()); len(errs) != 0 {
		t.Fatalf("builtin catalog and rules should agree: %v", errs)
	}

	cat, err := catalog.New("", []catalog.Question{
		{ID: "1.1", Text: "Gate?", IsAnchor: true},
		{ID: "1.2", Text: "Covered", GatingQuestionID: "1.1"},
		{ID: "2.1", Text: "Outside the rule's cluster", GatingQuestionID: "1.1"},
		{ID: "2.2", Text: "Dangling gate", GatingQuestionID: "9.9"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rs := NewRuleSet(&config.RulesConfig{Rules: map[string]config.GateRule{
		"one": {Gate: "1.1", Positive: []string{"Yes"}},
	}})

	errs := rs.CheckGating(cat)
	if len(errs) != 2 {
		t.Fatalf("expected two problems, got %v", errs)
	}
	if !strings.Contains(errs[0].Error(), "2.1") {
		t.Errorf("first problem should name 2.1: %v", errs[0])
	}
	var lookupErr *catalog.LookupError
	if !errors.As(errs[1], &lookupErr) || lookupErr.ID != "9.9" {
		t.Errorf("expected lookup error for 9.9, got %v", errs[1])
	}
}

func TestRuleSet_Fingerprint(t *testing.T) {
	base := builtinRules(t).Fingerprint()
	if base != builtinRules(t).Fingerprint() {
		t.Fatalf("fingerprint must be stable across builds")
	}

	cfg := config.DefaultRulesConfig()
	delete(cfg.Rules, "privacy")
	if NewRuleSet(cfg, WithAliases(config.DefaultAliases())).Fingerprint() == base {
		t.Errorf("removing a rule must change the fingerprint")
	}

	aliases := config.DefaultAliases()
	aliases.Aliases["yep"] = "Yes"
	if NewRuleSet(config.DefaultRulesConfig(), WithAliases(aliases)).Fingerprint() == base {
		t.Errorf("changing aliases must change the fingerprint")
	}
}

func TestNewRuleSetDefaultsNegativeValue(t *testing.T) {
	cfg := &config.RulesConfig{Rules: map[string]config.GateRule{
		"r": {Gate: "3.1", Negative: []string{"No"}},
	}}
	rs := NewRuleSet(cfg)
	r, _ := rs.Get("r")
	if r.NegativeValue != answer.NotApplicable {
		t.Fatalf("negative value = %q", r.NegativeValue)
	}
	if r.Target.Cluster != "3" {
		t.Fatalf("target cluster = %q", r.Target.Cluster)
	}
}

func TestRule_Triggers(t *testing.T) {
	rs := builtinRules(t)
	r, _ := rs.Get("privacy")
	pos, neg := r.Triggers()
	if len(pos) != 1 || pos[0] != "yes*" {
		t.Fatalf("positive triggers = %v", pos)
	}
	if len(neg) != 3 || neg[0] != "no" || neg[1] != "not applicable*" || neg[2] != "not applicable" {
		t.Fatalf("negative triggers = %v", neg)
	}
}
