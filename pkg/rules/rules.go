// Package rules compiles the declarative gating table into rules the
// inference engine evaluates. New cluster gates are added as data in
// config.RulesConfig; nothing here is keyed by specific question ids.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/config"
)

// Outcome is the result of evaluating a gate answer.
type Outcome int

const (
	Unknown Outcome = iota
	Positive
	Negative
)

func (o Outcome) String() string {
	switch o {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unknown"
	}
}

type trigger struct {
	text   string
	prefix bool
}

// Rule is a compiled gating rule.
type Rule struct {
	ID            string
	Gate          string
	Description   string
	Target        config.RuleTarget
	PositiveValue string
	Overrides     map[string]string
	NegativeValue string

	positive []trigger
	negative []trigger
	aliases  *config.AnswerAliases
}

// Evaluate classifies the gate answer. Missing, skipped, and blank answers
// are Unknown, as are values matching neither trigger set.
func (r *Rule) Evaluate(a *answer.Answer) Outcome {
	if !a.Resolved() {
		return Unknown
	}
	return r.Match(a.Value)
}

// Match classifies a raw gate value.
func (r *Rule) Match(value string) Outcome {
	if answer.IsSkipped(value) {
		return Unknown
	}
	v := normalize(r.aliases, value)
	if v == "" {
		return Unknown
	}
	// Negative triggers are checked first so a value like "No" never
	// falls through to a broad positive prefix.
	if matchAny(r.negative, v) {
		return Negative
	}
	if matchAny(r.positive, v) {
		return Positive
	}
	return Unknown
}

// Covers reports whether the rule's target includes id. The rule's own
// gate is never covered. Ranges are inclusive of the ids nested under To.
func (r *Rule) Covers(id string) bool {
	if id == r.Gate {
		return false
	}
	if catalog.ClusterOf(id) != r.Target.Cluster {
		return false
	}
	if r.Target.From == "" {
		return true
	}
	if catalog.CompareIDs(id, r.Target.From) < 0 {
		return false
	}
	// Descendants of the upper bound, e.g. 7.22.1 under 7.22, stay in range.
	to := r.Target.To
	return to == "" || catalog.CompareIDs(id, to) <= 0 || strings.HasPrefix(id, to+".")
}

// PositiveValueFor returns the value a positive outcome pins for id, if any.
// An empty result means the question's own default applies.
func (r *Rule) PositiveValueFor(id string) (string, bool) {
	if v, ok := r.Overrides[id]; ok {
		return v, true
	}
	if r.PositiveValue != "" {
		return r.PositiveValue, true
	}
	return "", false
}

// Triggers returns the normalized positive and negative triggers, prefix
// triggers with a trailing "*".
func (r *Rule) Triggers() (positive, negative []string) {
	render := func(ts []trigger) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.text
			if t.prefix {
				out[i] += "*"
			}
		}
		return out
	}
	return render(r.positive), render(r.negative)
}

// Specificity ranks how narrowly a rule targets: range rules outrank
// whole-cluster rules.
func (r *Rule) Specificity() int {
	if r.Target.From != "" {
		return 2
	}
	return 1
}

// RuleSet contains the compiled gating rules.
type RuleSet struct {
	config  *config.RulesConfig
	aliases *config.AnswerAliases
	rules   []*Rule
	byID    map[string]*Rule
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithAliases resolves answer aliases before trigger matching.
func WithAliases(aliases *config.AnswerAliases) Option {
	return func(rs *RuleSet) {
		rs.aliases = aliases
	}
}

// NewRuleSet compiles cfg.
func NewRuleSet(cfg *config.RulesConfig, opts ...Option) *RuleSet {
	rs := &RuleSet{config: cfg, byID: make(map[string]*Rule)}
	for _, opt := range opts {
		opt(rs)
	}
	rs.compile()
	return rs
}

// compile builds rules ordered by specificity, then id.
func (rs *RuleSet) compile() {
	rs.rules = nil
	if rs.config == nil {
		return
	}

	for _, id := range rs.config.RuleIDs() {
		gr := rs.config.Rules[id]
		negValue := gr.NegativePolicy.Value
		if negValue == "" {
			negValue = rs.config.NegativeValue
		}
		if negValue == "" {
			negValue = answer.NotApplicable
		}
		r := &Rule{
			ID:            id,
			Gate:          strings.TrimSpace(gr.Gate),
			Description:   gr.Description,
			Target:        gr.Target,
			PositiveValue: gr.PositivePolicy.Value,
			Overrides:     gr.PositivePolicy.Overrides,
			NegativeValue: negValue,
			aliases:       rs.aliases,
		}
		if r.Target.Cluster == "" {
			r.Target.Cluster = catalog.ClusterOf(r.Gate)
		}
		r.positive = compileTriggers(rs.aliases, gr.Positive)
		r.negative = compileTriggers(rs.aliases, gr.Negative)
		rs.rules = append(rs.rules, r)
		rs.byID[id] = r
	}

	sort.SliceStable(rs.rules, func(i, j int) bool {
		if rs.rules[i].Specificity() != rs.rules[j].Specificity() {
			return rs.rules[i].Specificity() < rs.rules[j].Specificity()
		}
		return rs.rules[i].ID < rs.rules[j].ID
	})
}

// Rules returns the compiled rules in evaluation order.
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Get returns the rule with the given id.
func (rs *RuleSet) Get(id string) (*Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// ForGate returns the rules gated by questionID.
func (rs *RuleSet) ForGate(questionID string) []*Rule {
	var out []*Rule
	for _, r := range rs.rules {
		if r.Gate == questionID {
			out = append(out, r)
		}
	}
	return out
}

// Covers reports whether rule belongs to this set and its target includes id.
func (rs *RuleSet) Covers(rule *Rule, id string) bool {
	if rule == nil {
		return false
	}
	if r, ok := rs.byID[rule.ID]; !ok || r != rule {
		return false
	}
	return rule.Covers(id)
}

// Governing returns the most specific rule covering id, or nil.
func (rs *RuleSet) Governing(id string) *Rule {
	var best *Rule
	for _, r := range rs.rules {
		if !r.Covers(id) {
			continue
		}
		if best == nil || r.Specificity() > best.Specificity() {
			best = r
		}
	}
	return best
}

// Validate checks rule references against a catalog. Every gate that is
// not a catalog question is reported as a *catalog.LookupError.
func (rs *RuleSet) Validate(cat *catalog.Catalog) []error {
	var errs []error
	for _, r := range rs.rules {
		if !cat.Has(r.Gate) {
			errs = append(errs, &catalog.LookupError{ID: r.Gate, Ref: "rule " + r.ID})
		}
	}
	return errs
}

// CheckGating cross-checks the catalog's declared gating questions against
// the rule table. It reports questions whose gating question is missing
// from the catalog or has no rule covering the question.
func (rs *RuleSet) CheckGating(cat *catalog.Catalog) []error {
	var errs []error
	for _, q := range cat.Questions() {
		g, ok, err := cat.GatingQuestion(q.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		covered := false
		for _, r := range rs.ForGate(g.ID) {
			if r.Covers(q.ID) {
				covered = true
				break
			}
		}
		if !covered {
			errs = append(errs, fmt.Errorf("question %s is gated by %s but no rule on %s covers it", q.ID, g.ID, g.ID))
		}
	}
	return errs
}

// Fingerprint hashes everything that affects evaluation: the compiled
// rules in order and the alias table.
func (rs *RuleSet) Fingerprint() string {
	h := sha256.New()
	for _, r := range rs.rules {
		pos, neg := r.Triggers()
		fmt.Fprintf(h, "r\x00%s\x00%s\x00%s\x00%s\x00%s\n", r.ID, r.Gate, r.Target.Cluster, r.Target.From, r.Target.To)
		fmt.Fprintf(h, "t\x00%s\x00%s\n", strings.Join(pos, "\x1f"), strings.Join(neg, "\x1f"))
		fmt.Fprintf(h, "v\x00%s\x00%s\n", r.PositiveValue, r.NegativeValue)
		ids := make([]string, 0, len(r.Overrides))
		for id := range r.Overrides {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(h, "o\x00%s\x00%s\n", id, r.Overrides[id])
		}
	}
	for _, k := range rs.aliases.ListAliases() {
		fmt.Fprintf(h, "a\x00%s\x00%s\n", k, rs.aliases.Resolve(k))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func compileTriggers(aliases *config.AnswerAliases, raw []string) []trigger {
	out := make([]trigger, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		prefix := strings.HasSuffix(t, "*")
		if prefix {
			t = strings.TrimSuffix(t, "*")
		} else {
			t = aliases.Resolve(t)
		}
		text := normalize(nil, t)
		if text == "" {
			continue
		}
		out = append(out, trigger{text: text, prefix: prefix})
	}
	return out
}

func matchAny(triggers []trigger, v string) bool {
	for _, t := range triggers {
		if t.prefix {
			if strings.HasPrefix(v, t.text) {
				return true
			}
			continue
		}
		if v == t.text {
			return true
		}
	}
	return false
}

// normalize resolves aliases, collapses whitespace, and case-folds.
func normalize(aliases *config.AnswerAliases, s string) string {
	s = aliases.Resolve(strings.TrimSpace(s))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
