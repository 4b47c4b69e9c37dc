// Package inference fills a questionnaire from a handful of anchor answers
// by propagating gating rules to a fixed point.
package inference

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/anchorfill/pkg/anchor"
	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/defaults"
	"github.com/zen-systems/anchorfill/pkg/gate"
	"github.com/zen-systems/anchorfill/pkg/prompt"
	"github.com/zen-systems/anchorfill/pkg/rules"
)

// Engine runs predictions. It holds only immutable state and is safe for
// concurrent use.
type Engine struct {
	rules    *rules.RuleSet
	defaults defaults.Table
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults sets the default-answer table.
func WithDefaults(t defaults.Table) Option {
	return func(e *Engine) {
		e.defaults = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine evaluating rs. A nil rs behaves as an empty rule
// table: every non-anchor question gets its default.
func New(rs *rules.RuleSet, opts ...Option) *Engine {
	if rs == nil {
		rs = rules.NewRuleSet(nil)
	}
	e := &Engine{
		rules:  rs,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *rules.RuleSet {
	return e.rules
}

// proposal is a candidate assignment collected during a pass.
// Fingerprint identifies the engine's rule and default tables. Two
// engines with equal fingerprints predict identically for the same inputs.
func (e *Engine) Fingerprint() string {
	return e.rules.Fingerprint() + ":" + e.defaults.Fingerprint()
}

type proposal struct {
	answer  answer.Answer
	outcome rules.Outcome
	rule    *rules.Rule
}

// beats reports whether p should replace other for the same question.
func (p proposal) beats(other proposal) bool {
	if p.outcome != other.outcome {
		return p.outcome == rules.Negative
	}
	if p.rule.Specificity() != other.rule.Specificity() {
		return p.rule.Specificity() > other.rule.Specificity()
	}
	return p.rule.ID < other.rule.ID
}

// Predict answers every question in cat. Only a nil or empty catalog is an
// error; recoverable problems are reported in Result.Diagnostics.
func (e *Engine) Predict(cat *catalog.Catalog, anchors []answer.AnchorAnswer, opts PredictOptions) (*Result, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, catalog.ErrEmptyCatalog
	}

	res := &Result{
		RunID:          uuid.NewString(),
		CatalogVersion: cat.Version(),
	}
	log := e.logger.With(zap.String("run_id", res.RunID), zap.String("catalog", res.CatalogVersion))

	store := answer.NewStore()
	res.Diagnostics = e.seed(cat, store, anchors, log)
	for _, err := range e.rules.Validate(cat) {
		log.Warn("rule gate not in catalog", zap.Error(err))
		res.Diagnostics = append(res.Diagnostics, err)
	}
	res.Passes = e.propagate(cat, store, log)
	e.fallback(cat, store)

	questions := cat.Questions()
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	res.Answers = store.Ordered(ids)

	if len(opts.AllowedOptions) > 0 {
		gr := gate.NewOptionGate(opts.AllowedOptions).Check(res.Answers)
		res.Violations = gr.Violations
		res.Diagnostics = append(res.Diagnostics, gr.Errors...)
		if !gr.Passed {
			log.Info("answers outside allowed options", zap.Int("violations", len(gr.Violations)))
		}
	}

	res.Histogram = answer.HistogramOf(res.Answers)

	if opts.Interactive {
		if next, ok := e.NextAnchor(cat, anchorAnswers(store)); ok {
			res.NextQuestionID = next.ID
			res.NextPrompt = prompt.Next(next, e.Explain(cat, next))
		}
	}

	log.Debug("prediction complete",
		zap.Int("answers", len(res.Answers)),
		zap.Int("passes", res.Passes),
		zap.Int("diagnostics", len(res.Diagnostics)),
	)
	return res, nil
}

// seed records anchor answers. Later duplicates replace earlier ones.
func (e *Engine) seed(cat *catalog.Catalog, store *answer.Store, anchors []answer.AnchorAnswer, log *zap.Logger) []error {
	var diags []error
	for _, in := range anchors {
		id := strings.TrimSpace(in.QuestionID)
		q, err := cat.Get(id)
		if err != nil {
			err = &catalog.LookupError{ID: id, Ref: "anchor"}
			log.Warn("anchor excluded", zap.String("question", id), zap.Error(err))
			diags = append(diags, err)
			continue
		}

		if in.Skipped() {
			store.Put(answer.Answer{
				QuestionID:  q.ID,
				Value:       e.defaults.Lookup(q.ID, q.DefaultAnswer),
				Source:      answer.SourceSkipped,
				Confidence:  answer.ConfidenceSkipped,
				NeedsReview: true,
			})
			continue
		}

		value := strings.TrimSpace(in.Value)
		if value == "" {
			err := emptyAnchor(q.ID)
			log.Debug("anchor ignored", zap.String("question", q.ID), zap.Error(err))
			diags = append(diags, err)
			continue
		}

		if !q.IsAnchor {
			err := &InvalidAnchorError{QuestionID: q.ID}
			log.Debug("non-anchor answer supplied", zap.String("question", q.ID))
			diags = append(diags, err)
		}

		store.Put(answer.Answer{
			QuestionID: q.ID,
			Value:      value,
			Source:     answer.SourceUser,
			Confidence: answer.ConfidenceUser,
		})
	}
	return diags
}

// propagate applies rules until a pass assigns nothing. Each productive
// pass activates at least one rule whose gate was unanswered before, so
// len(rules)+1 passes always suffice.
func (e *Engine) propagate(cat *catalog.Catalog, store *answer.Store, log *zap.Logger) int {
	maxPasses := e.rules.Len() + 1
	ruleList := e.rules.Rules()
	passes := 0

	for passes < maxPasses {
		passes++
		proposals := make(map[string]proposal)

		for _, r := range ruleList {
			gateAnswer, ok := store.Get(r.Gate)
			if !ok {
				continue
			}
			outcome := r.Evaluate(&gateAnswer)
			if outcome == rules.Unknown {
				continue
			}

			for _, q := range cat.InCluster(r.Target.Cluster) {
				if store.Has(q.ID) || !r.Covers(q.ID) {
					continue
				}
				var p proposal
				switch outcome {
				case rules.Positive:
					if e.rules.Governing(q.ID) != r {
						continue
					}
					p = proposal{answer: e.positiveAnswer(r, q), outcome: outcome, rule: r}
				case rules.Negative:
					p = proposal{answer: negativeAnswer(r, q), outcome: outcome, rule: r}
				}
				if cur, ok := proposals[q.ID]; !ok || p.beats(cur) {
					proposals[q.ID] = p
				}
			}
		}

		if len(proposals) == 0 {
			return passes
		}

		ids := make([]string, 0, len(proposals))
		for id := range proposals {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return catalog.CompareIDs(ids[i], ids[j]) < 0 })
		for _, id := range ids {
			store.PutIfAbsent(proposals[id].answer)
		}
		log.Debug("rule pass", zap.Int("pass", passes), zap.Int("assigned", len(ids)))
	}

	log.Warn("rule propagation hit pass limit", zap.Int("passes", passes))
	return passes
}

func (e *Engine) positiveAnswer(r *rules.Rule, q catalog.Question) answer.Answer {
	value, ok := r.PositiveValueFor(q.ID)
	if !ok {
		value = e.defaults.Lookup(q.ID, q.DefaultAnswer)
	}
	return answer.Answer{
		QuestionID: q.ID,
		Value:      value,
		Source:     answer.SourceInferred,
		Confidence: answer.ConfidencePositive,
		RuleID:     r.ID,
	}
}

func negativeAnswer(r *rules.Rule, q catalog.Question) answer.Answer {
	return answer.Answer{
		QuestionID: q.ID,
		Value:      r.NegativeValue,
		Source:     answer.SourceInferred,
		Confidence: answer.ConfidenceNegative,
		RuleID:     r.ID,
	}
}

// fallback answers every remaining question from the default table. A
// placeholder is only flagged for review when an option list rejects it.
func (e *Engine) fallback(cat *catalog.Catalog, store *answer.Store) {
	for _, q := range cat.Questions() {
		if store.Has(q.ID) {
			continue
		}
		store.Put(answer.Answer{
			QuestionID: q.ID,
			Value:      e.defaults.Lookup(q.ID, q.DefaultAnswer),
			Source:     answer.SourceDefault,
			Confidence: answer.ConfidenceDefault,
		})
	}
}

// NextAnchor returns the highest-priority anchor without an entry in
// existing.
func (e *Engine) NextAnchor(cat *catalog.Catalog, existing map[string]answer.Answer) (catalog.Question, bool) {
	next := anchor.Select(cat, existing, 1)
	if len(next) == 0 {
		return catalog.Question{}, false
	}
	return next[0], true
}

// Explain returns the "why we're asking" text for an anchor: its own
// explanation, or how many questions its rules settle.
func (e *Engine) Explain(cat *catalog.Catalog, q catalog.Question) string {
	if q.Explanation != "" {
		return q.Explanation
	}
	settled := make(map[string]struct{})
	for _, r := range e.rules.ForGate(q.ID) {
		for _, cq := range cat.InCluster(r.Target.Cluster) {
			if r.Covers(cq.ID) {
				settled[cq.ID] = struct{}{}
			}
		}
	}
	return prompt.Resolves(len(settled))
}

// anchorAnswers returns the answers supplied by the caller.
func anchorAnswers(store *answer.Store) map[string]answer.Answer {
	out := make(map[string]answer.Answer)
	for _, a := range store.All() {
		if a.Source == answer.SourceUser || a.Source == answer.SourceSkipped {
			out[a.QuestionID] = a
		}
	}
	return out
}
