package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zen-systems/anchorfill/pkg/anchor"
	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/archive"
	"github.com/zen-systems/anchorfill/pkg/catalog"
	"github.com/zen-systems/anchorfill/pkg/config"
	"github.com/zen-systems/anchorfill/pkg/inference"
	"github.com/zen-systems/anchorfill/pkg/prompt"
)

// AnchorsRequest is the request body for POST /v1/anchors.
type AnchorsRequest struct {
	Existing     map[string]string `json:"existing"`
	MaxQuestions int               `json:"max_questions"`
}

// AnchorsResponse lists the anchors to ask next.
type AnchorsResponse struct {
	CatalogVersion string             `json:"catalog_version"`
	Questions      []catalog.Question `json:"questions"`
	NextPrompt     string             `json:"next_prompt,omitempty"`
}

// PredictRequest is the request body for POST /v1/predict.
type PredictRequest struct {
	Anchors        []answer.AnchorAnswer `json:"anchors"`
	AllowedOptions map[string][]string   `json:"allowed_options,omitempty"`
	Interactive    bool                  `json:"interactive,omitempty"`
}

// RuleInfo describes a gating rule.
type RuleInfo struct {
	ID            string            `json:"id"`
	Gate          string            `json:"gate"`
	Description   string            `json:"description,omitempty"`
	Target        config.RuleTarget `json:"target"`
	Positive      []string          `json:"positive"`
	Negative      []string          `json:"negative"`
	NegativeValue string            `json:"negative_value"`
	Overrides     map[string]string `json:"overrides,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.holder.Load()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, catalog.ErrEmptyCatalog.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   cat.Version(),
		"questions": cat.Len(),
		"anchors":   len(cat.Anchors()),
		"clusters":  cat.Clusters(),
	})
}

func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.holder.Load().Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) selectAnchors(w http.ResponseWriter, r *http.Request) {
	var req AnchorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cat := s.holder.Load()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, catalog.ErrEmptyCatalog.Error())
		return
	}

	existing := make(map[string]answer.Answer, len(req.Existing))
	for id, v := range req.Existing {
		existing[id] = answer.Answer{QuestionID: id, Value: v, Source: answer.SourceUser, Confidence: answer.ConfidenceUser}
	}
	max := req.MaxQuestions
	if max <= 0 {
		max = s.maxQuestions
	}

	resp := AnchorsResponse{
		CatalogVersion: cat.Version(),
		Questions:      anchor.Select(cat, existing, max),
	}
	if len(resp.Questions) > 0 {
		q := resp.Questions[0]
		resp.NextPrompt = prompt.Next(q, s.engine.Explain(cat, q))
	} else {
		resp.Questions = []catalog.Question{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.engine.Predict(s.holder.Load(), req.Anchors, inference.PredictOptions{
		AllowedOptions: req.AllowedOptions,
		Interactive:    req.Interactive,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrEmptyCatalog) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	if s.store != nil {
		rec := archive.RunRecord{
			ID:              res.RunID,
			CatalogVersion:  res.CatalogVersion,
			InputHash:       archive.InputHash(req.Anchors, req.AllowedOptions, s.profile, s.engine.Fingerprint()),
			DefaultsProfile: s.profile,
			Passes:          res.Passes,
			Histogram:       res.Histogram,
			Answers:         res.Answers,
		}
		if err := s.store.SaveRun(rec); err != nil {
			s.logger.Error("archive run", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rs := s.engine.Rules()
	out := make([]RuleInfo, 0, rs.Len())
	for _, rule := range rs.Rules() {
		pos, neg := rule.Triggers()
		out = append(out, RuleInfo{
			ID:            rule.ID,
			Gate:          rule.Gate,
			Description:   rule.Description,
			Target:        rule.Target,
			Positive:      pos,
			Negative:      neg,
			NegativeValue: rule.NegativeValue,
			Overrides:     rule.Overrides,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": out})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run archive not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []archive.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run archive not configured")
		return
	}
	rec, err := s.store.GetRun(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
