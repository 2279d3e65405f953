package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-time-archive/internal/model"
	"go-time-archive/internal/service"
	"go-time-archive/pkg/apierror"
)

type ruleManager interface {
	Create(ctx context.Context, request model.CreateRuleRequest) (service.RuleView, error)
	List(ctx context.Context) ([]service.RuleView, error)
	Get(ctx context.Context, id int64) (model.ArchiveRule, error)
	Delete(ctx context.Context, id int64) error
}

type ruleRunner interface {
	Execute(ctx context.Context, key model.RuleKey) (model.RunRecord, error)
	Trigger(key model.RuleKey) error
}

type RuleHandler struct {
	rules  ruleManager
	runner ruleRunner
}

func NewRuleHandler(rules ruleManager, runner ruleRunner) *RuleHandler {
	return &RuleHandler{rules: rules, runner: runner}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, rules, nil)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	rule, err := h.rules.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, rule, nil)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.rules.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Run executes the rule now and returns the run record. With ?async=true
// the run is queued on the scheduler instead.
func (h *RuleHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if err := h.runner.Trigger(rule.Key()); err != nil {
			writeError(w, apierror.New("SERVICE_UNAVAILABLE", "run queue is full", rule.Key().String(), http.StatusServiceUnavailable))
			return
		}
		writeSuccess(w, http.StatusAccepted, map[string]string{"rule_key": rule.Key().String(), "status": "queued"}, nil)
		return
	}

	record, err := h.runner.Execute(r.Context(), rule.Key())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, record, nil)
}
