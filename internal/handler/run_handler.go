package handler

import (
	"context"
	"net/http"
	"strings"

	"go-time-archive/internal/model"
)

type runLister interface {
	List(ctx context.Context, ruleKey string, page int, limit int) ([]model.RunRecord, model.Meta, error)
}

type RunHandler struct {
	runs runLister
}

func NewRunHandler(runs runLister) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, meta, err := h.runs.List(r.Context(),
		strings.TrimSpace(query.Get("rule_key")),
		parseIntOrDefault(query.Get("page"), 1),
		parseIntOrDefault(query.Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}
