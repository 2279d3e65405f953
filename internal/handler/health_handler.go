package handler

import (
	"context"
	"net/http"
	"time"

	"go-time-archive/internal/database"
)

const healthTimeout = 2 * time.Second

type databaseStatus interface {
	Status(ctx context.Context) (database.Status, error)
}

type HealthHandler struct {
	db databaseStatus
}

func NewHealthHandler(db databaseStatus) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status   string           `json:"status"`
	Database *database.Status `json:"database,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Health reports the pool and the applied schema version. It answers 503 when
// the database cannot be queried.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeSuccess(w, http.StatusOK, healthResponse{Status: "ok"}, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, err := h.db.Status(ctx)
	if err != nil {
		writeSuccess(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Error: err.Error()}, nil)
		return
	}

	writeSuccess(w, http.StatusOK, healthResponse{Status: "ok", Database: &status}, nil)
}
