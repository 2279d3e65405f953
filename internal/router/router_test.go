package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-time-archive/internal/config"
	"go-time-archive/internal/handler"
	"go-time-archive/internal/middleware"
	"go-time-archive/internal/service"
)

func newTestRouter(t *testing.T) (http.Handler, *service.TokenService) {
	t.Helper()

	cfg := &config.Config{
		CORSOrigins:     []string{"*"},
		RateLimitRPM:    100,
		RunRateLimitRPM: 10,
		RequestTimeout:  time.Second,
	}
	tokens := service.NewTokenService("s3cret", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(cfg, logger, middleware.NewAuthMiddleware(tokens, logger), Handlers{
		Health: handler.NewHealthHandler(nil),
		Rules:  handler.NewRuleHandler(nil, nil),
		Runs:   handler.NewRunHandler(nil),
		Audit:  handler.NewAuditHandler(nil),
	}), tokens
}

func TestPublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAPIRequiresAdminToken(t *testing.T) {
	r, tokens := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/rules"},
		{http.MethodPost, "/api/v1/rules/1/run"},
		{http.MethodGet, "/api/v1/audit"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer", route.path)
	}

	token, err := tokens.Issue("ops", time.Hour)
	require.NoError(t, err)

	// A valid token reaches the handler, which rejects the bad id.
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rules/abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
