package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-time-archive/internal/database"
	"go-time-archive/internal/model"
	"go-time-archive/internal/service"
	"go-time-archive/pkg/apierror"
)

type fakeRules struct {
	rules   map[int64]model.ArchiveRule
	created []model.CreateRuleRequest
}

func (f *fakeRules) Create(_ context.Context, request model.CreateRuleRequest) (service.RuleView, error) {
	if request.TimeAmount < 1 {
		return service.RuleView{}, apierror.New("BAD_REQUEST", "time amount must be at least 1", "time_amount", http.StatusBadRequest)
	}
	f.created = append(f.created, request)
	rule := model.ArchiveRule{ID: int64(len(f.created)), TagID: request.TagID, TimeAmount: request.TimeAmount}
	f.rules[rule.ID] = rule
	return service.RuleView{ArchiveRule: rule, HasJob: true}, nil
}

func (f *fakeRules) List(_ context.Context) ([]service.RuleView, error) {
	out := make([]service.RuleView, 0, len(f.rules))
	for _, rule := range f.rules {
		out = append(out, service.RuleView{ArchiveRule: rule, HasJob: true})
	}
	return out, nil
}

func (f *fakeRules) Get(_ context.Context, id int64) (model.ArchiveRule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return model.ArchiveRule{}, model.ErrRuleNotFound
	}
	return rule, nil
}

func (f *fakeRules) Delete(ctx context.Context, id int64) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.rules, id)
	return nil
}

type fakeRunner struct {
	executed  []string
	triggered []string
	err       error
}

func (f *fakeRunner) Execute(_ context.Context, key model.RuleKey) (model.RunRecord, error) {
	f.executed = append(f.executed, key.String())
	if f.err != nil {
		return model.RunRecord{}, f.err
	}
	return model.RunRecord{RuleKey: key.String(), Status: model.RunStatusCompleted, Stats: model.RunStatistics{FilesArchived: 3}}, nil
}

func (f *fakeRunner) Trigger(key model.RuleKey) error {
	f.triggered = append(f.triggered, key.String())
	return nil
}

func newRuleRouter(rules *fakeRules, runner *fakeRunner) http.Handler {
	h := NewRuleHandler(rules, runner)
	r := chi.NewRouter()
	r.Get("/rules", h.List)
	r.Post("/rules", h.Create)
	r.Delete("/rules/{id}", h.Delete)
	r.Post("/rules/{id}/run", h.Run)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var resp model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRuleHandlerCreate(t *testing.T) {
	rules := &fakeRules{rules: map[int64]model.ArchiveRule{}}
	router := newRuleRouter(rules, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules",
		strings.NewReader(`{"tag_id":7,"time_unit":2,"time_amount":3,"time_after":1}`)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, rules.created, 1)
	assert.Equal(t, int64(7), *rules.created[0].TagID)
	assert.Equal(t, 1, *rules.created[0].TimeAfter)
	assert.Equal(t, model.UnitMonth, rules.created[0].TimeUnit)
	assert.True(t, decode(t, rec).Success)
}

func TestRuleHandlerCreateAcceptsUnitName(t *testing.T) {
	rules := &fakeRules{rules: map[int64]model.ArchiveRule{}}
	router := newRuleRouter(rules, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules",
		strings.NewReader(`{"time_unit":"weeks","time_amount":2}`)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, rules.created, 1)
	assert.Equal(t, model.UnitWeek, rules.created[0].TimeUnit)
}

func TestRuleHandlerCreateErrors(t *testing.T) {
	router := newRuleRouter(&fakeRules{rules: map[int64]model.ArchiveRule{}}, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(`{"time_unit":0,"time_amount":0}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "time_amount", decode(t, rec).Error.Details)
}

func TestRuleHandlerDelete(t *testing.T) {
	rules := &fakeRules{rules: map[int64]model.ArchiveRule{4: {ID: 4}}}
	router := newRuleRouter(rules, &fakeRunner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rules/4", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rules/4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rules/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleHandlerRun(t *testing.T) {
	tagID := int64(7)
	rules := &fakeRules{rules: map[int64]model.ArchiveRule{
		1: {ID: 1},
		2: {ID: 2, TagID: &tagID},
	}}
	runner := &fakeRunner{}
	router := newRuleRouter(rules, runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/1/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/2/run?async=true", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []string{"rule:1"}, runner.executed)
	assert.Equal(t, []string{"tag:7"}, runner.triggered)
}

func TestRuleHandlerRunFailure(t *testing.T) {
	rules := &fakeRules{rules: map[int64]model.ArchiveRule{1: {ID: 1}}}
	router := newRuleRouter(rules, &fakeRunner{err: errors.New("database unavailable")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rules/1/run", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec).Error.Code)
}

type fakeRuns struct {
	ruleKey     string
	page, limit int
}

func (f *fakeRuns) List(_ context.Context, ruleKey string, page int, limit int) ([]model.RunRecord, model.Meta, error) {
	f.ruleKey, f.page, f.limit = ruleKey, page, limit
	return []model.RunRecord{{RuleKey: ruleKey}}, model.NewMeta(page, limit, 1), nil
}

func TestRunHandlerList(t *testing.T) {
	runs := &fakeRuns{}
	rec := httptest.NewRecorder()
	NewRunHandler(runs).List(rec, httptest.NewRequest(http.MethodGet, "/runs?rule_key=tag:7&page=2&limit=x", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tag:7", runs.ruleKey)
	assert.Equal(t, 2, runs.page)
	assert.Equal(t, 50, runs.limit)
	require.NotNil(t, decode(t, rec).Meta)
}

type fakeAudit struct {
	query model.AuditQuery
}

func (f *fakeAudit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	f.query = query
	if query.From == "bad" {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	return []model.AuditEntry{}, model.NewMeta(query.Page, query.Limit, 0), nil
}

func TestAuditHandlerList(t *testing.T) {
	audit := &fakeAudit{}
	h := NewAuditHandler(audit)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/audit?action=archive.file&user_id=alice&status=deferred", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "archive.file", audit.query.Action)
	assert.Equal(t, "alice", audit.query.UserID)
	assert.Equal(t, "deferred", audit.query.Status)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/audit?from=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeDB struct {
	status database.Status
	err    error
}

func (f fakeDB) Status(context.Context) (database.Status, error) {
	return f.status, f.err
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakeDB{status: database.Status{SchemaVersion: 3, TotalConns: 2, IdleConns: 2}}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := decode(t, rec).Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
	db, ok := data["database"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, db["schema_version"])
	assert.EqualValues(t, 2, db["idle_conns"])

	rec = httptest.NewRecorder()
	NewHealthHandler(fakeDB{err: errors.New("no route to host")}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data, ok = decode(t, rec).Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "no route to host", data["error"])
}

func TestWriteErrorMapsSentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{model.ErrRuleNotFound, http.StatusNotFound},
		{model.ErrDeregister, http.StatusGone},
		{model.ErrInvalidInput, http.StatusBadRequest},
		{model.ErrForbidden, http.StatusForbidden},
	}

	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}
