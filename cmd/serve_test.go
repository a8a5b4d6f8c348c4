package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-collective/careatlas/internal/config"
	"github.com/haven-collective/careatlas/internal/model"
	"github.com/haven-collective/careatlas/internal/refresh"
	"github.com/haven-collective/careatlas/internal/store"
)

// memStore is a minimal Store for handler tests.
type memStore struct {
	facilities map[string][]model.Facility
	laws       map[string][]model.Law
	news       map[string][]model.NewsUpdate
}

func newMemStore() *memStore {
	return &memStore{
		facilities: make(map[string][]model.Facility),
		laws:       make(map[string][]model.Law),
		news:       make(map[string][]model.NewsUpdate),
	}
}

func (m *memStore) ReplaceFacilities(_ context.Context, state string, f []model.Facility) error {
	m.facilities[state] = f
	return nil
}

func (m *memStore) ReplaceLaws(_ context.Context, state string, l []model.Law) error {
	m.laws[state] = l
	return nil
}

func (m *memStore) RefreshNews(_ context.Context, state string, n []model.NewsUpdate, _ time.Time) error {
	m.news[state] = append(m.news[state], n...)
	return nil
}

func (m *memStore) FacilitiesByState(_ context.Context, state string) ([]model.Facility, error) {
	return m.facilities[state], nil
}

func (m *memStore) LawsByState(_ context.Context, state string) ([]model.Law, error) {
	return m.laws[state], nil
}

func (m *memStore) RecentNews(_ context.Context, state string, limit int) ([]model.NewsUpdate, error) {
	n := m.news[state]
	if len(n) > limit {
		n = n[:limit]
	}
	return n, nil
}

func (m *memStore) CountsByState(context.Context, string) (store.Counts, error) {
	return store.Counts{}, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func newTestEnv(st store.Store) *env {
	sched := refresh.NewScheduler(st, nil, nil, nil, nil, refresh.Options{States: []string{"IN"}})
	return &env{Store: st, Scheduler: sched}
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFacilitiesEndpoint(t *testing.T) {
	st := newMemStore()
	st.facilities["IN"] = []model.Facility{{Name: "Clinic A", State: "IN"}}
	router := newRouter(newTestEnv(st))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities?state=IN", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State      string           `json:"state"`
		Count      int              `json:"count"`
		Facilities []model.Facility `json:"facilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "IN", body.State)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Facilities, 1)
	assert.Equal(t, "Clinic A", body.Facilities[0].Name)
}

func TestFacilitiesEndpointRequiresState(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "state query parameter is required")
}

func TestNewsEndpointInvalidLimit(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news?state=IN&limit=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit must be a positive integer")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap refresh.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 0, snap.CyclesCompleted)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestGenerateEndpointWithoutBackend(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/facilities/generate", strings.NewReader(`{"state":"IN"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no generative backend configured")
}

func TestGenerateEndpointRequiresState(t *testing.T) {
	e := newTestEnv(newMemStore())
	e.Generator = refresh.NewGenerator(nil, nil, e.Store)
	router := newRouter(e)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/facilities/generate", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "state is required")
}

func TestErrorResponseShape(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bad Request", body["error"])
	assert.Equal(t, "state query parameter is required", body["details"])
	assert.NotContains(t, body, "stack")
}

func TestErrorResponseStackInDevMode(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{}
	cfg.Log.Format = "console"

	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "stack")
	assert.Contains(t, body["stack"], "state query parameter is required")
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(newTestEnv(newMemStore()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/facilities", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", "GET")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
