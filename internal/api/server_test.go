package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/cache"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/keyword"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/metrics"
	"github.com/spigell/sahara/internal/profile"
	"github.com/spigell/sahara/internal/session"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type failingAI struct{}

func (failingAI) Match(context.Context, string, *profile.User, string) (*ai.Result, error) {
	return nil, ai.NewError("boom", nil)
}
func (failingAI) Model() string    { return "gemini-test" }
func (failingAI) Provider() string { return "Google Gemini" }

// recordingStore wraps a memory store and signals every save.
type recordingStore struct {
	*session.MemoryStore
	saved chan session.Record
}

func (s *recordingStore) Save(ctx context.Context, r session.Record) error {
	if err := s.MemoryStore.Save(ctx, r); err != nil {
		return err
	}
	s.saved <- r
	return nil
}

type testServer struct {
	server *Server
	store  *recordingStore
	logs   *observer.ObservedLogs
}

func newTestServer(t *testing.T, matcher ai.Matcher) *testServer {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)
	kw, err := keyword.New(cat, nil)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	now := func() time.Time { return fixedNow }

	orch, err := matching.New(matching.Deps{
		Catalog:  cat,
		Keywords: kw,
		AI:       matcher,
		Cache:    cache.NewMemory(cache.DefaultTTL, 100),
		Metrics:  m,
		Logger:   log,
	}, matching.Options{Now: now})
	require.NoError(t, err)

	store := &recordingStore{MemoryStore: session.NewMemoryStore(), saved: make(chan session.Record, 10)}
	rec, err := session.NewRecorder(store, log, m, session.Options{Now: now})
	require.NoError(t, err)

	srv, err := New(orch, Options{Sessions: rec, Metrics: m, Gatherer: reg, Logger: log, Now: now})
	require.NoError(t, err)

	return &testServer{server: srv, store: store, logs: logs}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/match-benefits", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, matching.Version, body["version"])
	assert.Greater(t, body["availableSchemes"], 0.0)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", body["timestamp"])
	assert.Equal(t, "none", body["aiProvider"])
	assert.Equal(t, "keyword-matcher", body["aiModel"])
	assert.Equal(t, false, body["aiEnabled"])
}

func TestHealthReportsAIProvider(t *testing.T) {
	ts := newTestServer(t, failingAI{})

	_, body := ts.do(t, http.MethodGet, "/match-benefits", nil)

	assert.Equal(t, "Google Gemini", body["aiProvider"])
	assert.Equal(t, "gemini-test", body["aiModel"])
	assert.Equal(t, true, body["aiEnabled"])
}

func TestMatchBenefitsRejectsShortTranscript(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/match-benefits", map[string]any{"transcript": "  hi  "})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INSUFFICIENT_INPUT", body["errorCode"])
	assert.Equal(t, "Transcript too short. Please provide more details about your situation.", body["error"])
}

func TestMatchBenefitsRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/match-benefits", "{not json")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["errorCode"])
}

func TestMatchBenefitsFallsBackAndRecords(t *testing.T) {
	ts := newTestServer(t, failingAI{})

	resp, body := ts.do(t, http.MethodPost, "/match-benefits", map[string]any{
		"transcript": "I am a farmer with two children, I need a house",
		"userId":     "user-1",
		"sessionId":  "session_1_abcde",
		"language":   "en",
		"userProfile": map[string]any{
			"name":    "Ravi",
			"address": map[string]any{"city": "Nashik", "state": "Maharashtra"},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "session_1_abcde", resp.Header.Get(headerSessionID))
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["fromCache"])

	meta := body["metadata"].(map[string]any)
	assert.Equal(t, false, meta["aiUsed"])
	assert.Equal(t, true, meta["fallbackUsed"])

	benefits := body["matchedBenefits"].([]any)
	require.NotEmpty(t, benefits)
	assert.Equal(t, "pm-kisan", benefits[0].(map[string]any)["id"])

	select {
	case r := <-ts.store.saved:
		assert.Equal(t, "session_1_abcde", r.SessionID)
		assert.Equal(t, "user-1", r.UserID)
		assert.Equal(t, "Ravi", r.UserName)
		assert.Equal(t, "Nashik, Maharashtra", r.Location)
		assert.Equal(t, session.SearchVoice, r.SearchType)
		assert.True(t, r.FallbackUsed)
		assert.Equal(t, len(benefits), r.BenefitCount)
	case <-time.After(2 * time.Second):
		t.Fatal("match was not recorded")
	}
}

func TestMatchBenefitsAnonymousIsNotRecorded(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := ts.do(t, http.MethodPost, "/match-benefits", map[string]any{
		"transcript": "I am a farmer with two children, I need a house",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get(headerSessionID), "session_"))

	select {
	case r := <-ts.store.saved:
		t.Fatalf("unexpected session record %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMatchBenefitsServesCache(t *testing.T) {
	ts := newTestServer(t, nil)
	req := map[string]any{"transcript": "my mother is old and needs pension"}

	_, first := ts.do(t, http.MethodPost, "/match-benefits", req)
	_, second := ts.do(t, http.MethodPost, "/match-benefits", req)

	assert.Equal(t, false, first["fromCache"])
	assert.Equal(t, true, second["fromCache"])
	assert.Equal(t, first["matchedBenefits"], second["matchedBenefits"])

	_, stats := ts.do(t, http.MethodGet, "/match-benefits/stats", nil)
	counters := stats["stats"].(map[string]any)
	assert.Equal(t, 2.0, counters["totalRequests"])
	assert.Equal(t, 1.0, counters["cacheHits"])
	assert.Equal(t, 1.0, counters["cacheSize"])
}

func TestSessionRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/sessions", map[string]any{
		"userId":     "user-1",
		"transcript": "Need help with school fees",
		"matchedBenefits": []map[string]any{
			{"id": "pm-kisan", "name": "PM-KISAN"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	<-ts.store.saved

	saved := body["session"].(map[string]any)
	id := saved["sessionId"].(string)
	assert.True(t, strings.HasPrefix(id, "session_"))
	assert.Equal(t, "manual_save", saved["searchType"])
	assert.Equal(t, 1.0, saved["benefitCount"])

	resp, body = ts.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Unknown User", body["session"].(map[string]any)["userName"])

	resp, body = ts.do(t, http.MethodGet, "/sessions?userId=user-1&limit=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["sessions"], 1)

	resp, body = ts.do(t, http.MethodPost, "/sessions/"+id+"/interactions", map[string]any{
		"userId":    "user-1",
		"benefitId": "pm-kisan",
		"action":    "viewed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, id, body["interaction"].(map[string]any)["sessionId"])

	resp, body = ts.do(t, http.MethodGet, "/sessions/"+id+"/interactions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["interactions"], 1)
}

func TestSessionErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(CodeSessionNotFound), body["errorCode"])

	resp, body = ts.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["errorCode"])

	resp, body = ts.do(t, http.MethodPost, "/sessions", map[string]any{"transcript": "no user"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "user id is required", body["error"])

	resp, _ = ts.do(t, http.MethodPost, "/sessions/s1/interactions", map[string]any{"userId": "u1", "action": "viewed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INVALID_REQUEST", body["errorCode"])
	assert.Equal(t, 1, ts.logs.FilterMessage("http request").FilterField(zap.Int("status", http.StatusNotFound)).Len())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodGet, "/match-benefits", nil)
	resp, _ := ts.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRequiresOrchestrator(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
