package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/triad/internal/catalog"
	"github.com/alucardeht/triad/internal/orchestrator"
	"github.com/alucardeht/triad/internal/types"
)

type stubService struct {
	gotType   types.AIType
	gotPrompt string
	gotMode   types.Mode
	execErr   error
	refresh   error
}

func (s *stubService) ExecuteAISystem(_ context.Context, aiType types.AIType, prompt string, mode types.Mode) (*types.AISystemResult, error) {
	s.gotType, s.gotPrompt, s.gotMode = aiType, prompt, mode
	if s.execErr != nil {
		return nil, s.execErr
	}
	return &types.AISystemResult{RequestID: "r1", AIType: aiType, Mode: mode, Response: "ok", QualityScore: 0.7}, nil
}

func (s *stubService) RefreshAllCaches(context.Context) error { return s.refresh }

func (s *stubService) Stats(context.Context) (*orchestrator.Stats, error) {
	return &orchestrator.Stats{Catalog: catalog.Counts{Nodes: 2}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestExecute(t *testing.T) {
	svc := &stubService{}
	h := New(svc, nil).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/v1/ai/heart", `{"prompt":"fix my loop","mode":"standard"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["response"])
	assert.Equal(t, "r1", body["request_id"])
	assert.Equal(t, types.AITypeHeart, svc.gotType)
	assert.Equal(t, "fix my loop", svc.gotPrompt)
	assert.Equal(t, types.ModeStandard, svc.gotMode)
}

func TestExecuteValidation(t *testing.T) {
	h := New(&stubService{}, nil).Handler()

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		message string
	}{
		{"unknown ai type", "/api/v1/ai/soul", `{"prompt":"x"}`, http.StatusNotFound, "unknown ai type"},
		{"bad json", "/api/v1/ai/brain", `{"prompt":`, http.StatusBadRequest, "invalid JSON"},
		{"missing prompt", "/api/v1/ai/brain", `{}`, http.StatusBadRequest, "prompt is required"},
		{"bad mode", "/api/v1/ai/brain", `{"prompt":"x","mode":"turbo"}`, http.StatusBadRequest, "mode must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, true, body["error"])
			assert.Contains(t, body["message"], tt.message)
		})
	}
}

func TestExecuteMissingConfig(t *testing.T) {
	svc := &stubService{execErr: fmt.Errorf("%w for ai type %q", orchestrator.ErrMissingModelConfig, "system")}
	rec, body := do(t, New(svc, nil).Handler(), http.MethodPost, "/api/v1/ai/system", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["message"], "no model configuration")
}

func TestAdminRoutes(t *testing.T) {
	svc := &stubService{}
	h := New(svc, nil).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/v1/admin/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["refreshed"])

	svc.refresh = errors.New("catalog: locked")
	rec, _ = do(t, h, http.MethodPost, "/api/v1/admin/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/v1/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["catalog"].(map[string]any)["nodes"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := New(&stubService{}, nil).Handler()

	rec, body := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triad_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := New(&stubService{}, []string{"https://app.example.com"}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ai/brain", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
