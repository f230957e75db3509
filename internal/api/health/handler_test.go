package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, fn http.HandlerFunc) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, status
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Checker
		code   int
		status string
	}{
		{"all healthy", map[string]Checker{"postgres": CheckerFunc(ok), "model": CheckerFunc(ok)}, http.StatusOK, "healthy"},
		{"degraded", map[string]Checker{"postgres": CheckerFunc(ok), "redis": CheckerFunc(down)}, http.StatusOK, "degraded"},
		{"all down", map[string]Checker{"postgres": CheckerFunc(down)}, http.StatusServiceUnavailable, "unhealthy"},
		{"nothing configured", map[string]Checker{}, http.StatusOK, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.Nop(), tt.checks, "crimewatch", "test")
			code, status := serve(t, h.HandleHealth)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
		})
	}
}

func TestHandleReadiness_AnyFailureIsUnavailable(t *testing.T) {
	h := New(logger.Nop(), map[string]Checker{"postgres": CheckerFunc(ok), "redis": CheckerFunc(down)}, "crimewatch", "test")
	code, status := serve(t, h.HandleReadiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Error)
	assert.Equal(t, "healthy", status.Checks["postgres"].Status)
}

func TestHandleLiveness(t *testing.T) {
	h := New(logger.Nop(), nil, "crimewatch", "test")
	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
