package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubFeed struct{ n int }

func (s stubFeed) Subscribers() int { return s.n }

func TestHealthCheckReportsFeedState(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler(stubFeed{n: 3}, logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["subscribers"] != float64(3) {
		t.Errorf("subscribers = %v, want 3", body["subscribers"])
	}
	if _, ok := body["uptime"].(string); !ok {
		t.Errorf("uptime field missing or not a string: %v", body)
	}
}
