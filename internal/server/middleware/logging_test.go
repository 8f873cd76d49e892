package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func loggedLine(t *testing.T, handler http.HandlerFunc, target string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logging(logger)(handler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.Bytes(), err)
	}
	return line
}

func TestLoggingRecordsStatusAndSize(t *testing.T) {
	body := "market data unavailable"
	line := loggedLine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(body))
	}, "/api/market/global")

	if line["status"] != float64(http.StatusBadGateway) {
		t.Errorf("status = %v, want 502", line["status"])
	}
	if line["bytes"] != float64(len(body)) {
		t.Errorf("bytes = %v, want %d", line["bytes"], len(body))
	}
	if line["path"] != "/api/market/global" {
		t.Errorf("path = %v, want /api/market/global", line["path"])
	}
	if line["method"] != http.MethodGet {
		t.Errorf("method = %v, want GET", line["method"])
	}
}

func TestLoggingDefaultsStatusToOK(t *testing.T) {
	line := loggedLine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}, "/api/health")

	if line["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", line["status"])
	}
}
