package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	chiTransport "github.com/kailas-cloud/pdfrag/internal/transport/chi"
)

func TestJSONRecoverer_ReturnsJSON(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body chiTransport.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != chiTransport.ErrorResponseCodeInternalError {
		t.Errorf("expected internal_error, got %q", body.Code)
	}
}

func TestWideEventMiddleware_LogsAndPropagates(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logpkg.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusCreated)
	})
	h := chiMiddleware.RequestID(wideEventMiddleware(logger)(inner))

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
	req.Header.Set(chiTransport.OwnerHeader, "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	inside := logs.FilterMessage("inside handler").All()
	if len(inside) != 1 {
		t.Fatalf("expected handler log line, got %d", len(inside))
	}
	if id, _ := inside[0].ContextMap()["request_id"].(string); id == "" {
		t.Error("expected handler to log through the request logger")
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one canonical log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("expected status 201, got %v", fields["status"])
	}
	if fields["owner_id"] != "alice" {
		t.Errorf("expected owner_id alice, got %v", fields["owner_id"])
	}
}
