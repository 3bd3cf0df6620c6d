package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer() *Server {
	return &Server{orc: nil, cfg: Config{Env: "development"}, logger: slog.Default()}
}

func TestHandleChatRejectsMissingUserID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-User-Tier", "starter")
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChatRejectsMissingTier(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-User-Id", "1")
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChatRejectsMalformedBody(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`not json`))
	req.Header.Set("X-User-Id", "1")
	req.Header.Set("X-User-Tier", "starter")
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChatRejectsInvalidTierValue(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"how is revenue trending?"}`))
	req.Header.Set("X-User-Id", "1")
	req.Header.Set("X-User-Tier", "not-a-real-tier")
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (validator should reject an unrecognized tier name)", rec.Code)
	}
}
