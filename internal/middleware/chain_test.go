package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// TestMiddlewareChain_Recovery_KeepsSecurityHeaders は
// panic発生時もセキュリティヘッダー付きの500が返ることを検証する。
func TestMiddlewareChain_Recovery_KeepsSecurityHeaders(t *testing.T) {
	handler := NewRecoveryMiddleware()(NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

// TestMiddlewareChain_LoggingPrincipal_LogsResolvedUserID は
// 外側のロギングミドルウェアが内側で解決されたユーザーIDを記録することを検証する。
func TestMiddlewareChain_LoggingPrincipal_LogsResolvedUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	sm := newTestSessionManager()
	deserializer := &mockDeserializer{
		deserializeFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "Chain User"}, nil
		},
	}

	seed := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := session.PutPrincipal(r.Context(), sm, "user-chain"); err != nil {
				t.Fatalf("PutPrincipal returned error: %v", err)
			}
			next.ServeHTTP(w, r)
		})
	}

	var captured *model.User
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := sm.LoadAndSave(NewLoggingMiddleware(logger)(seed(NewPrincipalMiddleware(sm, deserializer, &mockCollector{})(final))))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.ID != "user-chain" {
		t.Fatalf("user = %+v, want id %q", captured, "user-chain")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["user_id"] != "user-chain" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "user-chain")
	}
}
