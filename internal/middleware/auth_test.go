package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/linkshelf/internal/auth"
	"github.com/dukerupert/linkshelf/internal/session"
)

func rejectingHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func assertUnauthorized(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data any    `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != 401 {
		t.Errorf("code = %d, want 401", body.Code)
	}
	if body.Msg != "unauthorized" {
		t.Errorf("msg = %q, want %q", body.Msg, "unauthorized")
	}
}

func TestRequireSessionNoCookie(t *testing.T) {
	handler := RequireSession(session.NewStore())(rejectingHandler(t))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assertUnauthorized(t, rec)
}

func TestRequireSessionUnknownToken(t *testing.T) {
	handler := RequireSession(session.NewStore())(rejectingHandler(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "session_token=never-issued")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assertUnauthorized(t, rec)
}

func TestRequireSessionMalformedCookie(t *testing.T) {
	handler := RequireSession(session.NewStore())(rejectingHandler(t))

	for _, header := range []string{"session_token", "session_token=", ";;;", "other=1"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Cookie", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assertUnauthorized(t, rec)
	}
}

func TestRequireSessionRevokedToken(t *testing.T) {
	store := session.NewStore()
	token := store.Create("alice")
	store.Revoke(token)

	handler := RequireSession(store)(rejectingHandler(t))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assertUnauthorized(t, rec)
}

func TestRequireSessionValid(t *testing.T) {
	store := session.NewStore()
	token := store.Create("alice")

	var got auth.AuthContext
	handler := RequireSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		got = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "theme=dark; session_token="+token+"; lang=en")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.Token != token {
		t.Errorf("Token = %q, want %q", got.Token, token)
	}
	if store.Len() != 1 {
		t.Errorf("store len = %d, want 1", store.Len())
	}
}
