package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"choreboard/internal/auth"
	"choreboard/internal/model"
)

func TestRequireAuthNoCookie(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 15*time.Minute)

	handler := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/teams", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 15*time.Minute)

	handler := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/teams", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 15*time.Minute)

	raw, err := issuer.IssueAccessToken(&model.User{ID: 7, Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var gotID int64
	handler := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/teams", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: raw})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotID != 7 {
		t.Errorf("context user id = %d, want 7", gotID)
	}
}
