package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	var gotUserID int64
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		auth.SetAuthCookie(rec, 42)
		cookie := rec.Result().Cookies()[0]

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		w := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if !gotOK || gotUserID != 42 {
			t.Fatalf("userID = %d ok = %v, want 42 true", gotUserID, gotOK)
		}
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		w := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("tampered user id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		auth.SetAuthCookie(rec, 42)
		cookie := rec.Result().Cookies()[0]

		// Подмена идентификатора при сохранении чужой подписи.
		_, signature, _ := strings.Cut(cookie.Value, ".")
		cookie.Value = "43." + signature

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		w := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("cookie signed with different secret", func(t *testing.T) {
		other := NewAuthMiddleware("other-secret")
		rec := httptest.NewRecorder()
		other.SetAuthCookie(rec, 42)
		cookie := rec.Result().Cookies()[0]

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)

		w := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("garbage cookie value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "not-a-token"})

		w := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := GetUserIDFromContext(req.Context()); ok {
		t.Fatalf("expected no user id in bare context")
	}
}
