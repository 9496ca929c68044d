package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret", "/login")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != 42 {
			t.Fatalf("user id from context = %d, want 42", id)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/dashboard/invoices", nil)

	m.SetAuthCookie(w, 42)
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		status   int
		location string
	}{
		{
			name:   "api without cookie",
			path:   "/api/invoices",
			status: http.StatusUnauthorized,
		},
		{
			name:     "page without cookie",
			path:     "/dashboard/invoices",
			status:   http.StatusSeeOther,
			location: "/login",
		},
		{
			name:   "tampered signature",
			path:   "/api/upload",
			cookie: &http.Cookie{Name: authCookieName, Value: "42.deadbeef"},
			status: http.StatusUnauthorized,
		},
		{
			name:   "malformed value",
			path:   "/api/upload",
			cookie: &http.Cookie{Name: authCookieName, Value: "42"},
			status: http.StatusUnauthorized,
		},
	}

	m := NewAuthMiddleware("test-secret", "/login")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}

			m.Middleware(next).ServeHTTP(w, r)

			res := w.Result()
			if res.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.status)
			}
			if loc := res.Header.Get("Location"); loc != tt.location {
				t.Fatalf("location = %q, want %q", loc, tt.location)
			}
		})
	}
}

func TestAuthMiddleware_CookieFromOtherSecret(t *testing.T) {
	issuer := NewAuthMiddleware("secret-a", "")
	verifier := NewAuthMiddleware("secret-b", "")

	w := httptest.NewRecorder()
	issuer.SetAuthCookie(w, 7)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(w.Result().Cookies()[0])

	if _, ok := verifier.UserID(r); ok {
		t.Fatalf("cookie signed with another secret must be rejected")
	}
	if id, ok := issuer.UserID(r); !ok || id != 7 {
		t.Fatalf("UserID = %d, %v, want 7, true", id, ok)
	}
}

func TestClearAuthCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret", "/login")

	w := httptest.NewRecorder()
	m.ClearAuthCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", cookies)
	}
}
