package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	m := NewAuthMiddleware(tokens)

	token, _, err := tokens.IssueAccessToken(42, model.UserRoleCustomer)
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		p, ok := GetPrincipal(r.Context())
		if !ok {
			t.Fatalf("principal not in context")
		}
		if p.UserID != 42 {
			t.Fatalf("user id from context = %d, want 42", p.UserID)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	m := NewAuthMiddleware(tokens)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"malformed token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAdmin(next)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r = r.WithContext(WithPrincipal(r.Context(), auth.Principal{UserID: 1, Role: model.UserRoleCustomer}))
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r = r.WithContext(WithPrincipal(r.Context(), auth.Principal{UserID: 1, Role: model.UserRoleAdmin}))
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
