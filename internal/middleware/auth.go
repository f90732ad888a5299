// Package middleware содержит HTTP middleware сервиса магазина.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware проверяет access-токен из заголовка Authorization.
type AuthMiddleware struct {
	tokens *auth.TokenManager
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware.
func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Middleware проверяет bearer-токен и добавляет пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "로그인이 필요합니다.")
			return
		}

		p, err := a.tokens.ParseAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "인증이 만료되었거나 유효하지 않습니다.")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin пропускает только администраторов. Должен стоять после Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "로그인이 필요합니다.")
			return
		}
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "관리자 권한이 필요합니다.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithPrincipal добавляет пользователя в контекст.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal извлекает пользователя из контекста запроса.
func GetPrincipal(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
