package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/service"
)

// RefreshCookieName - имя cookie с refresh-токеном.
const RefreshCookieName = "refresh_token"

const refreshCookiePath = "/api/auth"

func (h *Handler) setRefreshCookie(w http.ResponseWriter, sess *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    sess.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  sess.RefreshExpiresAt,
		MaxAge:   int(time.Until(sess.RefreshExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, sess *service.Session) {
	h.setRefreshCookie(w, sess)
	writeJSON(w, status, api.TokenResponse{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   sess.AccessExpiresAt,
		User:        api.NewUser(sess.User),
	})
}

// Register обрабатывает регистрацию нового покупателя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.handleError(w, r, "register user", err)
		return
	}

	h.logger.Info("user registered", zap.Int64("userID", sess.User.ID))
	h.writeSession(w, http.StatusCreated, sess)
}

// Login выполняет аутентификацию и выдаёт пару токенов.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "이메일과 비밀번호를 입력해 주세요.", nil)
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, "login user", err)
		return
	}

	h.writeSession(w, http.StatusOK, sess)
}

// Refresh обменивает refresh-токен из cookie на новую пару токенов.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "세션이 만료되었습니다. 다시 로그인해 주세요.", nil)
		return
	}

	sess, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.handleError(w, r, "refresh session", err)
		return
	}

	h.writeSession(w, http.StatusOK, sess)
}

// Logout отзывает refresh-токен и удаляет cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout error", zap.Error(err))
		}
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.handleError(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewUser(u))
}
