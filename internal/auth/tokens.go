// Package auth выпускает и проверяет access-токены и генерирует refresh-токены.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

var (
	// ErrInvalidToken возвращается для повреждённого или неверно подписанного токена.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired возвращается для просроченного токена.
	ErrTokenExpired = errors.New("token expired")
)

const issuer = "shopmall"

// Principal - аутентифицированный пользователь запроса.
type Principal struct {
	UserID int64
	Role   model.UserRole
}

// IsAdmin сообщает, обладает ли пользователь правами администратора.
func (p Principal) IsAdmin() bool {
	return p.Role == model.UserRoleAdmin
}

// Claims - набор утверждений access-токена.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager подписывает и проверяет access-токены HS256.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenManager создаёт менеджер токенов. Пустой секрет заменяется случайным ключом.
func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &TokenManager{
		secret:    key,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// IssueAccessToken выпускает подписанный access-токен и возвращает момент его истечения.
func (m *TokenManager) IssueAccessToken(userID int64, role model.UserRole) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.accessTTL)

	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken проверяет подпись и срок действия access-токена.
func (m *TokenManager) ParseAccessToken(token string) (Principal, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, ErrInvalidToken
	}

	return Principal{UserID: userID, Role: model.UserRole(claims.Role)}, nil
}

// NewRefreshToken генерирует refresh-токен вида "<uuid>.<secret>".
// На сервере хранится только хеш секрета.
func NewRefreshToken() (id, secret, plain string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate refresh secret: %w", err)
	}

	id = uuid.NewString()
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return id, secret, id + "." + secret, nil
}

// SplitRefreshToken разбирает refresh-токен на идентификатор и секрет.
func SplitRefreshToken(plain string) (id, secret string, ok bool) {
	id, secret, found := strings.Cut(plain, ".")
	if !found || id == "" || secret == "" {
		return "", "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}
	return id, secret, true
}
