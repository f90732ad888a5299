package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/validation"
)

// Session - пара токенов, выданная при входе или обновлении.
type Session struct {
	User             *model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register регистрирует покупателя и сразу выдаёт ему сессию.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if errs := validation.ValidateCredentials(email, password, name); !errs.Empty() {
		return nil, &ValidationError{Fields: errs}
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.UserRoleCustomer,
		Status:       model.UserStatusActive,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id

	return s.issueSession(ctx, u)
}

// Login проверяет учётные данные и выдаёт новую пару токенов.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if u.Status != model.UserStatusActive {
		return nil, ErrUserInactive
	}

	return s.issueSession(ctx, u)
}

// Refresh обменивает refresh-токен на новую пару токенов.
// Токен удаляется только после проверки секрета, повторное использование невозможно.
func (s *Service) Refresh(ctx context.Context, plain string) (*Session, error) {
	id, secret, ok := auth.SplitRefreshToken(plain)
	if !ok {
		return nil, ErrSessionExpired
	}

	stored, err := s.repo.ConsumeRefreshToken(ctx, id, s.refreshSecretCheck(secret))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if !s.now().Before(stored.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	u, err := s.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if u.Status != model.UserStatusActive {
		return nil, ErrUserInactive
	}

	return s.issueSession(ctx, u)
}

// Logout отзывает refresh-токен. Неизвестный токен или чужой секрет не считаются ошибкой.
func (s *Service) Logout(ctx context.Context, plain string) error {
	id, secret, ok := auth.SplitRefreshToken(plain)
	if !ok {
		return nil
	}

	_, err := s.repo.ConsumeRefreshToken(ctx, id, s.refreshSecretCheck(secret))
	if err != nil && !errors.Is(err, repository.ErrTokenNotFound) && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return nil
}

// refreshSecretCheck сверяет предъявленный секрет с хешем до удаления записи.
func (s *Service) refreshSecretCheck(secret string) func(*model.RefreshToken) error {
	return func(t *model.RefreshToken) error {
		if err := bcrypt.CompareHashAndPassword(t.SecretHash, []byte(secret)); err != nil {
			return ErrSessionExpired
		}
		return nil
	}
}

func (s *Service) issueSession(ctx context.Context, u *model.User) (*Session, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(u.ID, u.Role)
	if err != nil {
		return nil, err
	}

	id, secret, plain, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	// Секрет содержит 256 случайных бит.
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash refresh secret: %w", err)
	}

	now := s.now()
	rt := &model.RefreshToken{
		ID:         id,
		UserID:     u.ID,
		SecretHash: hash,
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
	}
	if err := s.repo.SaveRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &Session{
		User:             u,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     plain,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// GetUser возвращает профиль пользователя.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// ListCustomers возвращает страницу покупателей для администратора.
func (s *Service) ListCustomers(ctx context.Context, page model.Page) ([]model.User, error) {
	return s.repo.ListCustomers(ctx, page.Normalize())
}

// SetCustomerStatus меняет статус покупателя. Деактивация завершает все его сессии.
func (s *Service) SetCustomerStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	if status != model.UserStatusActive && status != model.UserStatusInactive {
		return newValidationError("status", "유효하지 않은 상태입니다.")
	}

	if err := s.repo.UpdateUserStatus(ctx, userID, status); err != nil {
		return err
	}

	if status == model.UserStatusInactive {
		return s.repo.DeleteUserRefreshTokens(ctx, userID)
	}
	return nil
}
