package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// SaveRefreshToken сохраняет хеш нового refresh-токена.
func (r *PostgresRepository) SaveRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return fmt.Errorf("parse token id: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, secret_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		id, t.UserID, t.SecretHash, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken блокирует запись refresh-токена, передаёт её в check и удаляет
// только если check вернул nil. При ошибке check запись остаётся на месте.
// Повторный вызов после удаления возвращает ErrTokenNotFound.
func (r *PostgresRepository) ConsumeRefreshToken(ctx context.Context, tokenID string, check func(*model.RefreshToken) error) (*model.RefreshToken, error) {
	id, err := uuid.Parse(tokenID)
	if err != nil {
		return nil, ErrTokenNotFound
	}

	var t model.RefreshToken
	err = r.withTx(ctx, func(tx pgx.Tx) error {
		var rowID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id, user_id, secret_hash, expires_at, created_at
			 FROM refresh_tokens WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&rowID, &t.UserID, &t.SecretHash, &t.ExpiresAt, &t.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("select refresh token: %w", err)
		}
		t.ID = rowID.String()

		if check != nil {
			if err := check(&t); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DeleteUserRefreshTokens удаляет все refresh-токены пользователя.
func (r *PostgresRepository) DeleteUserRefreshTokens(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens удаляет просроченные refresh-токены и возвращает их количество.
func (r *PostgresRepository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
