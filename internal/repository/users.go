package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

const userColumns = `id, email, name, password_hash, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u      model.User
		role   string
		status string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.UserRole(role)
	u.Status = model.UserStatus(status)
	return &u, nil
}

// CreateUser создаёт нового пользователя и возвращает его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		u.Email, u.Name, u.PasswordHash, string(u.Role), string(u.Status),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListCustomers возвращает покупателей, начиная с последних зарегистрированных.
func (r *PostgresRepository) ListCustomers(ctx context.Context, page model.Page) ([]model.User, error) {
	page = page.Normalize()

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE role = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		string(model.UserRoleCustomer), page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateUserStatus меняет статус активности пользователя.
func (r *PostgresRepository) UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
