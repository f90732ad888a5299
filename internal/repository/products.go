package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

const productColumns = `id, name, description, image_url, price, stock, status, deleted, created_at, updated_at`

// ProductFilter задаёт условия выборки каталога.
type ProductFilter struct {
	Query string
	// IncludeHidden включает приостановленные и удалённые товары (для администратора).
	IncludeHidden bool
	Page          model.Page
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p      model.Product
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Stock, &status, &p.Deleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProductStatus(status)
	return &p, nil
}

func getProduct(ctx context.Context, q querier, id int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору, включая удалённые.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, r.pool, id)
}

// ListProducts возвращает товары каталога с учётом фильтра.
func (r *PostgresRepository) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	page := f.Page.Normalize()

	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE ($1 OR (NOT deleted AND status <> $2))
		   AND ($3 = '' OR name ILIKE '%' || $3 || '%')
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4 OFFSET $5`,
		f.IncludeHidden, string(model.ProductStatusSuspended), strings.TrimSpace(f.Query), page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateProduct создаёт товар и заполняет его идентификатор и временные метки.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, image_url, price, stock, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.ImageURL, p.Price, p.Stock, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// UpdateProduct перезаписывает изменяемые поля товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, description = $3, image_url = $4, price = $5, stock = $6, status = $7, updated_at = now()
		 WHERE id = $1 AND NOT deleted
		 RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.ImageURL, p.Price, p.Stock, string(p.Status),
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// SoftDeleteProduct помечает товар удалённым. Прошлые заказы продолжают на него ссылаться.
func (r *PostgresRepository) SoftDeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT deleted`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// decrementStock списывает остаток одним условным UPDATE.
// Товар, дошедший до нуля, переводится в статус sold_out.
func decrementStock(ctx context.Context, q querier, productID, qty int64) error {
	tag, err := q.Exec(ctx,
		`UPDATE products
		 SET stock = stock - $2,
		     status = CASE WHEN stock - $2 = 0 THEN $4 ELSE status END,
		     updated_at = now()
		 WHERE id = $1 AND stock >= $2 AND status = $3 AND NOT deleted`,
		productID, qty, string(model.ProductStatusOnSale), string(model.ProductStatusSoldOut),
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &StockError{ProductID: productID, Requested: qty}
	}
	return nil
}

// restoreStock возвращает остаток отменённого заказа. Распроданный товар снова поступает в продажу.
func restoreStock(ctx context.Context, q querier, productID, qty int64) error {
	_, err := q.Exec(ctx,
		`UPDATE products
		 SET stock = stock + $2,
		     status = CASE WHEN status = $3 THEN $4 ELSE status END,
		     updated_at = now()
		 WHERE id = $1`,
		productID, qty, string(model.ProductStatusSoldOut), string(model.ProductStatusOnSale),
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}
