package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// GetCart возвращает корзину пользователя с актуальными данными товаров.
// Если корзина ещё не создана, возвращается пустая корзина.
func (r *PostgresRepository) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}

	err := r.pool.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cart.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ci.id, ci.product_id, ci.quantity, ci.price_at_add, ci.added_at,
		        p.id, p.name, p.description, p.image_url, p.price, p.stock, p.status, p.deleted, p.created_at, p.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.added_at, ci.id`,
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line   model.CartLine
			p      model.Product
			status string
		)
		if err := rows.Scan(
			&line.ID, &line.ProductID, &line.Quantity, &line.PriceAtAdd, &line.AddedAt,
			&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Stock, &status, &p.Deleted, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		p.Status = model.ProductStatus(status)
		line.Product = &p
		cart.Lines = append(cart.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// AddCartItem добавляет товар в корзину, создавая корзину при первом добавлении.
// Если позиция уже есть, количество суммируется, а цена обновляется.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID, qty, price int64) (*model.CartLine, error) {
	line := &model.CartLine{ProductID: productID, PriceAtAdd: price}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var cartID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO carts (user_id) VALUES ($1)
			 ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
			 RETURNING id`,
			userID,
		).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, price_at_add)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, price_at_add = EXCLUDED.price_at_add
			 RETURNING id, quantity, added_at`,
			cartID, productID, qty, price,
		).Scan(&line.ID, &line.Quantity, &line.AddedAt)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

// UpdateCartItem задаёт количество позиции корзины.
func (r *PostgresRepository) UpdateCartItem(ctx context.Context, userID, lineID, qty int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3
		 WHERE id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, lineID, qty,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

// RemoveCartItem удаляет позицию из корзины пользователя.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, lineID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items
		 WHERE id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, lineID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

// ClearCart удаляет все позиции корзины. Сама корзина сохраняется.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func removeCartLines(ctx context.Context, q querier, userID int64, lineIDs []int64) error {
	if len(lineIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`DELETE FROM cart_items
		 WHERE id = ANY($2) AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, lineIDs,
	)
	if err != nil {
		return fmt.Errorf("remove ordered cart lines: %w", err)
	}
	return nil
}
