package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// ErrPaymentAlreadyUsed возвращается, если платёж уже привязан к другому заказу.
var ErrPaymentAlreadyUsed = errors.New("payment already attached to another order")

const orderColumns = `id, number, user_id, total_amount, recipient_name, phone, postal_code, address1, address2, memo,
	shipping_status, payment_status, payment_id, deleted, created_at, updated_at`

// OrderFilter задаёт условия выборки заказов для администратора.
type OrderFilter struct {
	ShippingStatus model.ShippingStatus
	Page           model.Page
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o              model.Order
		shippingStatus string
		paymentStatus  string
	)
	if err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.TotalAmount,
		&o.Shipping.RecipientName, &o.Shipping.Phone, &o.Shipping.PostalCode,
		&o.Shipping.Address1, &o.Shipping.Address2, &o.Shipping.Memo,
		&shippingStatus, &paymentStatus, &o.PaymentID, &o.Deleted, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.ShippingStatus = model.ShippingStatus(shippingStatus)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &o, nil
}

// CreateOrder в одной транзакции сохраняет заказ с позициями, списывает остатки,
// удаляет заказанные позиции корзины и записывает событие в outbox.
// Любая ошибка откатывает все шаги.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order, cartLineIDs []int64) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (number, user_id, total_amount, recipient_name, phone, postal_code, address1, address2, memo,
			                     shipping_status, payment_status, payment_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id, created_at, updated_at`,
			o.Number, o.UserID, o.TotalAmount,
			o.Shipping.RecipientName, o.Shipping.Phone, o.Shipping.PostalCode,
			o.Shipping.Address1, o.Shipping.Address2, o.Shipping.Memo,
			string(o.ShippingStatus), string(o.PaymentStatus), o.PaymentID,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			switch {
			case isUniqueViolation(err, "orders_number_key"):
				return fmt.Errorf("%w: %s", ErrOrderNumberConflict, o.Number)
			case isUniqueViolation(err, "orders_payment_id_key"):
				return fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, o.PaymentID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, product_id, name, image_url, unit_price, quantity, line_total)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, it.ProductID, it.Name, it.ImageURL, it.UnitPrice, it.Quantity, it.LineTotal,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		// Единый порядок блокировок строк товаров исключает взаимоблокировки между заказами.
		for _, it := range sortedByProduct(o.Items) {
			if err := decrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if err := removeCartLines(ctx, tx, o.UserID, cartLineIDs); err != nil {
			return err
		}

		return insertOrderEvent(ctx, tx, o, model.OrderEventCreated)
	})
}

func sortedByProduct(items []model.OrderItem) []model.OrderItem {
	res := make([]model.OrderItem, len(items))
	copy(res, items)
	sort.Slice(res, func(i, j int) bool { return res[i].ProductID < res[j].ProductID })
	return res
}

func insertOrderEvent(ctx context.Context, q querier, o *model.Order, eventType string) error {
	payload, err := json.Marshal(model.NewOrderEventPayload(o, eventType, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO order_events (id, order_id, type, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), o.ID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

func loadItems(ctx context.Context, q querier, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT order_id, product_id, name, image_url, unit_price, quantity, line_total
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			it      model.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.ImageURL, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func getOrderByNumber(ctx context.Context, q querier, number string, forUpdate bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE number = $1 AND NOT deleted`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(q.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadItems(ctx, q, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByNumber возвращает неудалённый заказ с позициями.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return getOrderByNumber(ctx, r.pool, number, false)
}

func (r *PostgresRepository) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := loadItems(ctx, r.pool, ptrs); err != nil {
		return nil, err
	}

	res := make([]model.Order, 0, len(ptrs))
	for _, o := range ptrs {
		res = append(res, *o)
	}
	return res, nil
}

// ListOrdersByUser возвращает заказы пользователя, начиная с новых.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64, page model.Page) ([]model.Order, error) {
	page = page.Normalize()
	return r.listOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1 AND NOT deleted
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset,
	)
}

// ListOrders возвращает заказы всех пользователей для администратора.
func (r *PostgresRepository) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	page := f.Page.Normalize()
	return r.listOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE NOT deleted AND ($1 = '' OR shipping_status = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		string(f.ShippingStatus), page.Limit, page.Offset,
	)
}

// UpdateShippingStatus переводит заказ из статуса from в статус to.
// Если статус заказа уже не равен from, возвращается ErrOrderStateChanged.
func (r *PostgresRepository) UpdateShippingStatus(ctx context.Context, number string, from, to model.ShippingStatus) (*model.Order, error) {
	var updated *model.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := getOrderByNumber(ctx, tx, number, true)
		if err != nil {
			return err
		}
		if o.ShippingStatus != from {
			return ErrOrderStateChanged
		}

		if err := tx.QueryRow(ctx,
			`UPDATE orders SET shipping_status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			o.ID, string(to),
		).Scan(&o.UpdatedAt); err != nil {
			return fmt.Errorf("update shipping status: %w", err)
		}
		o.ShippingStatus = to

		updated = o
		return insertOrderEvent(ctx, tx, o, model.OrderEventShippingUpdated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelOrder отменяет заказ и возвращает остатки на склад в одной транзакции.
// Заказ должен находиться в том же состоянии, в котором его видел вызывающий код.
func (r *PostgresRepository) CancelOrder(ctx context.Context, seen *model.Order) (*model.Order, error) {
	var cancelled *model.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := getOrderByNumber(ctx, tx, seen.Number, true)
		if err != nil {
			return err
		}
		if o.ShippingStatus != seen.ShippingStatus || o.PaymentStatus != seen.PaymentStatus {
			return ErrOrderStateChanged
		}

		if err := tx.QueryRow(ctx,
			`UPDATE orders SET shipping_status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			o.ID, string(model.ShippingStatusCancelled),
		).Scan(&o.UpdatedAt); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		o.ShippingStatus = model.ShippingStatusCancelled

		for _, it := range sortedByProduct(o.Items) {
			if err := restoreStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		cancelled = o
		return insertOrderEvent(ctx, tx, o, model.OrderEventCancelled)
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// MarkOrderPaid отмечает ожидающий оплаты заказ как оплаченный.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, number, paymentID string) (*model.Order, error) {
	var paid *model.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		o, err := getOrderByNumber(ctx, tx, number, true)
		if err != nil {
			return err
		}
		if o.PaymentStatus != model.PaymentStatusPending {
			return ErrOrderStateChanged
		}

		err = tx.QueryRow(ctx,
			`UPDATE orders SET payment_status = $2, payment_id = $3, updated_at = now() WHERE id = $1 RETURNING updated_at`,
			o.ID, string(model.PaymentStatusPaid), paymentID,
		).Scan(&o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "orders_payment_id_key") {
				return fmt.Errorf("%w: %s", ErrPaymentAlreadyUsed, paymentID)
			}
			return fmt.Errorf("mark order paid: %w", err)
		}
		o.PaymentStatus = model.PaymentStatusPaid
		o.PaymentID = paymentID

		paid = o
		return insertOrderEvent(ctx, tx, o, model.OrderEventPaid)
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// SoftDeleteOrder помечает заказ удалённым.
func (r *PostgresRepository) SoftDeleteOrder(ctx context.Context, number string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET deleted = TRUE, updated_at = now() WHERE number = $1 AND NOT deleted`,
		number,
	)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// FetchPendingEvents возвращает неопубликованные события outbox в порядке создания.
func (r *PostgresRepository) FetchPendingEvents(ctx context.Context, limit int) ([]model.OrderEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, type, payload, created_at
		 FROM order_events
		 WHERE published_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select order events: %w", err)
	}
	defer rows.Close()

	var res []model.OrderEvent
	for rows.Next() {
		var (
			e  model.OrderEvent
			id uuid.UUID
		)
		if err := rows.Scan(&id, &e.OrderID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		e.ID = id.String()
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkEventsPublished отмечает события опубликованными.
func (r *PostgresRepository) MarkEventsPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE order_events SET published_at = now() WHERE id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
