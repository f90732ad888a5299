package model

import "time"

// Типы событий заказа, публикуемых через outbox.
const (
	OrderEventCreated         = "order.created"
	OrderEventPaid            = "order.paid"
	OrderEventShippingUpdated = "order.shipping_updated"
	OrderEventCancelled       = "order.cancelled"
)

// OrderEventPayload - тело события заказа.
type OrderEventPayload struct {
	Type           string         `json:"type"`
	OrderID        int64          `json:"orderId"`
	Number         string         `json:"number"`
	UserID         int64          `json:"userId"`
	TotalAmount    int64          `json:"totalAmount"`
	ShippingStatus ShippingStatus `json:"shippingStatus"`
	PaymentStatus  PaymentStatus  `json:"paymentStatus"`
	Items          []EventItem    `json:"items"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

// EventItem - позиция заказа в теле события.
type EventItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// NewOrderEventPayload строит тело события по текущему состоянию заказа.
func NewOrderEventPayload(o *Order, eventType string, at time.Time) OrderEventPayload {
	items := make([]EventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEventPayload{
		Type:           eventType,
		OrderID:        o.ID,
		Number:         o.Number,
		UserID:         o.UserID,
		TotalAmount:    o.TotalAmount,
		ShippingStatus: o.ShippingStatus,
		PaymentStatus:  o.PaymentStatus,
		Items:          items,
		OccurredAt:     at,
	}
}
