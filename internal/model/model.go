// Package model содержит доменные сущности интернет-магазина.
package model

import "time"

// UserRole определяет уровень доступа пользователя.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// UserStatus описывает явный статус активности покупателя.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductStatus описывает статус продажи товара.
type ProductStatus string

const (
	ProductStatusOnSale    ProductStatus = "on_sale"
	ProductStatusSuspended ProductStatus = "suspended"
	ProductStatusSoldOut   ProductStatus = "sold_out"
)

// Valid сообщает, является ли статус допустимым.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusOnSale, ProductStatusSuspended, ProductStatusSoldOut:
		return true
	}
	return false
}

// Product описывает товар каталога. Цена хранится в минимальных единицах валюты.
type Product struct {
	ID          int64
	Name        string
	Description string
	ImageURL    string
	Price       int64
	Stock       int64
	Status      ProductStatus
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Orderable сообщает, можно ли оформить заказ на товар.
func (p *Product) Orderable() bool {
	return p != nil && !p.Deleted && p.Status == ProductStatusOnSale
}

// CartLine описывает одну позицию корзины вместе с актуальными данными товара.
type CartLine struct {
	ID        int64
	ProductID int64
	Quantity  int64
	// PriceAtAdd фиксирует цену на момент добавления в корзину.
	PriceAtAdd int64
	AddedAt    time.Time

	Product *Product
}

// Cart принадлежит ровно одному пользователю.
type Cart struct {
	ID     int64
	UserID int64
	Lines  []CartLine
}

// TotalQuantity возвращает суммарное количество товаров в корзине.
func (c *Cart) TotalQuantity() int64 {
	if c == nil {
		return 0
	}
	var n int64
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// ShippingStatus описывает этап доставки заказа.
type ShippingStatus string

const (
	ShippingStatusReceived  ShippingStatus = "received"
	ShippingStatusPreparing ShippingStatus = "preparing"
	ShippingStatusShipping  ShippingStatus = "shipping"
	ShippingStatusDelivered ShippingStatus = "delivered"
	ShippingStatusCancelled ShippingStatus = "cancelled"
	ShippingStatusReturned  ShippingStatus = "returned"
)

var shippingTransitions = map[ShippingStatus][]ShippingStatus{
	ShippingStatusReceived:  {ShippingStatusPreparing, ShippingStatusCancelled},
	ShippingStatusPreparing: {ShippingStatusShipping, ShippingStatusCancelled},
	ShippingStatusShipping:  {ShippingStatusDelivered},
	ShippingStatusDelivered: {ShippingStatusReturned},
}

// CanTransitionTo проверяет допустимость перехода между статусами доставки.
func (s ShippingStatus) CanTransitionTo(next ShippingStatus) bool {
	for _, allowed := range shippingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ShippingAddress - снимок адреса доставки, сохраняемый в заказе.
type ShippingAddress struct {
	RecipientName string `json:"recipientName"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postalCode"`
	Address1      string `json:"address1"`
	Address2      string `json:"address2,omitempty"`
	Memo          string `json:"memo,omitempty"`
}

// OrderItem - замороженная копия товара на момент заказа.
type OrderItem struct {
	ProductID int64
	Name      string
	ImageURL  string
	UnitPrice int64
	Quantity  int64
	LineTotal int64
}

// Order описывает оформленный заказ. После создания меняются только статусы.
type Order struct {
	ID             int64
	Number         string
	UserID         int64
	Items          []OrderItem
	TotalAmount    int64
	Shipping       ShippingAddress
	ShippingStatus ShippingStatus
	PaymentStatus  PaymentStatus
	PaymentID      string
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshToken - серверная запись refresh-токена. Хранится только хеш секрета.
type RefreshToken struct {
	ID         string
	UserID     int64
	SecretHash []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// OrderEvent - запись outbox о событии заказа.
type OrderEvent struct {
	ID        string
	OrderID   int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Page задаёт параметры постраничной выборки.
type Page struct {
	Limit  int
	Offset int
}

// Normalize приводит параметры выборки к допустимым значениям.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
