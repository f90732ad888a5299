// Package api описывает JSON-представления HTTP API магазина.
// Типы используются и сервером, и клиентской сессией.
package api

import (
	"time"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/payment"
)

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// CredentialsRequest - тело запросов входа и регистрации.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// User - публичный профиль пользователя.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser строит профиль пользователя без хеша пароля.
func NewUser(u *model.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
	}
}

// TokenResponse возвращается при входе и обновлении сессии.
// Refresh-токен передаётся только в HttpOnly cookie.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// Product - товар каталога.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Price       int64     `json:"price"`
	Stock       int64     `json:"stock"`
	Status      string    `json:"status"`
	Deleted     bool      `json:"deleted,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewProduct строит представление товара.
func NewProduct(p *model.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		Stock:       p.Stock,
		Status:      string(p.Status),
		Deleted:     p.Deleted,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CartLine - позиция корзины с актуальной ценой товара.
type CartLine struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Price      int64     `json:"price"`
	PriceAtAdd int64     `json:"priceAtAdd"`
	Quantity   int64     `json:"quantity"`
	Orderable  bool      `json:"orderable"`
	AddedAt    time.Time `json:"addedAt"`
}

// Cart - корзина вместе с числом для значка в шапке.
type Cart struct {
	Items         []CartLine `json:"items"`
	TotalQuantity int64      `json:"totalQuantity"`
	TotalAmount   int64      `json:"totalAmount"`
}

// NewCart строит корзину с итогами по актуальным ценам.
func NewCart(c *model.Cart) Cart {
	out := Cart{Items: make([]CartLine, 0, len(c.Lines)), TotalQuantity: c.TotalQuantity()}
	for _, l := range c.Lines {
		line := CartLine{
			ID:         l.ID,
			ProductID:  l.ProductID,
			PriceAtAdd: l.PriceAtAdd,
			Price:      l.PriceAtAdd,
			Quantity:   l.Quantity,
			AddedAt:    l.AddedAt,
		}
		if l.Product != nil {
			line.Name = l.Product.Name
			line.ImageURL = l.Product.ImageURL
			line.Price = l.Product.Price
			line.Orderable = l.Product.Orderable() && l.Product.Stock >= l.Quantity
		}
		out.TotalAmount += line.Price * line.Quantity
		out.Items = append(out.Items, line)
	}
	return out
}

// AddCartItemRequest - тело запроса на добавление товара в корзину.
type AddCartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// UpdateCartItemRequest - новое количество позиции. Ноль удаляет позицию.
type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// CreateOrderRequest - тело запроса на оформление заказа из корзины.
type CreateOrderRequest struct {
	Shipping   model.ShippingAddress `json:"shipping"`
	ProductIDs []int64               `json:"productIds,omitempty"`
	PaymentID  string                `json:"paymentId,omitempty"`
}

// PaymentRequest - идентификатор платежа в шлюзе.
type PaymentRequest struct {
	PaymentID string `json:"paymentId"`
}

// ShippingStatusRequest - новый статус доставки заказа.
type ShippingStatusRequest struct {
	Status string `json:"status"`
}

// UserStatusRequest - новый статус покупателя.
type UserStatusRequest struct {
	Status string `json:"status"`
}

// OrderItem - позиция заказа с ценой на момент оформления.
type OrderItem struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

// Order - заказ вместе с позициями и адресом доставки.
type Order struct {
	Number         string                `json:"number"`
	UserID         int64                 `json:"userId"`
	Items          []OrderItem           `json:"items"`
	TotalAmount    int64                 `json:"totalAmount"`
	Shipping       model.ShippingAddress `json:"shipping"`
	ShippingStatus string                `json:"shippingStatus"`
	PaymentStatus  string                `json:"paymentStatus"`
	PaymentID      string                `json:"paymentId,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// NewOrder строит представление заказа.
func NewOrder(o *model.Order) Order {
	out := Order{
		Number:         o.Number,
		UserID:         o.UserID,
		Items:          make([]OrderItem, 0, len(o.Items)),
		TotalAmount:    o.TotalAmount,
		Shipping:       o.Shipping,
		ShippingStatus: string(o.ShippingStatus),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			ImageURL:  it.ImageURL,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}
	return out
}

// PaymentVerification - результат серверной проверки платежа.
type PaymentVerification struct {
	Verified bool             `json:"verified"`
	Payment  *payment.Payment `json:"payment,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}
