// Package service реализует бизнес-логику интернет-магазина.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/payment"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListCustomers(ctx context.Context, page model.Page) ([]model.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error

	SaveRefreshToken(ctx context.Context, t *model.RefreshToken) error
	ConsumeRefreshToken(ctx context.Context, tokenID string, check func(*model.RefreshToken) error) (*model.RefreshToken, error)
	DeleteUserRefreshTokens(ctx context.Context, userID int64) error

	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, f repository.ProductFilter) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	SoftDeleteProduct(ctx context.Context, id int64) error

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	AddCartItem(ctx context.Context, userID, productID, qty, price int64) (*model.CartLine, error)
	UpdateCartItem(ctx context.Context, userID, lineID, qty int64) error
	RemoveCartItem(ctx context.Context, userID, lineID int64) error
	ClearCart(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, o *model.Order, cartLineIDs []int64) error
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, page model.Page) ([]model.Order, error)
	ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error)
	UpdateShippingStatus(ctx context.Context, number string, from, to model.ShippingStatus) (*model.Order, error)
	CancelOrder(ctx context.Context, seen *model.Order) (*model.Order, error)
	MarkOrderPaid(ctx context.Context, number, paymentID string) (*model.Order, error)
	SoftDeleteOrder(ctx context.Context, number string) error
}

// PaymentGateway - внешний платёжный шлюз, которому сервис доверяет статус оплаты.
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	Verify(ctx context.Context, paymentID string, expectedAmount int64) (*payment.Payment, error)
}

// Service содержит бизнес-логику интернет-магазина.
type Service struct {
	repo       Repository
	payments   PaymentGateway
	tokens     *auth.TokenManager
	refreshTTL time.Duration
	bcryptCost int
	logger     *zap.Logger

	now        func() time.Time
	nextNumber func(time.Time) string
}

// NewService создаёт сервис с указанным репозиторием, платёжным шлюзом и менеджером токенов.
func NewService(repo Repository, payments PaymentGateway, tokens *auth.TokenManager, refreshTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		payments:   payments,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
		now:        time.Now,
		nextNumber: GenerateOrderNumber,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
