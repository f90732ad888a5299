package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/middleware"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/payment"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/validation"
)

const maxOrderNumberAttempts = 5

// CreateOrderInput - запрос на оформление заказа из корзины.
type CreateOrderInput struct {
	UserID   int64
	Shipping model.ShippingAddress
	// ProductIDs ограничивает заказ указанными товарами корзины. Пустой список - вся корзина.
	ProductIDs []int64
	// PaymentID - идентификатор платежа в шлюзе, если оплата прошла до оформления.
	PaymentID string
}

// CreateOrderFromCart оформляет заказ из позиций корзины.
// Цены и остатки берутся из каталога на момент оформления, а не из корзины.
func (s *Service) CreateOrderFromCart(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if errs := validation.ValidateShipping(in.Shipping); !errs.Empty() {
		return nil, &ValidationError{Fields: errs}
	}

	cart, err := s.repo.GetCart(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	lines := selectLines(cart, in.ProductIDs)
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	order := &model.Order{
		UserID:         in.UserID,
		Shipping:       in.Shipping,
		ShippingStatus: model.ShippingStatusReceived,
		PaymentStatus:  model.PaymentStatusPending,
		Items:          make([]model.OrderItem, 0, len(lines)),
	}
	lineIDs := make([]int64, 0, len(lines))

	for i := range lines {
		line := &lines[i]

		p, err := s.orderableProduct(ctx, line.ProductID, productName(line))
		if err != nil {
			return nil, err
		}
		if p.Stock < line.Quantity {
			return nil, &ProductError{
				Problem:   ProductOutOfStock,
				ProductID: p.ID,
				Name:      p.Name,
				Requested: line.Quantity,
				Available: p.Stock,
			}
		}

		item := model.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
			LineTotal: p.Price * line.Quantity,
		}
		order.Items = append(order.Items, item)
		order.TotalAmount += item.LineTotal
		lineIDs = append(lineIDs, line.ID)
	}

	if in.PaymentID != "" {
		if _, err := s.verifyPayment(ctx, in.PaymentID, order.TotalAmount); err != nil {
			return nil, err
		}
		order.PaymentStatus = model.PaymentStatusPaid
		order.PaymentID = in.PaymentID
	}

	if err := s.persistOrder(ctx, order, lineIDs); err != nil {
		if order.PaymentID != "" {
			s.logger.Warn("paid order was not saved, payment needs manual reconciliation",
				zap.String("payment_id", order.PaymentID),
				zap.Int64("user_id", order.UserID),
				zap.Int64("amount", order.TotalAmount),
				zap.String("request_id", middleware.GetRequestID(ctx)),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return order, nil
}

// persistOrder сохраняет заказ, подбирая свободный номер.
func (s *Service) persistOrder(ctx context.Context, order *model.Order, lineIDs []int64) error {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.Number = s.nextNumber(s.now())

		err := s.repo.CreateOrder(ctx, order, lineIDs)
		if err == nil {
			return nil
		}

		if errors.Is(err, repository.ErrOrderNumberConflict) {
			continue
		}

		var stockErr *repository.StockError
		if errors.As(err, &stockErr) {
			return s.stockConflict(ctx, order, stockErr)
		}

		return err
	}

	return ErrOrderNumberExhausted
}

// selectLines оставляет позиции корзины, входящие в подмножество товаров.
func selectLines(cart *model.Cart, productIDs []int64) []model.CartLine {
	if cart == nil {
		return nil
	}
	if len(productIDs) == 0 {
		return cart.Lines
	}

	wanted := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	var lines []model.CartLine
	for _, line := range cart.Lines {
		if _, ok := wanted[line.ProductID]; ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// stockConflict описывает товар, остаток которого закончился между проверкой и списанием.
func (s *Service) stockConflict(ctx context.Context, o *model.Order, stockErr *repository.StockError) error {
	perr := &ProductError{Problem: ProductOutOfStock, ProductID: stockErr.ProductID, Requested: stockErr.Requested}
	for _, it := range o.Items {
		if it.ProductID == stockErr.ProductID {
			perr.Name = it.Name
		}
	}
	if p, err := s.repo.GetProduct(ctx, stockErr.ProductID); err == nil {
		perr.Available = p.Stock
		if !p.Orderable() {
			perr.Problem = ProductUnavailable
		}
	}
	return perr
}

// verifyPayment сверяет платёж со шлюзом: статус PAID и сумма заказа.
func (s *Service) verifyPayment(ctx context.Context, paymentID string, expected int64) (*payment.Payment, error) {
	if s.payments == nil {
		return nil, gatewayError(payment.ErrNotConfigured)
	}

	p, err := s.payments.Verify(ctx, paymentID, expected)
	if err != nil {
		return p, gatewayError(err)
	}
	return p, nil
}

// VerifyPayment возвращает каноническую запись платежа из шлюза.
// Ошибка ErrPaymentNotVerified означает, что платёж существует, но не завершён.
func (s *Service) VerifyPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	if paymentID == "" {
		return nil, newValidationError("paymentId", "결제 ID를 입력해 주세요.")
	}
	if s.payments == nil {
		return nil, gatewayError(payment.ErrNotConfigured)
	}

	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if p.Status != payment.StatusPaid {
		return p, gatewayError(fmt.Errorf("%w: status %s", payment.ErrNotVerified, p.Status))
	}
	return p, nil
}

// gatewayError переводит ошибку шлюза в ошибку сервиса. Отказ шлюза подтвердить
// платёж отличается от недоступности самого шлюза.
func gatewayError(err error) error {
	if errors.Is(err, payment.ErrPaymentNotFound) || errors.Is(err, payment.ErrNotVerified) {
		return fmt.Errorf("%w: %w", ErrPaymentNotVerified, err)
	}
	return fmt.Errorf("%w: %w", ErrPaymentGateway, err)
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListOrders(ctx context.Context, userID int64, page model.Page) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID, page.Normalize())
}

// GetOrder возвращает заказ владельцу или администратору.
// Чужой заказ неотличим от несуществующего.
func (s *Service) GetOrder(ctx context.Context, who auth.Principal, number string) (*model.Order, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != who.UserID && !who.IsAdmin() {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

// CancelOrder отменяет неоплаченный заказ покупателя до отправки и возвращает остатки.
func (s *Service) CancelOrder(ctx context.Context, userID int64, number string) (*model.Order, error) {
	o, err := s.GetOrder(ctx, auth.Principal{UserID: userID}, number)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus == model.PaymentStatusPaid || !o.ShippingStatus.CanTransitionTo(model.ShippingStatusCancelled) {
		return nil, ErrOrderNotCancellable
	}

	cancelled, err := s.repo.CancelOrder(ctx, o)
	if errors.Is(err, repository.ErrOrderStateChanged) {
		return nil, ErrOrderNotCancellable
	}
	return cancelled, err
}

// PayOrder привязывает подтверждённый платёж к ожидающему оплаты заказу.
func (s *Service) PayOrder(ctx context.Context, userID int64, number, paymentID string) (*model.Order, error) {
	if paymentID == "" {
		return nil, newValidationError("paymentId", "결제 ID를 입력해 주세요.")
	}

	o, err := s.GetOrder(ctx, auth.Principal{UserID: userID}, number)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != model.PaymentStatusPending || o.ShippingStatus == model.ShippingStatusCancelled {
		return nil, ErrOrderAlreadyPaid
	}

	if _, err := s.verifyPayment(ctx, paymentID, o.TotalAmount); err != nil {
		return nil, err
	}

	paid, err := s.repo.MarkOrderPaid(ctx, number, paymentID)
	if errors.Is(err, repository.ErrOrderStateChanged) {
		return nil, ErrOrderAlreadyPaid
	}
	return paid, err
}

// ListAllOrders возвращает заказы всех покупателей для администратора.
func (s *Service) ListAllOrders(ctx context.Context, status model.ShippingStatus, page model.Page) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, repository.OrderFilter{ShippingStatus: status, Page: page.Normalize()})
}

// UpdateShippingStatus переводит заказ в новый статус доставки.
// Отмена администратором возвращает остатки так же, как отмена покупателем.
func (s *Service) UpdateShippingStatus(ctx context.Context, number string, to model.ShippingStatus) (*model.Order, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !o.ShippingStatus.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.ShippingStatus, to)
	}

	var updated *model.Order
	if to == model.ShippingStatusCancelled {
		updated, err = s.repo.CancelOrder(ctx, o)
	} else {
		updated, err = s.repo.UpdateShippingStatus(ctx, number, o.ShippingStatus, to)
	}
	if errors.Is(err, repository.ErrOrderStateChanged) {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	return updated, err
}

// DeleteOrder мягко удаляет заказ.
func (s *Service) DeleteOrder(ctx context.Context, number string) error {
	return s.repo.SoftDeleteOrder(ctx, number)
}
