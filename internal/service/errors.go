package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/validation"
)

var (
	// ErrEmptyOrder возвращается, если после фильтрации в корзине не осталось позиций.
	ErrEmptyOrder = errors.New("empty order")
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive возвращается для деактивированного пользователя.
	ErrUserInactive = errors.New("user is inactive")
	// ErrSessionExpired возвращается для неизвестного, просроченного или уже использованного refresh-токена.
	ErrSessionExpired = errors.New("session expired")
	// ErrPaymentNotVerified возвращается, если шлюз не подтвердил оплату.
	ErrPaymentNotVerified = errors.New("payment not verified")
	// ErrPaymentGateway возвращается, если шлюз недоступен или ответил ошибкой.
	ErrPaymentGateway = errors.New("payment gateway unavailable")
	// ErrOrderNotCancellable возвращается, если заказ уже нельзя отменить.
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	// ErrOrderAlreadyPaid возвращается при повторной оплате заказа.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrInvalidTransition возвращается при недопустимой смене статуса доставки.
	ErrInvalidTransition = errors.New("invalid shipping status transition")
	// ErrOrderNumberExhausted возвращается, если не удалось подобрать свободный номер заказа.
	ErrOrderNumberExhausted = errors.New("could not allocate order number")
)

// ValidationError описывает ошибки входных данных по полям.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	names := e.Fields.Fields()
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func newValidationError(field, message string) *ValidationError {
	errs := validation.Errors{}
	errs.Add(field, message)
	return &ValidationError{Fields: errs}
}

// ProductProblem классифицирует причину, по которой товар нельзя заказать.
type ProductProblem int

const (
	ProductMissing ProductProblem = iota + 1
	ProductUnavailable
	ProductOutOfStock
)

// ProductError указывает товар, из-за которого операция отклонена.
type ProductError struct {
	Problem   ProductProblem
	ProductID int64
	Name      string
	Requested int64
	Available int64
}

func (e *ProductError) Error() string {
	switch e.Problem {
	case ProductMissing:
		return fmt.Sprintf("product %d (%s) not found", e.ProductID, e.Name)
	case ProductUnavailable:
		return fmt.Sprintf("product %d (%s) is not on sale", e.ProductID, e.Name)
	default:
		return fmt.Sprintf("product %d (%s) has insufficient stock: requested %d, available %d (short by %d)",
			e.ProductID, e.Name, e.Requested, e.Available, e.Shortfall())
	}
}

// Shortfall возвращает, скольких единиц не хватает.
func (e *ProductError) Shortfall() int64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}
