package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/service"
)

// IdempotencyKeyHeader - заголовок с клиентским ключом идемпотентности.
const IdempotencyKeyHeader = "Idempotency-Key"

func orderList(orders []model.Order) []api.Order {
	resp := make([]api.Order, 0, len(orders))
	for i := range orders {
		resp = append(resp, api.NewOrder(&orders[i]))
	}
	return resp
}

// CreateOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req api.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if h.opts.Idempotency != nil {
		if err := h.opts.Idempotency.Acquire(r.Context(), p.UserID, key); err != nil {
			h.handleError(w, r, "acquire idempotency key", err)
			return
		}
	}

	order, err := h.service.CreateOrderFromCart(r.Context(), service.CreateOrderInput{
		UserID:     p.UserID,
		Shipping:   req.Shipping,
		ProductIDs: req.ProductIDs,
		PaymentID:  strings.TrimSpace(req.PaymentID),
	})
	if err != nil {
		// Неудачный запрос можно повторить с тем же ключом.
		if h.opts.Idempotency != nil {
			if rerr := h.opts.Idempotency.Release(r.Context(), p.UserID, key); rerr != nil {
				h.logger.Warn("release idempotency key", zap.Error(rerr))
			}
		}
		h.handleError(w, r, "create order", err)
		return
	}

	h.logger.Info("order created",
		zap.String("order", order.Number),
		zap.Int64("userID", p.UserID),
		zap.Int64("total", order.TotalAmount),
		zap.String("paymentStatus", string(order.PaymentStatus)),
	)
	writeJSON(w, http.StatusCreated, api.NewOrder(order))
}

// ListOrders возвращает заказы текущего пользователя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), p.UserID, page)
	if err != nil {
		h.handleError(w, r, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderList(orders))
}

// GetOrder возвращает заказ по номеру.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), p, chi.URLParam(r, "number"))
	if err != nil {
		h.handleError(w, r, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewOrder(order))
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), p.UserID, chi.URLParam(r, "number"))
	if err != nil {
		h.handleError(w, r, "cancel order", err)
		return
	}

	h.logger.Info("order cancelled", zap.String("order", order.Number), zap.Int64("userID", p.UserID))
	writeJSON(w, http.StatusOK, api.NewOrder(order))
}

// PayOrder привязывает подтверждённый платёж к заказу.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req api.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.service.PayOrder(r.Context(), p.UserID, chi.URLParam(r, "number"), strings.TrimSpace(req.PaymentID))
	if err != nil {
		h.handleError(w, r, "pay order", err)
		return
	}

	h.logger.Info("order paid", zap.String("order", order.Number), zap.String("paymentID", order.PaymentID))
	writeJSON(w, http.StatusOK, api.NewOrder(order))
}

// VerifyPayment сверяет платёж со шлюзом и возвращает его каноническую запись.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req api.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pay, err := h.service.VerifyPayment(r.Context(), strings.TrimSpace(req.PaymentID))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotVerified) && pay != nil {
			writeJSON(w, http.StatusPaymentRequired, api.PaymentVerification{Payment: pay, Reason: "결제가 완료되지 않았습니다."})
			return
		}
		h.handleError(w, r, "verify payment", err)
		return
	}

	writeJSON(w, http.StatusOK, api.PaymentVerification{Verified: true, Payment: pay})
}
