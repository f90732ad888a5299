package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// AdminListOrders возвращает заказы всех покупателей с фильтром по статусу доставки.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	status := model.ShippingStatus(r.URL.Query().Get("status"))
	orders, err := h.service.ListAllOrders(r.Context(), status, page)
	if err != nil {
		h.handleError(w, r, "admin list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderList(orders))
}

// AdminUpdateShipping меняет статус доставки заказа.
func (h *Handler) AdminUpdateShipping(w http.ResponseWriter, r *http.Request) {
	var req api.ShippingStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	number := chi.URLParam(r, "number")
	order, err := h.service.UpdateShippingStatus(r.Context(), number, model.ShippingStatus(req.Status))
	if err != nil {
		h.handleError(w, r, "update shipping status", err)
		return
	}

	h.logger.Info("shipping status updated", zap.String("order", number), zap.String("status", req.Status))
	writeJSON(w, http.StatusOK, api.NewOrder(order))
}

// AdminDeleteOrder мягко удаляет заказ.
func (h *Handler) AdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "number")); err != nil {
		h.handleError(w, r, "delete order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminListCustomers возвращает список покупателей.
func (h *Handler) AdminListCustomers(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListCustomers(r.Context(), page)
	if err != nil {
		h.handleError(w, r, "list customers", err)
		return
	}

	resp := make([]api.User, 0, len(users))
	for i := range users {
		resp = append(resp, api.NewUser(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminSetCustomerStatus активирует или деактивирует покупателя.
func (h *Handler) AdminSetCustomerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.UserStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetCustomerStatus(r.Context(), id, model.UserStatus(req.Status)); err != nil {
		h.handleError(w, r, "set customer status", err)
		return
	}

	h.logger.Info("customer status changed", zap.Int64("userID", id), zap.String("status", req.Status))
	w.WriteHeader(http.StatusNoContent)
}
