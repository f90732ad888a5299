package handler

import (
	"net/http"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userID int64, status int) {
	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "get cart", err)
		return
	}
	writeJSON(w, status, api.NewCart(cart))
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	h.writeCart(w, r, p.UserID, http.StatusOK)
}

// AddCartItem добавляет товар в корзину и возвращает обновлённую корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req api.AddCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := h.service.AddToCart(r.Context(), p.UserID, req.ProductID, req.Quantity); err != nil {
		h.handleError(w, r, "add cart item", err)
		return
	}

	h.writeCart(w, r, p.UserID, http.StatusCreated)
}

// UpdateCartItem задаёт количество позиции. Нулевое количество удаляет позицию.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	lineID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.UpdateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateCartLine(r.Context(), p.UserID, lineID, req.Quantity); err != nil {
		h.handleError(w, r, "update cart item", err)
		return
	}

	h.writeCart(w, r, p.UserID, http.StatusOK)
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	lineID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveCartLine(r.Context(), p.UserID, lineID); err != nil {
		h.handleError(w, r, "remove cart item", err)
		return
	}

	h.writeCart(w, r, p.UserID, http.StatusOK)
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), p.UserID); err != nil {
		h.handleError(w, r, "clear cart", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
