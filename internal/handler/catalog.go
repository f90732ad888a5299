package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/middleware"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/service"
)

func isAdmin(r *http.Request) bool {
	p, ok := middleware.GetPrincipal(r.Context())
	return ok && p.IsAdmin()
}

func productList(products []model.Product) []api.Product {
	resp := make([]api.Product, 0, len(products))
	for i := range products {
		resp = append(resp, api.NewProduct(&products[i]))
	}
	return resp
}

// ListProducts возвращает страницу каталога с поиском по названию.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("q"), page, isAdmin(r))
	if err != nil {
		h.handleError(w, r, "list products", err)
		return
	}

	writeJSON(w, http.StatusOK, productList(products))
}

// GetProduct возвращает карточку товара.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id, isAdmin(r))
	if err != nil {
		h.handleError(w, r, "get product", err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewProduct(p))
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.handleError(w, r, "create product", err)
		return
	}

	h.logger.Info("product created", zap.Int64("productID", p.ID))
	writeJSON(w, http.StatusCreated, api.NewProduct(p))
}

// UpdateProduct заменяет данные товара.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req service.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.handleError(w, r, "update product", err)
		return
	}

	writeJSON(w, http.StatusOK, api.NewProduct(p))
}

// DeleteProduct мягко удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.handleError(w, r, "delete product", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
