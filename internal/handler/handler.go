// Package handler содержит HTTP-обработчики API интернет-магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/auth"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/idempotency"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/middleware"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/payment"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/repository"
	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, password, name string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, userID int64) (*model.User, error)

	ListProducts(ctx context.Context, query string, page model.Page, includeHidden bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64, includeHidden bool) (*model.Product, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, in service.ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	AddToCart(ctx context.Context, userID, productID, qty int64) (*model.CartLine, error)
	UpdateCartLine(ctx context.Context, userID, lineID, qty int64) error
	RemoveCartLine(ctx context.Context, userID, lineID int64) error
	ClearCart(ctx context.Context, userID int64) error

	CreateOrderFromCart(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	ListOrders(ctx context.Context, userID int64, page model.Page) ([]model.Order, error)
	GetOrder(ctx context.Context, who auth.Principal, number string) (*model.Order, error)
	CancelOrder(ctx context.Context, userID int64, number string) (*model.Order, error)
	PayOrder(ctx context.Context, userID int64, number, paymentID string) (*model.Order, error)
	VerifyPayment(ctx context.Context, paymentID string) (*payment.Payment, error)

	ListAllOrders(ctx context.Context, status model.ShippingStatus, page model.Page) ([]model.Order, error)
	UpdateShippingStatus(ctx context.Context, number string, to model.ShippingStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, number string) error
	ListCustomers(ctx context.Context, page model.Page) ([]model.User, error)
	SetCustomerStatus(ctx context.Context, userID int64, status model.UserStatus) error
}

// IdempotencyGuard защищает оформление заказа от повторной отправки.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, userID int64, key string) error
	Release(ctx context.Context, userID int64, key string) error
}

// HealthChecker - зависимость, доступность которой проверяет /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options задаёт необязательные зависимости обработчика.
type Options struct {
	CookieSecure bool
	Idempotency  IdempotencyGuard
	AuthLimiter  *middleware.RateLimiter
	Health       map[string]HealthChecker
}

// Handler реализует HTTP-обработчики API интернет-магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, api.ErrorResponse{Error: message, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "요청 형식이 올바르지 않습니다.", nil)
		return false
	}
	return true
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "로그인이 필요합니다.", nil)
	}
	return p, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "잘못된 ID입니다.", map[string]string{name: "양의 정수여야 합니다."})
		return 0, false
	}
	return id, true
}

func pageFromQuery(w http.ResponseWriter, r *http.Request) (model.Page, bool) {
	var page model.Page
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "페이지 정보가 올바르지 않습니다.", map[string]string{p.name: "0 이상의 정수여야 합니다."})
			return model.Page{}, false
		}
		*p.dst = n
	}

	return page.Normalize(), true
}

// handleError переводит ошибку бизнес-логики в HTTP-ответ.
// Неизвестные ошибки логируются и скрываются от клиента.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		verr *service.ValidationError
		perr *service.ProductError
	)

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "입력값을 확인해 주세요.", verr.Fields)
	case errors.As(err, &perr):
		writeProductError(w, perr)
	case errors.Is(err, service.ErrEmptyOrder):
		writeError(w, http.StatusBadRequest, "주문할 상품이 없습니다.", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "이메일 또는 비밀번호가 올바르지 않습니다.", nil)
	case errors.Is(err, service.ErrSessionExpired):
		h.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "세션이 만료되었습니다. 다시 로그인해 주세요.", nil)
	case errors.Is(err, service.ErrUserInactive):
		h.clearRefreshCookie(w)
		writeError(w, http.StatusForbidden, "비활성화된 계정입니다.", nil)
	case errors.Is(err, service.ErrPaymentNotVerified):
		writeError(w, http.StatusPaymentRequired, "결제가 확인되지 않았습니다.", nil)
	case errors.Is(err, service.ErrPaymentGateway):
		h.logger.Warn("payment gateway error", zap.String("op", op), zap.Error(err), zap.String("request_id", middleware.GetRequestID(r.Context())))
		writeError(w, http.StatusBadGateway, "결제 확인 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.", nil)
	case errors.Is(err, service.ErrOrderNotCancellable):
		writeError(w, http.StatusConflict, "취소할 수 없는 주문입니다.", nil)
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		writeError(w, http.StatusConflict, "이미 결제되었거나 결제할 수 없는 주문입니다.", nil)
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "변경할 수 없는 배송 상태입니다.", nil)
	case errors.Is(err, service.ErrOrderNumberExhausted):
		writeError(w, http.StatusConflict, "주문 번호를 생성하지 못했습니다. 다시 시도해 주세요.", nil)
	case errors.Is(err, repository.ErrPaymentAlreadyUsed):
		writeError(w, http.StatusConflict, "이미 다른 주문에 사용된 결제입니다.", nil)
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "이미 가입된 이메일입니다.", nil)
	case errors.Is(err, idempotency.ErrDuplicate):
		writeError(w, http.StatusConflict, "이미 처리 중인 요청입니다.", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "사용자를 찾을 수 없습니다.", nil)
	case errors.Is(err, repository.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "상품을 찾을 수 없습니다.", nil)
	case errors.Is(err, repository.ErrCartLineNotFound):
		writeError(w, http.StatusNotFound, "장바구니 항목을 찾을 수 없습니다.", nil)
	case errors.Is(err, repository.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "주문을 찾을 수 없습니다.", nil)
	default:
		h.logger.Error(op+" error", zap.Error(err), zap.String("request_id", middleware.GetRequestID(r.Context())))
		writeError(w, http.StatusInternalServerError, "서버 오류가 발생했습니다.", nil)
	}
}

func writeProductError(w http.ResponseWriter, perr *service.ProductError) {
	details := map[string]string{"productId": strconv.FormatInt(perr.ProductID, 10)}

	switch perr.Problem {
	case service.ProductMissing:
		writeError(w, http.StatusNotFound, fmt.Sprintf("'%s' 상품을 찾을 수 없습니다.", productLabel(perr)), details)
	case service.ProductUnavailable:
		writeError(w, http.StatusConflict, fmt.Sprintf("'%s' 상품은 현재 판매 중이 아닙니다.", productLabel(perr)), details)
	default:
		details["requested"] = strconv.FormatInt(perr.Requested, 10)
		details["available"] = strconv.FormatInt(perr.Available, 10)
		details["shortfall"] = strconv.FormatInt(perr.Shortfall(), 10)
		writeError(w, http.StatusConflict,
			fmt.Sprintf("'%s' 상품의 재고가 부족합니다. (%d개 부족)", productLabel(perr), perr.Shortfall()), details)
	}
}

func productLabel(perr *service.ProductError) string {
	if perr.Name != "" {
		return perr.Name
	}
	return "#" + strconv.FormatInt(perr.ProductID, 10)
}

// Health сообщает о доступности зависимостей сервиса.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.opts.Health))
	for name, c := range h.opts.Health {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}
