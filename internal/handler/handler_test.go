package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type stubService struct {
	session    *service.Session
	sessionErr error
	lastToken  string
	logoutErr  error

	user *model.User

	products   []model.Product
	product    *model.Product
	productErr error
	hidden     bool

	cart    *model.Cart
	cartErr error

	order       *model.Order
	orderErr    error
	orderInput  service.CreateOrderInput
	orders      []model.Order
	transitions []model.ShippingStatus

	payment    *payment.Payment
	paymentErr error

	customerStatus model.UserStatus
}

func (s *stubService) Register(ctx context.Context, email, password, name string) (*service.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubService) Login(ctx context.Context, email, password string) (*service.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubService) Refresh(ctx context.Context, refreshToken string) (*service.Session, error) {
	s.lastToken = refreshToken
	return s.session, s.sessionErr
}

func (s *stubService) Logout(ctx context.Context, refreshToken string) error {
	s.lastToken = refreshToken
	return s.logoutErr
}

func (s *stubService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	if s.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubService) ListProducts(ctx context.Context, query string, page model.Page, includeHidden bool) ([]model.Product, error) {
	s.hidden = includeHidden
	return s.products, s.productErr
}

func (s *stubService) GetProduct(ctx context.Context, id int64, includeHidden bool) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, id int64, in service.ProductInput) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) DeleteProduct(ctx context.Context, id int64) error { return s.productErr }

func (s *stubService) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	if s.cart == nil {
		return &model.Cart{UserID: userID}, s.cartErr
	}
	return s.cart, s.cartErr
}

func (s *stubService) AddToCart(ctx context.Context, userID, productID, qty int64) (*model.CartLine, error) {
	return &model.CartLine{ProductID: productID, Quantity: qty}, s.cartErr
}

func (s *stubService) UpdateCartLine(ctx context.Context, userID, lineID, qty int64) error {
	return s.cartErr
}

func (s *stubService) RemoveCartLine(ctx context.Context, userID, lineID int64) error {
	return s.cartErr
}

func (s *stubService) ClearCart(ctx context.Context, userID int64) error { return s.cartErr }

func (s *stubService) CreateOrderFromCart(ctx context.Context, in service.CreateOrderInput) (*model.Order, error) {
	s.orderInput = in
	return s.order, s.orderErr
}

func (s *stubService) ListOrders(ctx context.Context, userID int64, page model.Page) ([]model.Order, error) {
	return s.orders, s.orderErr
}

func (s *stubService) GetOrder(ctx context.Context, who auth.Principal, number string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) CancelOrder(ctx context.Context, userID int64, number string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) PayOrder(ctx context.Context, userID int64, number, paymentID string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) VerifyPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return s.payment, s.paymentErr
}

func (s *stubService) ListAllOrders(ctx context.Context, status model.ShippingStatus, page model.Page) ([]model.Order, error) {
	return s.orders, s.orderErr
}

func (s *stubService) UpdateShippingStatus(ctx context.Context, number string, to model.ShippingStatus) (*model.Order, error) {
	s.transitions = append(s.transitions, to)
	return s.order, s.orderErr
}

func (s *stubService) DeleteOrder(ctx context.Context, number string) error { return s.orderErr }

func (s *stubService) ListCustomers(ctx context.Context, page model.Page) ([]model.User, error) {
	return nil, nil
}

func (s *stubService) SetCustomerStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	s.customerStatus = status
	return nil
}

type stubGuard struct {
	held     map[string]bool
	released int
}

func (g *stubGuard) Acquire(ctx context.Context, userID int64, key string) error {
	if key == "" {
		return nil
	}
	k := fmt.Sprintf("%d:%s", userID, key)
	if g.held[k] {
		return idempotency.ErrDuplicate
	}
	g.held[k] = true
	return nil
}

func (g *stubGuard) Release(ctx context.Context, userID int64, key string) error {
	delete(g.held, fmt.Sprintf("%d:%s", userID, key))
	g.released++
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

var testTokens = auth.NewTokenManager("test-secret", 15*time.Minute)

func newTestHandler(t *testing.T, svc Service, opts Options) http.Handler {
	t.Helper()

	h := NewHandler(svc, zap.NewNop(), middleware.NewAuthMiddleware(testTokens), opts)
	return h.SetupRouter()
}

func bearer(t *testing.T, userID int64, role model.UserRole) string {
	t.Helper()
	token, _, err := testTokens.IssueAccessToken(userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, h http.Handler, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func testSession() *service.Session {
	return &service.Session{
		User:             &model.User{ID: 7, Email: "user@example.com", Role: model.UserRoleCustomer, Status: model.UserStatusActive},
		AccessToken:      "access",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshToken:     "11111111-1111-1111-1111-111111111111.secret",
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	svc := &stubService{session: testSession()}
	h := newTestHandler(t, svc, Options{CookieSecure: true})

	rec := do(t, h, http.MethodPost, "/api/auth/login", api.CredentialsRequest{Email: "user@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(7), resp.User.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, RefreshCookieName, c.Name)
	assert.Equal(t, svc.session.RefreshToken, c.Value)
	assert.Equal(t, "/api/auth", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestHandler(t, &stubService{sessionErr: service.ErrInvalidCredentials}, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/login", api.CredentialsRequest{Email: "a@b.c", Password: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/api/auth/login", api.CredentialsRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Conflict(t *testing.T) {
	h := newTestHandler(t, &stubService{sessionErr: repository.ErrUserExists}, Options{})

	rec := do(t, h, http.MethodPost, "/api/auth/register", api.CredentialsRequest{Email: "a@b.c", Password: "password123", Name: "a"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh_UsesCookie(t *testing.T) {
	svc := &stubService{session: testSession()}
	h := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "old-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old-token", svc.lastToken)
}

func TestRefresh_ReuseClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{sessionErr: service.ErrSessionExpired}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "used"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	rec = do(t, h, http.MethodPost, "/api/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	svc := &stubService{logoutErr: errors.New("db down")}
	h := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tok", svc.lastToken)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t, &stubService{}, Options{})

	for _, target := range []string{"/api/cart", "/api/orders", "/api/users/me", "/api/admin/orders"} {
		rec := do(t, h, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := do(t, h, http.MethodGet, "/api/cart", nil, http.Header{"Authorization": {"Bearer not-a-jwt"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, Options{})

	rec := do(t, h, http.MethodGet, "/api/admin/orders", nil, http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/admin/orders", nil, http.Header{"Authorization": {bearer(t, 1, model.UserRoleAdmin)}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/admin/products", nil, http.Header{"Authorization": {bearer(t, 1, model.UserRoleAdmin)}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.hidden)
}

func TestListProducts_Public(t *testing.T) {
	svc := &stubService{products: []model.Product{{ID: 1, Name: "머그컵", Price: 12000, Stock: 3, Status: model.ProductStatusOnSale}}}
	h := newTestHandler(t, svc, Options{})

	rec := do(t, h, http.MethodGet, "/api/products?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.hidden)

	var resp []api.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "on_sale", resp[0].Status)

	rec = do(t, h, http.MethodGet, "/api/products?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/products/xyz", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCart(t *testing.T) {
	svc := &stubService{cart: &model.Cart{UserID: 1, Lines: []model.CartLine{
		{ID: 1, ProductID: 10, Quantity: 2, PriceAtAdd: 9000, Product: &model.Product{ID: 10, Name: "A", Price: 10000, Stock: 5, Status: model.ProductStatusOnSale}},
		{ID: 2, ProductID: 11, Quantity: 1, PriceAtAdd: 5000, Product: &model.Product{ID: 11, Name: "B", Price: 5000, Stock: 0, Status: model.ProductStatusSoldOut}},
	}}}
	h := newTestHandler(t, svc, Options{})

	rec := do(t, h, http.MethodGet, "/api/cart", nil, http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}})
	require.Equal(t, http.StatusOK, rec.Code)

	var cart api.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	assert.Equal(t, int64(3), cart.TotalQuantity)
	assert.Equal(t, int64(25000), cart.TotalAmount)
	require.Len(t, cart.Items, 2)
	assert.True(t, cart.Items[0].Orderable)
	assert.False(t, cart.Items[1].Orderable)
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &stubService{order: &model.Order{
		Number:         "ORD-20261018-0001",
		UserID:         1,
		TotalAmount:    25000,
		ShippingStatus: model.ShippingStatusReceived,
		PaymentStatus:  model.PaymentStatusPending,
		Items:          []model.OrderItem{{ProductID: 1, Name: "A", UnitPrice: 10000, Quantity: 2, LineTotal: 20000}},
	}}
	h := newTestHandler(t, svc, Options{})

	body := api.CreateOrderRequest{
		Shipping:   model.ShippingAddress{RecipientName: "홍길동", Phone: "010-1234-5678", PostalCode: "06236", Address1: "서울"},
		ProductIDs: []int64{1},
		PaymentID:  " pay-1 ",
	}
	rec := do(t, h, http.MethodPost, "/api/orders", body, http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp api.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ORD-20261018-0001", resp.Number)
	assert.Equal(t, int64(25000), resp.TotalAmount)
	assert.Equal(t, "pending", resp.PaymentStatus)

	assert.Equal(t, int64(1), svc.orderInput.UserID)
	assert.Equal(t, "pay-1", svc.orderInput.PaymentID)
	assert.Equal(t, []int64{1}, svc.orderInput.ProductIDs)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, resp api.ErrorResponse)
	}{
		{
			name:   "validation",
			err:    &service.ValidationError{Fields: map[string]string{"phone": "bad"}},
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp api.ErrorResponse) {
				assert.Equal(t, "bad", resp.Details["phone"])
			},
		},
		{name: "empty", err: service.ErrEmptyOrder, status: http.StatusBadRequest},
		{
			name:   "out of stock",
			err:    &service.ProductError{Problem: service.ProductOutOfStock, ProductID: 3, Name: "C", Requested: 1, Available: 0},
			status: http.StatusConflict,
			check: func(t *testing.T, resp api.ErrorResponse) {
				assert.Contains(t, resp.Error, "C")
				assert.Equal(t, "1", resp.Details["shortfall"])
				assert.Equal(t, "3", resp.Details["productId"])
			},
		},
		{name: "missing product", err: &service.ProductError{Problem: service.ProductMissing, ProductID: 9}, status: http.StatusNotFound},
		{name: "payment not verified", err: fmt.Errorf("%w: amount", service.ErrPaymentNotVerified), status: http.StatusPaymentRequired},
		{name: "gateway down", err: fmt.Errorf("%w: timeout", service.ErrPaymentGateway), status: http.StatusBadGateway},
		{name: "payment reused", err: repository.ErrPaymentAlreadyUsed, status: http.StatusConflict},
		{name: "number exhausted", err: service.ErrOrderNumberExhausted, status: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{orderErr: tt.err}, Options{})

			rec := do(t, h, http.MethodPost, "/api/orders", api.CreateOrderRequest{}, http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}})
			require.Equal(t, tt.status, rec.Code)

			resp := decodeError(t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.NotContains(t, resp.Error, "boom")
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}

func TestCreateOrder_Idempotency(t *testing.T) {
	guard := &stubGuard{held: map[string]bool{}}
	svc := &stubService{order: &model.Order{Number: "ORD-20261018-0002"}}
	h := newTestHandler(t, svc, Options{Idempotency: guard})

	header := http.Header{
		"Authorization":      {bearer(t, 1, model.UserRoleCustomer)},
		IdempotencyKeyHeader: {"key-1"},
	}

	rec := do(t, h, http.MethodPost, "/api/orders", api.CreateOrderRequest{}, header)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/orders", api.CreateOrderRequest{}, header)
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.orderErr = service.ErrEmptyOrder
	header.Set(IdempotencyKeyHeader, "key-2")
	rec = do(t, h, http.MethodPost, "/api/orders", api.CreateOrderRequest{}, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, guard.released)
	assert.False(t, guard.held["1:key-2"])
}

func TestOrderNotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{orderErr: repository.ErrOrderNotFound}, Options{})

	rec := do(t, h, http.MethodGet, "/api/orders/ORD-20261018-9999", nil, http.Header{"Authorization": {bearer(t, 2, model.UserRoleCustomer)}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder_Conflict(t *testing.T) {
	h := newTestHandler(t, &stubService{orderErr: service.ErrOrderNotCancellable}, Options{})

	rec := do(t, h, http.MethodPost, "/api/orders/ORD-20261018-0001/cancel", nil, http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyPayment(t *testing.T) {
	svc := &stubService{payment: &payment.Payment{ID: "p1", Status: payment.StatusPaid}}
	h := newTestHandler(t, svc, Options{})
	header := http.Header{"Authorization": {bearer(t, 1, model.UserRoleCustomer)}}

	rec := do(t, h, http.MethodPost, "/api/payments/verify", api.PaymentRequest{PaymentID: "p1"}, header)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.PaymentVerification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Verified)
	assert.Equal(t, "p1", resp.Payment.ID)

	svc.payment = &payment.Payment{ID: "p2", Status: "READY"}
	svc.paymentErr = service.ErrPaymentNotVerified
	rec = do(t, h, http.MethodPost, "/api/payments/verify", api.PaymentRequest{PaymentID: "p2"}, header)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	resp = api.PaymentVerification{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Verified)
	assert.Equal(t, "READY", resp.Payment.Status)
}

func TestAdminUpdateShipping(t *testing.T) {
	svc := &stubService{order: &model.Order{Number: "ORD-20261018-0001", ShippingStatus: model.ShippingStatusPreparing}}
	h := newTestHandler(t, svc, Options{})
	header := http.Header{"Authorization": {bearer(t, 1, model.UserRoleAdmin)}}

	rec := do(t, h, http.MethodPatch, "/api/admin/orders/ORD-20261018-0001/shipping", api.ShippingStatusRequest{Status: "preparing"}, header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.ShippingStatus{model.ShippingStatusPreparing}, svc.transitions)

	svc.orderErr = fmt.Errorf("%w: delivered -> received", service.ErrInvalidTransition)
	rec = do(t, h, http.MethodPatch, "/api/admin/orders/ORD-20261018-0001/shipping", api.ShippingStatusRequest{Status: "received"}, header)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminSetCustomerStatus(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, Options{})

	rec := do(t, h, http.MethodPatch, "/api/admin/customers/5/status", api.UserStatusRequest{Status: "inactive"}, http.Header{"Authorization": {bearer(t, 1, model.UserRoleAdmin)}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, model.UserStatusInactive, svc.customerStatus)
}

func TestMalformedJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{}, Options{Health: map[string]HealthChecker{"postgres": pinger{}}})
	rec := do(t, h, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestHandler(t, &stubService{}, Options{Health: map[string]HealthChecker{"redis": pinger{err: errors.New("down")}}})
	rec = do(t, h, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1, time.Minute)
	h := newTestHandler(t, &stubService{sessionErr: service.ErrInvalidCredentials}, Options{AuthLimiter: limiter})

	creds := api.CredentialsRequest{Email: "a@b.c", Password: "x"}
	rec := do(t, h, http.MethodPost, "/api/auth/login", creds, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/auth/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNotFoundRoute(t *testing.T) {
	h := newTestHandler(t, &stubService{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Error)
}
