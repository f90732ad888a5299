// Package session реализует клиентскую сессию магазина: токены, cookie
// и сверку корзины с сервером.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
)

const (
	refreshCookieName = "refresh_token"
	refreshPath       = "/api/auth/refresh"
)

var (
	// ErrNotAuthenticated возвращается, если сессии нет или она завершена сервером.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoLocalCart возвращается, если сервер недоступен и локальной копии корзины нет.
	ErrNoLocalCart = errors.New("server unreachable and no local cart")
)

// CartSource указывает, откуда получена корзина.
type CartSource string

const (
	SourceServer CartSource = "server"
	SourceLocal  CartSource = "local"
)

// APIError - ошибка, возвращённая сервером.
type APIError struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Session - явный контекст клиента: адрес сервера, токены, cookie и локальное хранилище.
type Session struct {
	baseURL *url.URL
	http    *http.Client
	store   Store
	logger  *zap.Logger

	mu    sync.Mutex
	state State
}

// Option настраивает сессию.
type Option func(*Session)

// WithHTTPClient задаёт HTTP-клиент. Cookie jar будет заменён на собственный.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New восстанавливает сессию из хранилища.
func New(baseURL string, store Store, opts ...Option) (*Session, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	s := &Session{
		baseURL: u,
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = cleanhttp.DefaultClient()
		s.http.Timeout = 10 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	s.http.Jar = jar

	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	s.state = st
	if st.RefreshToken != "" {
		jar.SetCookies(s.endpoint(refreshPath), []*http.Cookie{{
			Name:  refreshCookieName,
			Value: st.RefreshToken,
			Path:  "/api/auth",
		}})
	}

	return s, nil
}

// endpoint строит абсолютный URL так же, как send. Путь cookie jar
// сопоставляет только с путём, начинающимся с "/".
func (s *Session) endpoint(path string) *url.URL {
	u, err := s.baseURL.Parse(path)
	if err != nil {
		return s.baseURL
	}
	return u
}

// LoggedIn сообщает, есть ли у сессии access-токен.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken != ""
}

// User возвращает профиль вошедшего пользователя.
func (s *Session) User() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User
}

// Login входит в магазин и сохраняет токены.
func (s *Session) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/auth/login", api.CredentialsRequest{Email: email, Password: password})
}

// Register создаёт аккаунт и сразу входит.
func (s *Session) Register(ctx context.Context, email, password, name string) error {
	return s.authenticate(ctx, "/api/auth/register", api.CredentialsRequest{Email: email, Password: password, Name: name})
}

func (s *Session) authenticate(ctx context.Context, path string, creds api.CredentialsRequest) error {
	var resp api.TokenResponse
	if err := s.send(ctx, http.MethodPost, path, creds, &resp, ""); err != nil {
		return err
	}
	return s.adopt(resp)
}

// adopt сохраняет выданные сервером токены.
func (s *Session) adopt(resp api.TokenResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.AccessToken = resp.AccessToken
	s.state.AccessExpiresAt = resp.ExpiresAt
	user := resp.User
	s.state.User = &user
	s.state.RefreshToken = ""
	for _, c := range s.http.Jar.Cookies(s.endpoint(refreshPath)) {
		if c.Name == refreshCookieName {
			s.state.RefreshToken = c.Value
		}
	}

	return s.store.Save(s.state)
}

// Refresh обменивает refresh-токен на новую пару. При отказе сессия завершается.
func (s *Session) Refresh(ctx context.Context) error {
	var resp api.TokenResponse
	err := s.send(ctx, http.MethodPost, refreshPath, nil, &resp, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			s.teardown()
			return ErrNotAuthenticated
		}
		return err
	}
	return s.adopt(resp)
}

// Logout отзывает refresh-токен на сервере и очищает локальное состояние.
func (s *Session) Logout(ctx context.Context) error {
	err := s.send(ctx, http.MethodPost, "/api/auth/logout", nil, nil, "")
	s.teardown()
	return err
}

// teardown забывает токены, cookie и локальную корзину.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	if jar, err := cookiejar.New(nil); err == nil {
		s.http.Jar = jar
	}
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("clear session store", zap.Error(err))
	}
}

// ReconcileCart сверяет корзину с сервером. Если сервер ответил, его корзина
// перезаписывает локальную копию. Если сервер недоступен, возвращается локальная копия.
func (s *Session) ReconcileCart(ctx context.Context) (*api.Cart, CartSource, error) {
	var cart api.Cart
	err := s.Do(ctx, http.MethodGet, "/api/cart", nil, &cart)
	if err == nil {
		s.rememberCart(&cart)
		return &cart, SourceServer, nil
	}

	if !isUnreachable(err) {
		return nil, "", err
	}

	s.mu.Lock()
	local := s.state.Cart
	s.mu.Unlock()

	if local == nil {
		return nil, "", fmt.Errorf("%w: %w", ErrNoLocalCart, err)
	}
	s.logger.Warn("server unreachable, using local cart", zap.Error(err))
	return local, SourceLocal, nil
}

func (s *Session) rememberCart(cart *api.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.state.Cart = cart
	s.state.CartSyncedAt = &now
	if err := s.store.Save(s.state); err != nil {
		s.logger.Warn("save local cart", zap.Error(err))
	}
}

// isUnreachable отличает сбой связи и ошибки 5xx от ответов сервера по существу.
func isUnreachable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, context.Canceled)
}

// AddToCart добавляет товар и сохраняет обновлённую корзину.
func (s *Session) AddToCart(ctx context.Context, productID, qty int64) (*api.Cart, error) {
	var cart api.Cart
	if err := s.Do(ctx, http.MethodPost, "/api/cart/items", api.AddCartItemRequest{ProductID: productID, Quantity: qty}, &cart); err != nil {
		return nil, err
	}
	s.rememberCart(&cart)
	return &cart, nil
}

// Products возвращает страницу каталога.
func (s *Session) Products(ctx context.Context, query string) ([]api.Product, error) {
	path := "/api/products"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var products []api.Product
	if err := s.send(ctx, http.MethodGet, path, nil, &products, ""); err != nil {
		return nil, err
	}
	return products, nil
}

// PlaceOrder оформляет заказ и затем сверяет корзину.
// Пустой ключ идемпотентности заменяется случайным.
func (s *Session) PlaceOrder(ctx context.Context, req api.CreateOrderRequest, idempotencyKey string) (*api.Order, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	var order api.Order
	if err := s.do(ctx, http.MethodPost, "/api/orders", req, &order, idempotencyKey); err != nil {
		return nil, err
	}

	if _, _, err := s.ReconcileCart(ctx); err != nil {
		s.logger.Warn("reconcile cart after order", zap.Error(err))
	}
	return &order, nil
}

// Orders возвращает заказы пользователя.
func (s *Session) Orders(ctx context.Context) ([]api.Order, error) {
	var orders []api.Order
	if err := s.Do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Do выполняет авторизованный запрос. Ответ 401 вызывает одно обновление токенов
// и повтор запроса; неудачное обновление завершает сессию.
func (s *Session) Do(ctx context.Context, method, path string, body, out any) error {
	return s.do(ctx, method, path, body, out, "")
}

func (s *Session) do(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	if !s.LoggedIn() {
		return ErrNotAuthenticated
	}

	err := s.send(ctx, method, path, body, out, idempotencyKey)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.send(ctx, method, path, body, out, idempotencyKey)
}

func (s *Session) send(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target, err := s.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	s.mu.Lock()
	token := s.state.AccessToken
	s.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
