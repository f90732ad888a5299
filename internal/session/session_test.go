package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/api"
)

// fakeShop имитирует API магазина с ротацией refresh-токенов.
type fakeShop struct {
	mu           sync.Mutex
	access       string
	refresh      string
	generation   int
	cart         api.Cart
	refreshCalls int
	idemKeys     []string
}

func (f *fakeShop) rotate(w http.ResponseWriter) {
	f.generation++
	f.access = fmt.Sprintf("access-%d", f.generation)
	f.refresh = fmt.Sprintf("refresh-%d", f.generation)

	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: f.refresh, Path: "/api/auth", HttpOnly: true, SameSite: http.SameSiteStrictMode})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.TokenResponse{
		AccessToken: f.access,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Minute),
		User:        api.User{ID: 1, Email: "user@example.com"},
	})
}

func (f *fakeShop) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.access
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg})
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/auth/login":
		f.rotate(w)
	case "/api/auth/refresh":
		f.refreshCalls++
		c, err := r.Cookie(refreshCookieName)
		if err != nil || c.Value != f.refresh {
			writeErr(w, http.StatusUnauthorized, "세션이 만료되었습니다.")
			return
		}
		f.rotate(w)
	case "/api/auth/logout":
		f.refresh = ""
		w.WriteHeader(http.StatusNoContent)
	case "/api/cart", "/api/cart/items":
		if !f.authorized(r) {
			writeErr(w, http.StatusUnauthorized, "인증이 만료되었습니다.")
			return
		}
		if r.Method == http.MethodPost {
			var req api.AddCartItemRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.cart.Items = append(f.cart.Items, api.CartLine{ProductID: req.ProductID, Quantity: req.Quantity})
			f.cart.TotalQuantity += req.Quantity
		}
		_ = json.NewEncoder(w).Encode(f.cart)
	case "/api/orders":
		if !f.authorized(r) {
			writeErr(w, http.StatusUnauthorized, "인증이 만료되었습니다.")
			return
		}
		f.idemKeys = append(f.idemKeys, r.Header.Get("Idempotency-Key"))
		f.cart = api.Cart{Items: []api.CartLine{}}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.Order{Number: "ORD-20261018-0001", TotalAmount: 25000})
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func newTestSession(t *testing.T, srv *httptest.Server, store Store) *Session {
	t.Helper()
	s, err := New(srv.URL, store)
	require.NoError(t, err)
	return s
}

func TestLoginPersistsTokens(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)

	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "user@example.com", s.User().Email)

	st, _ := store.Load()
	assert.Equal(t, "access-1", st.AccessToken)
	assert.Equal(t, "refresh-1", st.RefreshToken)
}

func TestReconcileCart_ServerWins(t *testing.T) {
	shop := &fakeShop{cart: api.Cart{Items: []api.CartLine{{ProductID: 1, Quantity: 2}}, TotalQuantity: 2}}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	// Устаревшая локальная копия перезаписывается ответом сервера.
	st, _ := store.Load()
	st.Cart = &api.Cart{TotalQuantity: 99}
	require.NoError(t, store.Save(st))

	cart, source, err := s.ReconcileCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceServer, source)
	assert.Equal(t, int64(2), cart.TotalQuantity)

	st, _ = store.Load()
	require.NotNil(t, st.Cart)
	assert.Equal(t, int64(2), st.Cart.TotalQuantity)
	assert.NotNil(t, st.CartSyncedAt)
}

func TestReconcileCart_FallsBackToLocal(t *testing.T) {
	shop := &fakeShop{cart: api.Cart{TotalQuantity: 3}}
	srv := httptest.NewServer(shop)

	s := newTestSession(t, srv, &MemoryStore{})
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	_, _, err := s.ReconcileCart(context.Background())
	require.NoError(t, err)

	srv.Close()

	cart, source, err := s.ReconcileCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	assert.Equal(t, int64(3), cart.TotalQuantity)
}

func TestReconcileCart_NoLocalCart(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)

	s := newTestSession(t, srv, &MemoryStore{})
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))
	srv.Close()

	_, _, err := s.ReconcileCart(context.Background())
	assert.ErrorIs(t, err, ErrNoLocalCart)
}

func TestDo_RefreshesOnceOn401(t *testing.T) {
	shop := &fakeShop{cart: api.Cart{TotalQuantity: 1}}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	// Сервер отзывает access-токен, refresh-токен остаётся действительным.
	shop.mu.Lock()
	shop.access = "rotated-server-side"
	shop.mu.Unlock()

	_, source, err := s.ReconcileCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceServer, source)
	assert.Equal(t, 1, shop.refreshCalls)

	st, _ := store.Load()
	assert.Equal(t, "access-2", st.AccessToken)
	assert.Equal(t, "refresh-2", st.RefreshToken)
}

func TestDo_FailedRefreshTearsDown(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))
	_, _, err := s.ReconcileCart(context.Background())
	require.NoError(t, err)

	shop.mu.Lock()
	shop.access = "revoked"
	shop.refresh = "revoked"
	shop.mu.Unlock()

	_, _, err = s.ReconcileCart(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, s.LoggedIn())

	st, _ := store.Load()
	assert.Empty(t, st.AccessToken)
	assert.Nil(t, st.Cart)

	_, err = s.Orders(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestNew_RestoresRefreshCookie(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	first := newTestSession(t, srv, store)
	require.NoError(t, first.Login(context.Background(), "user@example.com", "password123"))

	second := newTestSession(t, srv, store)
	require.NoError(t, second.Refresh(context.Background()))

	st, _ := store.Load()
	assert.Equal(t, "refresh-2", st.RefreshToken)
}

func TestNew_RefreshesExpiredAccessAcrossProcesses(t *testing.T) {
	shop := &fakeShop{cart: api.Cart{TotalQuantity: 2}}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	first, err := New(srv.URL+"/", store)
	require.NoError(t, err)
	require.NoError(t, first.Login(context.Background(), "user@example.com", "password123"))

	st, _ := store.Load()
	require.Equal(t, "refresh-1", st.RefreshToken)

	shop.mu.Lock()
	shop.access = "expired"
	shop.mu.Unlock()

	second, err := New(srv.URL, store)
	require.NoError(t, err)

	cart, source, err := second.ReconcileCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceServer, source)
	assert.Equal(t, int64(2), cart.TotalQuantity)
	assert.True(t, second.LoggedIn())
	assert.Equal(t, 1, shop.refreshCalls)

	st, _ = store.Load()
	assert.Equal(t, "access-2", st.AccessToken)
	assert.Equal(t, "refresh-2", st.RefreshToken)
}

func TestPlaceOrder_SendsIdempotencyKey(t *testing.T) {
	shop := &fakeShop{cart: api.Cart{TotalQuantity: 3}}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	order, err := s.PlaceOrder(context.Background(), api.CreateOrderRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-20261018-0001", order.Number)

	require.Len(t, shop.idemKeys, 1)
	assert.NotEmpty(t, shop.idemKeys[0])

	st, _ := store.Load()
	require.NotNil(t, st.Cart)
	assert.Equal(t, int64(0), st.Cart.TotalQuantity)
}

func TestAddToCart_UpdatesLocalCopy(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	cart, err := s.AddToCart(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.TotalQuantity)

	st, _ := store.Load()
	assert.Equal(t, int64(2), st.Cart.TotalQuantity)
}

func TestAPIErrorIsReturned(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	s := newTestSession(t, srv, &MemoryStore{})
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	err := s.Do(context.Background(), http.MethodGet, "/api/nowhere", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestLogoutClearsState(t *testing.T) {
	shop := &fakeShop{}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	store := &MemoryStore{}
	s := newTestSession(t, srv, store)
	require.NoError(t, s.Login(context.Background(), "user@example.com", "password123"))

	require.NoError(t, s.Logout(context.Background()))
	assert.False(t, s.LoggedIn())
	st, _ := store.Load()
	assert.Empty(t, st.RefreshToken)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", &MemoryStore{})
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.AccessToken)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Save(State{AccessToken: "a", RefreshToken: "r", CartSyncedAt: &now, Cart: &api.Cart{TotalQuantity: 4}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	st, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "r", st.RefreshToken)
	assert.Equal(t, int64(4), st.Cart.TotalQuantity)
	assert.True(t, now.Equal(*st.CartSyncedAt))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = store.Load()
	assert.True(t, strings.Contains(err.Error(), "decode"))
}
