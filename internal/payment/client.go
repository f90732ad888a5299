// Package payment предоставляет клиент платёжного шлюза для серверной проверки оплаты.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured возвращается, если адрес шлюза не задан.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrPaymentNotFound возвращается, если шлюз не знает платёж.
	ErrPaymentNotFound = errors.New("payment not found at gateway")
	// ErrNotVerified возвращается, если запись шлюза не подтверждает оплату.
	ErrNotVerified = errors.New("payment not verified")
)

// StatusPaid - статус завершённого платежа на стороне шлюза.
const StatusPaid = "PAID"

// Amount описывает суммы платежа. Шлюз может прислать дробное значение.
type Amount struct {
	Total decimal.Decimal `json:"total"`
}

// Payment - каноническая запись платежа в шлюзе.
type Payment struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	OrderName string     `json:"orderName,omitempty"`
	Currency  string     `json:"currency,omitempty"`
	Amount    Amount     `json:"amount"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	apiSecret  string
	httpClient *http.Client
}

// NewClient создаёт клиент шлюза. Запрос ограничен таймаутом и не повторяется.
func NewClient(baseURL, apiSecret string, timeout time.Duration) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiSecret:  apiSecret,
		httpClient: httpClient,
	}
}

// GetPayment запрашивает у шлюза запись платежа по идентификатору.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	endpoint := fmt.Sprintf("%s/payments/%s", base, url.PathEscape(paymentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "PortOne "+c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Payment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// Verify подтверждает, что платёж завершён и его сумма совпадает с ожидаемой.
// Несовпадение статуса или суммы возвращает ошибку, оборачивающую ErrNotVerified.
func (c *Client) Verify(ctx context.Context, paymentID string, expectedAmount int64) (*Payment, error) {
	p, err := c.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := CheckPaid(p, expectedAmount); err != nil {
		return p, err
	}

	return p, nil
}

// CheckPaid проверяет запись шлюза на завершённость и совпадение суммы.
func CheckPaid(p *Payment, expectedAmount int64) error {
	if p == nil {
		return ErrNotVerified
	}
	if p.Status != StatusPaid {
		return fmt.Errorf("%w: status %s", ErrNotVerified, p.Status)
	}
	if !p.Amount.Total.Equal(decimal.NewFromInt(expectedAmount)) {
		return fmt.Errorf("%w: amount %s, expected %d", ErrNotVerified, p.Amount.Total.String(), expectedAmount)
	}
	return nil
}
