// Package stripe предоставляет клиент для платёжных сессий Stripe Checkout.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Статусы сессии, на которые опирается бизнес-логика.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"

	PaymentStatusPaid = "paid"
)

// Client инкапсулирует HTTP-взаимодействие с API Stripe.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Session описывает платёжную сессию Stripe Checkout.
type Session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// NewClient создаёт HTTP-клиент Stripe. baseURL позволяет подменить адрес API в тестах.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// CreateSession создаёт платёжную сессию на указанную сумму в центах.
// Повторных попыток нет намеренно: создание сессии не идемпотентно.
func (c *Client) CreateSession(ctx context.Context, amountCents int64, successURL, cancelURL string) (*Session, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("stripe client not configured")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", "Car Rental Payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	return c.doSessionRequest(req)
}

// GetSession запрашивает текущее состояние платёжной сессии.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("stripe client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	return c.doSessionRequest(req)
}

func (c *Client) doSessionRequest(req *http.Request) (*Session, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &session, nil
}
