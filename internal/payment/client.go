// Package payment предоставляет клиент платёжного провайдера и проверку
// подписей платёжных уведомлений.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotConfigured возвращается, если клиент провайдера не настроен (нет адреса или ключей).
var ErrNotConfigured = errors.New("payment gateway is not configured")

// Client инкапсулирует HTTP-взаимодействие с платёжным провайдером.
// Ключи API проверяются при создании, а не при первом обращении.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// ProviderOrder описывает платёжную сессию, созданную на стороне провайдера.
type ProviderOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// NewClient создаёт клиент провайдера. Создание платёжной сессии — безопасный
// для повтора запрос, поэтому клиент строится поверх retryablehttp.
func NewClient(baseURL, keyID, keySecret string) (*Client, error) {
	if baseURL == "" || keyID == "" || keySecret == "" {
		return nil, ErrNotConfigured
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: rc.StandardClient(),
	}, nil
}

// CreateOrder создаёт платёжную сессию провайдера на указанную сумму в
// минимальных единицах валюты.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*ProviderOrder, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/orders"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result ProviderOrder
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.ID == "" {
		return nil, fmt.Errorf("provider returned empty order id")
	}

	return &result, nil
}

// KeyID возвращает публичный идентификатор ключа для платёжного виджета клиента.
func (c *Client) KeyID() string {
	return c.keyID
}
