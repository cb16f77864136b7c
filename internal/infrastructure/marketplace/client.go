// Package marketplace implements the HTTP client for the downstream
// sales-channel API: order polling and batched stock pushes. Every call goes
// through the shared retry executor.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/retry"
)

const (
	// maxResponseSize caps response bodies read from the marketplace.
	maxResponseSize = 10 * 1024 * 1024

	// maxStockBatchSize is the marketplace's per-call item cap.
	maxStockBatchSize = 2000

	// stockItemType is the stock bucket the marketplace expects.
	stockItemType = "FIT"

	// defaultWarehouseID is used when no warehouse is configured.
	defaultWarehouseID = 0
)

// Config holds marketplace client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	WarehouseID    int

	// PushRetry and PollRetry tune the shared retry policy per call class.
	PushRetry retry.Config
	PollRetry retry.Config
}

// Client talks to the marketplace REST API.
type Client struct {
	baseURL     string
	apiKey      string
	warehouseID int
	httpClient  *http.Client
	pushExec    *retry.Executor
	pollExec    *retry.Executor
	logger      *zap.Logger
}

// NewClient creates a marketplace client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pushRetry := cfg.PushRetry
	if pushRetry.BaseDelay <= 0 {
		pushRetry.BaseDelay = time.Second
	}
	pollRetry := cfg.PollRetry
	if pollRetry.BaseDelay <= 0 {
		pollRetry.BaseDelay = 2 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		warehouseID: cfg.WarehouseID,
		httpClient:  &http.Client{Timeout: timeout},
		pushExec:    retry.NewExecutor(pushRetry, logger),
		pollExec:    retry.NewExecutor(pollRetry, logger),
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Wire Types
// ---------------------------------------------------------------------------

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Currency  string             `json:"currency"`
	CreatedAt time.Time          `json:"createdAt"`
	Items     []orderItemPayload `json:"items"`
}

type orderItemPayload struct {
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type stockPushRequest struct {
	Items []stockItemPayload `json:"items"`
}

type stockItemPayload struct {
	SKU         string               `json:"sku"`
	WarehouseID int                  `json:"warehouseId"`
	Items       []stockAmountPayload `json:"items"`
}

type stockAmountPayload struct {
	Count     int       `json:"count"`
	Type      string    `json:"type"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// FetchOrders returns all marketplace orders in the given status.
func (c *Client) FetchOrders(ctx context.Context, status integration.OrderStatus) ([]integration.MarketplaceOrder, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid order status %q", status)
	}

	var resp orderListResponse
	err := c.pollExec.Do(ctx, "marketplace.fetch_orders", func(ctx context.Context) error {
		url := fmt.Sprintf("%s/api/v1/orders?status=%s", c.baseURL, status)
		return c.doRequest(ctx, http.MethodGet, url, nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch orders: %v", integration.ErrMarketplaceUnavailable, err)
	}

	orders := make([]integration.MarketplaceOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order := integration.MarketplaceOrder{
			ExternalOrderID: o.ID,
			Status:          integration.OrderStatus(o.Status),
			Currency:        o.Currency,
			CreatedAt:       o.CreatedAt,
		}
		for _, item := range o.Items {
			order.Items = append(order.Items, integration.MarketplaceOrderItem{
				ExternalProductID: item.SKU,
				Quantity:          item.Quantity,
				UnitPrice:         item.Price,
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// PushStock pushes stock updates, splitting the slice into batches of at
// most 2000 items. Each batch is retried independently; the first batch that
// exhausts its retries fails the whole push.
func (c *Client) PushStock(ctx context.Context, updates []integration.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	for start := 0; start < len(updates); start += maxStockBatchSize {
		end := start + maxStockBatchSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := c.pushStockBatch(ctx, updates[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) pushStockBatch(ctx context.Context, batch []integration.StockUpdate) error {
	req := stockPushRequest{Items: make([]stockItemPayload, 0, len(batch))}
	for _, u := range batch {
		updatedAt := u.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		req.Items = append(req.Items, stockItemPayload{
			SKU:         u.ExternalID,
			WarehouseID: c.warehouseID,
			Items: []stockAmountPayload{{
				Count:     u.Quantity,
				Type:      stockItemType,
				UpdatedAt: updatedAt,
			}},
		})
	}

	err := c.pushExec.Do(ctx, "marketplace.push_stock", func(ctx context.Context) error {
		url := c.baseURL + "/api/v1/stock"
		return c.doRequest(ctx, http.MethodPost, url, req, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: push stock batch of %d: %v", integration.ErrMarketplaceUnavailable, len(batch), err)
	}

	c.logger.Debug("Stock batch pushed", zap.Int("items", len(batch)))
	return nil
}

// doRequest performs one HTTP round trip. Non-2xx responses are returned as
// *retry.HTTPStatusError so the executor can classify them.
func (c *Client) doRequest(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// parseRetryAfter handles the delay-seconds form of the header. The HTTP-date
// form is rare on this API and falls back to the exponential schedule.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Ensure Client implements the gateway port.
var _ integration.MarketplaceGateway = (*Client)(nil)
