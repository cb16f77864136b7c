// Package inventory implements the HTTP client for the upstream inventory
// system: stock lookups, order creation, and shipment creation.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
)

// maxResponseSize caps response bodies read from the inventory API.
const maxResponseSize = 10 * 1024 * 1024

// Config holds inventory client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// Client talks to the inventory REST API. Failures here are isolated per
// item or per order by the synchronizers, so calls are not retried.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an inventory client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// Wire Types
// ---------------------------------------------------------------------------

type stockResponse struct {
	ProductID string `json:"productId"`
	OnHand    int    `json:"onHand"`
	Reserved  int    `json:"reserved"`
}

type createOrderRequest struct {
	ExternalReference string             `json:"externalReference"`
	Currency          string             `json:"currency"`
	OrderedAt         time.Time          `json:"orderedAt"`
	ReserveStock      bool               `json:"reserveStock"`
	Lines             []orderLinePayload `json:"lines"`
}

type orderLinePayload struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// GetStock returns the current stock level for an internal product id.
func (c *Client) GetStock(ctx context.Context, internalID string) (integration.StockLevel, error) {
	var resp stockResponse
	endpoint := fmt.Sprintf("%s/api/v1/products/%s/stock", c.baseURL, url.PathEscape(internalID))
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return integration.StockLevel{}, fmt.Errorf("%w: get stock for %s: %v", integration.ErrInventoryUnavailable, internalID, err)
	}
	return integration.StockLevel{
		InternalID: internalID,
		OnHand:     resp.OnHand,
		Reserved:   resp.Reserved,
	}, nil
}

// CreateOrder creates an order from the draft, reserving the ordered
// quantities, and returns the new internal order id.
func (c *Client) CreateOrder(ctx context.Context, draft integration.OrderDraft) (string, error) {
	if len(draft.Lines) == 0 {
		return "", fmt.Errorf("order draft for %s has no lines", draft.ExternalOrderID)
	}

	req := createOrderRequest{
		ExternalReference: draft.ExternalOrderID,
		Currency:          draft.Currency,
		OrderedAt:         draft.OrderedAt,
		ReserveStock:      true,
		Lines:             make([]orderLinePayload, 0, len(draft.Lines)),
	}
	for _, line := range draft.Lines {
		req.Lines = append(req.Lines, orderLinePayload{
			ProductID:      line.InternalProductID,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
		})
	}

	var resp createOrderResponse
	endpoint := c.baseURL + "/api/v1/orders"
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return "", fmt.Errorf("%w: create order for %s: %v", integration.ErrInventoryUnavailable, draft.ExternalOrderID, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("inventory returned empty order id for %s", draft.ExternalOrderID)
	}

	c.logger.Info("Inventory order created",
		zap.String("external_order_id", draft.ExternalOrderID),
		zap.String("internal_order_id", resp.ID),
		zap.Int("lines", len(draft.Lines)),
	)
	return resp.ID, nil
}

// CreateShipment records a shipment for a previously created order.
func (c *Client) CreateShipment(ctx context.Context, internalOrderID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/shipments", c.baseURL, url.PathEscape(internalOrderID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, struct{}{}, nil); err != nil {
		return fmt.Errorf("%w: create shipment for %s: %v", integration.ErrInventoryUnavailable, internalOrderID, err)
	}
	c.logger.Info("Inventory shipment created", zap.String("internal_order_id", internalOrderID))
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
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
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Ensure Client implements the gateway port.
var _ integration.InventoryGateway = (*Client)(nil)
