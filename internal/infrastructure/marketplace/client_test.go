package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/retry"
)

// fastRetry keeps test retries instant.
var fastRetry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		PushRetry: fastRetry,
		PollRetry: fastRetry,
	}, zap.NewNop())
}

func TestClient_FetchOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("Decodes orders", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/orders", r.URL.Path)
			assert.Equal(t, "PROCESSING", r.URL.Query().Get("status"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"orders":[{"id":"EXT-1","status":"PROCESSING","currency":"EUR","items":[{"sku":"OFF1","quantity":2,"price":"19.99"}]}]}`)
		}))
		defer server.Close()

		orders, err := newTestClient(server.URL).FetchOrders(ctx, integration.OrderStatusProcessing)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "EXT-1", orders[0].ExternalOrderID)
		assert.Equal(t, integration.OrderStatusProcessing, orders[0].Status)
		require.Len(t, orders[0].Items, 1)
		assert.Equal(t, "OFF1", orders[0].Items[0].ExternalProductID)
		assert.Equal(t, 2, orders[0].Items[0].Quantity)
		assert.Equal(t, "19.99", orders[0].Items[0].UnitPrice.String())
	})

	t.Run("Invalid status rejected locally", func(t *testing.T) {
		_, err := newTestClient("http://unused").FetchOrders(ctx, integration.OrderStatus("NOPE"))
		assert.Error(t, err)
	})

	t.Run("Server errors retried then surfaced", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchOrders(ctx, integration.OrderStatusShipped)
		assert.ErrorIs(t, err, integration.ErrMarketplaceUnavailable)
		assert.Equal(t, 3, calls) // initial + 2 retries
	})

	t.Run("Client errors not retried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).FetchOrders(ctx, integration.OrderStatusShipped)
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestClient_PushStock(t *testing.T) {
	ctx := context.Background()

	t.Run("Payload shape", func(t *testing.T) {
		var captured stockPushRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/stock", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		err := newTestClient(server.URL).PushStock(ctx, []integration.StockUpdate{
			{ExternalID: "OFF1", Quantity: 13, UpdatedAt: updatedAt},
		})
		require.NoError(t, err)

		require.Len(t, captured.Items, 1)
		item := captured.Items[0]
		assert.Equal(t, "OFF1", item.SKU)
		assert.Equal(t, 0, item.WarehouseID)
		require.Len(t, item.Items, 1)
		assert.Equal(t, 13, item.Items[0].Count)
		assert.Equal(t, "FIT", item.Items[0].Type)
		assert.True(t, item.Items[0].UpdatedAt.Equal(updatedAt))
	})

	t.Run("Large pushes split into batches of 2000", func(t *testing.T) {
		var batchSizes []int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req stockPushRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			batchSizes = append(batchSizes, len(req.Items))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		updates := make([]integration.StockUpdate, 2001)
		for i := range updates {
			updates[i] = integration.StockUpdate{ExternalID: fmt.Sprintf("OFF%d", i), Quantity: i}
		}

		require.NoError(t, newTestClient(server.URL).PushStock(ctx, updates))
		assert.Equal(t, []int{2000, 1}, batchSizes)
	})

	t.Run("Empty push is a no-op", func(t *testing.T) {
		require.NoError(t, newTestClient("http://unused").PushStock(ctx, nil))
	})

	t.Run("Rate limit honored via Retry-After", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestClient(server.URL).PushStock(ctx, []integration.StockUpdate{{ExternalID: "OFF1", Quantity: 1}})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
}
