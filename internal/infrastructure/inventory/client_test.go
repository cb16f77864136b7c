package inventory

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
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{BaseURL: baseURL, APIKey: "secret"}, zap.NewNop())
}

func TestClient_GetStock(t *testing.T) {
	ctx := context.Background()

	t.Run("Decodes stock level", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/products/P1/stock", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			fmt.Fprint(w, `{"productId":"P1","onHand":15,"reserved":2}`)
		}))
		defer server.Close()

		level, err := newTestClient(server.URL).GetStock(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "P1", level.InternalID)
		assert.Equal(t, 13, level.Available())
	})

	t.Run("Server failure surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetStock(ctx, "P1")
		assert.ErrorIs(t, err, integration.ErrInventoryUnavailable)
	})
}

func TestClient_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates order and returns id", func(t *testing.T) {
		var captured createOrderRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/orders", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			fmt.Fprint(w, `{"id":"SO-42"}`)
		}))
		defer server.Close()

		orderedAt := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
		id, err := newTestClient(server.URL).CreateOrder(ctx, integration.OrderDraft{
			ExternalOrderID: "EXT-1",
			Currency:        "EUR",
			OrderedAt:       orderedAt,
			Lines: []integration.OrderDraftLine{
				{InternalProductID: "P1", Quantity: 2, UnitPriceMinor: 1999},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "SO-42", id)

		assert.Equal(t, "EXT-1", captured.ExternalReference)
		assert.True(t, captured.ReserveStock)
		require.Len(t, captured.Lines, 1)
		assert.Equal(t, "P1", captured.Lines[0].ProductID)
		assert.Equal(t, int64(1999), captured.Lines[0].UnitPriceMinor)
	})

	t.Run("Empty draft rejected", func(t *testing.T) {
		_, err := newTestClient("http://unused").CreateOrder(ctx, integration.OrderDraft{ExternalOrderID: "EXT-1"})
		assert.Error(t, err)
	})

	t.Run("Empty order id rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).CreateOrder(ctx, integration.OrderDraft{
			ExternalOrderID: "EXT-1",
			Lines:           []integration.OrderDraftLine{{InternalProductID: "P1", Quantity: 1}},
		})
		assert.Error(t, err)
	})
}

func TestClient_CreateShipment(t *testing.T) {
	ctx := context.Background()

	t.Run("Posts shipment", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/orders/SO-42/shipments", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		require.NoError(t, newTestClient(server.URL).CreateShipment(ctx, "SO-42"))
		assert.True(t, called)
	})

	t.Run("Failure surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer server.Close()

		err := newTestClient(server.URL).CreateShipment(ctx, "SO-42")
		assert.ErrorIs(t, err, integration.ErrInventoryUnavailable)
	})
}
