package handler

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/infrastructure/telemetry"
)

const maxWebhookBodySize = 64 * 1024

// Webhook event outcomes for metrics.
const (
	webhookAccepted  = "accepted"
	webhookIgnored   = "ignored"
	webhookMalformed = "malformed"
)

// StockUpdater pushes one internal id's stock level to the marketplace.
type StockUpdater interface {
	HandleWebhookUpdate(ctx context.Context, internalID string)
}

// WebhookConfig holds validation settings for the inbound webhook.
type WebhookConfig struct {
	Token             string
	ExpectedUserAgent string
	AllowedResources  []string
}

// webhookEvent is one change notification from the inventory platform.
type webhookEvent struct {
	Resource    string `json:"resource"`
	ResourceURL string `json:"resourceUrl"`
	EventType   string `json:"eventType"`
	OccurredAt  string `json:"occurredAt"`
}

// WebhookHandler receives stock change notifications. The contract is
// deliberately forgiving: anything past authentication and a non-empty body
// is answered with 200 so the sender does not retry-storm us, and the actual
// push happens in the background.
type WebhookHandler struct {
	BaseHandler
	config   WebhookConfig
	stock    StockUpdater
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
	resource map[string]struct{}
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(config WebhookConfig, stock StockUpdater, metrics *telemetry.SyncMetrics, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	resource := make(map[string]struct{}, len(config.AllowedResources))
	for _, r := range config.AllowedResources {
		resource[strings.ToLower(r)] = struct{}{}
	}
	return &WebhookHandler{
		config:   config,
		stock:    stock,
		metrics:  metrics,
		logger:   logger,
		resource: resource,
	}
}

// HandleStockWebhook processes POST notifications about stock changes.
func (h *WebhookHandler) HandleStockWebhook(c *gin.Context) {
	if !strings.Contains(c.ContentType(), "application/json") {
		h.Unauthorized(c, "Unsupported content type")
		return
	}
	if h.config.Token != "" && c.GetHeader("X-Webhook-Token") != h.config.Token {
		h.Unauthorized(c, "Invalid webhook token")
		return
	}

	// A sender identity mismatch is suspicious but not proof of forgery,
	// so it is logged and the request still processed.
	if h.config.ExpectedUserAgent != "" && c.Request.UserAgent() != h.config.ExpectedUserAgent {
		h.logger.Warn("Webhook user agent mismatch",
			zap.String("expected", h.config.ExpectedUserAgent),
			zap.String("actual", c.Request.UserAgent()),
		)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil || len(body) == 0 {
		h.BadRequest(c, "Request body is required")
		return
	}

	var events []webhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		// The sender gets a 200 anyway; retrying a malformed payload
		// would produce the same bytes.
		h.logger.Warn("Malformed webhook payload", zap.Error(err), zap.Int("body_size", len(body)))
		h.metrics.RecordWebhookEvent(c.Request.Context(), webhookMalformed)
		h.Success(c, gin.H{"received": 0})
		return
	}

	received := 0
	for _, event := range events {
		if h.dispatch(c.Request.Context(), event) {
			received++
		}
	}

	h.Success(c, gin.H{"received": received})
}

// dispatch hands one event to the stock synchronizer. Returns false for
// events that were ignored.
func (h *WebhookHandler) dispatch(ctx context.Context, event webhookEvent) bool {
	if _, ok := h.resource[strings.ToLower(event.Resource)]; !ok {
		h.logger.Debug("Ignoring webhook event for unhandled resource",
			zap.String("resource", event.Resource),
			zap.String("event_type", event.EventType),
		)
		h.metrics.RecordWebhookEvent(ctx, webhookIgnored)
		return false
	}

	internalID := extractResourceID(event.ResourceURL)
	if internalID == "" {
		h.logger.Warn("Webhook event without usable resource url",
			zap.String("resource", event.Resource),
			zap.String("resource_url", event.ResourceURL),
		)
		h.metrics.RecordWebhookEvent(ctx, webhookMalformed)
		return false
	}

	h.metrics.RecordWebhookEvent(ctx, webhookAccepted)

	// Fire and forget: the 200 response must not wait for the push, and
	// the push must not die with the request context.
	bgCtx := context.WithoutCancel(ctx)
	go h.stock.HandleWebhookUpdate(bgCtx, internalID)
	return true
}

// extractResourceID returns the last non-empty path segment of a resource
// URL, e.g. "https://erp.example/api/v1/products/P1" yields "P1".
func extractResourceID(resourceURL string) string {
	trimmed := strings.TrimRight(resourceURL, "/")
	if trimmed == "" {
		return ""
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
