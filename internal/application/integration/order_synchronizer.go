package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/telemetry"
)

// defaultProcessedTTL bounds how long a processed-order marker lives. The
// order mapping store remains the durable record; the marker only prevents
// rework between polls.
const defaultProcessedTTL = 7 * 24 * time.Hour

// shippedMarkerPrefix namespaces shipment markers in the processed store so
// a created order can still go through the shipment path.
const shippedMarkerPrefix = "shipped:"

// OrderSynchronizer polls the marketplace for orders, translates their line
// items through the Mapper, creates matching orders and shipments in the
// inventory system, and persists order mappings.
type OrderSynchronizer struct {
	mapper       *Mapper
	inventory    integration.InventoryGateway
	marketplace  integration.MarketplaceGateway
	processed    integration.ProcessedOrderStore
	metrics      *telemetry.SyncMetrics
	logger       *zap.Logger
	processedTTL time.Duration
}

// NewOrderSynchronizer creates an OrderSynchronizer. metrics may be nil.
func NewOrderSynchronizer(
	mapper *Mapper,
	inventory integration.InventoryGateway,
	marketplace integration.MarketplaceGateway,
	processed integration.ProcessedOrderStore,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *OrderSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderSynchronizer{
		mapper:       mapper,
		inventory:    inventory,
		marketplace:  marketplace,
		processed:    processed,
		metrics:      metrics,
		logger:       logger,
		processedTTL: defaultProcessedTTL,
	}
}

// PollAndProcessOrders fetches marketplace orders in PROCESSING status and
// creates inventory orders for the ones not handled yet. Per-order failures
// are isolated; an order whose items are all unmapped fails with an
// UnmappableOrderError and is re-offered on the next poll.
func (o *OrderSynchronizer) PollAndProcessOrders(ctx context.Context) (integration.OrderSyncStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "order_sync.poll")
	defer span.End()

	start := time.Now()
	orders, err := o.marketplace.FetchOrders(ctx, integration.OrderStatusProcessing)
	if err != nil {
		telemetry.RecordError(span, err)
		return integration.OrderSyncStats{}, err
	}

	stats := integration.OrderSyncStats{}
	for _, order := range orders {
		done, err := o.processed.IsProcessed(ctx, order.ExternalOrderID)
		if err != nil {
			o.logger.Warn("Processed-order check failed, handling order anyway",
				zap.String("external_order_id", order.ExternalOrderID),
				zap.Error(err),
			)
		}
		if done {
			stats.Skipped++
			continue
		}

		stats.Processed++
		if err := o.processOrder(ctx, order); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, integration.OrderSyncError{
				ExternalOrderID: order.ExternalOrderID,
				Message:         err.Error(),
			})
			o.metrics.RecordOrder(ctx, telemetry.ItemError)
			o.logger.Error("Order processing failed",
				zap.String("external_order_id", order.ExternalOrderID),
				zap.Error(err),
			)
			continue
		}
		stats.Successful++
		o.metrics.RecordOrder(ctx, telemetry.ItemSynced)
	}

	o.metrics.RecordSweepDuration(ctx, "orders", time.Since(start))
	o.logger.Info("Order poll finished",
		zap.Int("fetched", len(orders)),
		zap.Int("processed", stats.Processed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// processOrder translates one marketplace order and creates it in inventory.
func (o *OrderSynchronizer) processOrder(ctx context.Context, order integration.MarketplaceOrder) error {
	draft, err := o.translateOrder(ctx, order)
	if err != nil {
		return err
	}

	internalOrderID, err := o.inventory.CreateOrder(ctx, draft)
	if err != nil {
		return err
	}

	if err := o.mapper.SaveOrderMapping(ctx, order.ExternalOrderID, internalOrderID); err != nil {
		// The inventory order exists but the mapping does not; shipments for
		// this order will fail until the mapping is repaired manually.
		return err
	}

	if _, err := o.processed.MarkProcessed(ctx, order.ExternalOrderID, o.processedTTL); err != nil {
		o.logger.Warn("Failed to mark order as processed",
			zap.String("external_order_id", order.ExternalOrderID),
			zap.Error(err),
		)
	}
	return nil
}

// translateOrder maps every line item to an internal product id, dropping
// unmapped items individually. Prices are converted to the minor currency
// unit exactly.
func (o *OrderSynchronizer) translateOrder(ctx context.Context, order integration.MarketplaceOrder) (integration.OrderDraft, error) {
	draft := integration.OrderDraft{
		ExternalOrderID: order.ExternalOrderID,
		Currency:        order.Currency,
		OrderedAt:       order.CreatedAt,
	}

	for _, item := range order.Items {
		internalID, ok := o.mapper.MapExternalToInternal(ctx, item.ExternalProductID)
		if !ok {
			o.logger.Warn("Dropping unmapped order line",
				zap.String("external_order_id", order.ExternalOrderID),
				zap.String("external_product_id", item.ExternalProductID),
			)
			continue
		}

		unitPriceMinor, err := integration.ToMinorUnit(item.UnitPrice)
		if err != nil {
			return integration.OrderDraft{}, err
		}
		draft.Lines = append(draft.Lines, integration.OrderDraftLine{
			InternalProductID: internalID,
			Quantity:          item.Quantity,
			UnitPriceMinor:    unitPriceMinor,
		})
	}

	if len(draft.Lines) == 0 {
		return integration.OrderDraft{}, &integration.UnmappableOrderError{
			ExternalOrderID: order.ExternalOrderID,
			ItemCount:       len(order.Items),
		}
	}
	return draft, nil
}

// ProcessShippedOrders sweeps marketplace orders in SHIPPED and DELIVERED
// status and creates the matching inventory shipments. DELIVERED is included
// because an order can move past SHIPPED between two sweeps; without it the
// shipment would never be created. A missing order mapping means the order
// was never created upstream and counts as a per-order failure.
func (o *OrderSynchronizer) ProcessShippedOrders(ctx context.Context) (integration.OrderSyncStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "order_sync.shipments")
	defer span.End()

	var orders []integration.MarketplaceOrder
	for _, status := range []integration.OrderStatus{integration.OrderStatusShipped, integration.OrderStatusDelivered} {
		fetched, err := o.marketplace.FetchOrders(ctx, status)
		if err != nil {
			telemetry.RecordError(span, err)
			return integration.OrderSyncStats{}, err
		}
		orders = append(orders, fetched...)
	}

	stats := integration.OrderSyncStats{}
	for _, order := range orders {
		marker := shippedMarkerPrefix + order.ExternalOrderID
		done, err := o.processed.IsProcessed(ctx, marker)
		if err != nil {
			o.logger.Warn("Shipment marker check failed, handling order anyway",
				zap.String("external_order_id", order.ExternalOrderID),
				zap.Error(err),
			)
		}
		if done {
			stats.Skipped++
			continue
		}

		stats.Processed++
		if err := o.shipOrder(ctx, order.ExternalOrderID, marker); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, integration.OrderSyncError{
				ExternalOrderID: order.ExternalOrderID,
				Message:         err.Error(),
			})
			o.logger.Error("Shipment propagation failed",
				zap.String("external_order_id", order.ExternalOrderID),
				zap.Error(err),
			)
			continue
		}
		stats.Successful++
	}

	o.logger.Info("Shipment sweep finished",
		zap.Int("fetched", len(orders)),
		zap.Int("processed", stats.Processed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (o *OrderSynchronizer) shipOrder(ctx context.Context, externalOrderID, marker string) error {
	internalOrderID, ok, err := o.mapper.InternalOrderID(ctx, externalOrderID)
	if err != nil {
		return err
	}
	if !ok {
		return &integration.UnmappableOrderError{ExternalOrderID: externalOrderID}
	}

	if err := o.inventory.CreateShipment(ctx, internalOrderID); err != nil {
		return err
	}

	if _, err := o.processed.MarkProcessed(ctx, marker, o.processedTTL); err != nil {
		o.logger.Warn("Failed to mark shipment as processed",
			zap.String("external_order_id", externalOrderID),
			zap.Error(err),
		)
	}
	return nil
}
