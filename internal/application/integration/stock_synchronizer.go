package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/telemetry"
)

// StockSynchronizer pushes inventory stock levels to the marketplace, either
// for a single product on a webhook notification or for the whole mapped
// universe during the periodic reconciliation sweep.
type StockSynchronizer struct {
	mapper      *Mapper
	inventory   integration.InventoryGateway
	marketplace integration.MarketplaceGateway
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// NewStockSynchronizer creates a StockSynchronizer. metrics may be nil.
func NewStockSynchronizer(
	mapper *Mapper,
	inventory integration.InventoryGateway,
	marketplace integration.MarketplaceGateway,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *StockSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockSynchronizer{
		mapper:      mapper,
		inventory:   inventory,
		marketplace: marketplace,
		metrics:     metrics,
		logger:      logger,
	}
}

// pushStock is the shared translation step: resolve the external id, fetch
// the current stock level, and push the available quantity. An unmapped id
// is a skip, not an error. Returns whether a push happened.
func (s *StockSynchronizer) pushStock(ctx context.Context, internalID string) (bool, error) {
	externalID, ok := s.mapper.MapInternalToExternal(ctx, internalID)
	if !ok {
		s.logger.Info("Skipping stock push for unmapped product",
			zap.String("internal_id", internalID),
		)
		s.metrics.RecordStockItem(ctx, telemetry.ItemSkipped)
		return false, nil
	}

	level, err := s.inventory.GetStock(ctx, internalID)
	if err != nil {
		s.metrics.RecordStockItem(ctx, telemetry.ItemError)
		return false, err
	}

	update := integration.StockUpdate{
		ExternalID: externalID,
		Quantity:   level.Available(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.marketplace.PushStock(ctx, []integration.StockUpdate{update}); err != nil {
		s.metrics.RecordStockItem(ctx, telemetry.ItemError)
		return false, err
	}

	s.logger.Debug("Stock pushed",
		zap.String("internal_id", internalID),
		zap.String("external_id", externalID),
		zap.Int("quantity", update.Quantity),
	)
	s.metrics.RecordStockItem(ctx, telemetry.ItemSynced)
	return true, nil
}

// HandleWebhookUpdate pushes stock for exactly one product. Errors are
// logged and swallowed: a lost webhook update is corrected by the next full
// sweep, so a single failure must never surface to the webhook sender.
func (s *StockSynchronizer) HandleWebhookUpdate(ctx context.Context, internalID string) {
	ctx, span := telemetry.StartSpan(ctx, "stock_sync.webhook_update")
	defer span.End()

	if _, err := s.pushStock(ctx, internalID); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Webhook stock push failed",
			zap.String("internal_id", internalID),
			zap.Error(err),
		)
	}
}

// FullSweep pushes stock for every mapped internal id sequentially with
// per-item error isolation. The returned stats satisfy
// Synced + Skipped + len(Errors) == Total for every run.
func (s *StockSynchronizer) FullSweep(ctx context.Context) (integration.SyncStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "stock_sync.full_sweep")
	defer span.End()

	start := time.Now()
	internalIDs, err := s.mapper.ListInternalIDs()
	if err != nil {
		telemetry.RecordError(span, err)
		return integration.SyncStats{}, err
	}

	stats := integration.SyncStats{Total: len(internalIDs)}
	for _, internalID := range internalIDs {
		synced, err := s.pushStock(ctx, internalID)
		switch {
		case err != nil:
			stats.Errors = append(stats.Errors, integration.SyncItemError{
				InternalID: internalID,
				Message:    err.Error(),
			})
			s.logger.Error("Sweep item failed",
				zap.String("internal_id", internalID),
				zap.Error(err),
			)
		case synced:
			stats.Synced++
		default:
			stats.Skipped++
		}
	}

	duration := time.Since(start)
	s.metrics.RecordSweepDuration(ctx, "stock", duration)
	s.logger.Info("Stock sweep finished",
		zap.Int("total", stats.Total),
		zap.Int("synced", stats.Synced),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", len(stats.Errors)),
		zap.Duration("duration", duration),
	)
	return stats, nil
}
