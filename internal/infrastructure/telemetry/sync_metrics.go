package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup result attribute values.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Stock item result attribute values.
const (
	ItemSynced  = "synced"
	ItemSkipped = "skipped"
	ItemError   = "error"
)

// SyncMetrics tracks the synchronization engine's observable behavior:
// mapping lookup hits and misses, sweep item outcomes, order poll outcomes,
// and sweep durations. A nil *SyncMetrics is a valid no-op collaborator.
type SyncMetrics struct {
	lookupTotal    *Counter
	stockItemTotal *Counter
	orderTotal     *Counter
	webhookTotal   *Counter
	sweepDuration  *Histogram
	mappingCount   *Gauge
}

// NewSyncMetrics creates the sync metric instruments on the given meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	m.lookupTotal, err = NewCounter(meter,
		"channelsync_mapping_lookup_total",
		"Total number of mapping lookups by direction and result",
		"{lookups}")
	if err != nil {
		return nil, err
	}

	m.stockItemTotal, err = NewCounter(meter,
		"channelsync_stock_item_total",
		"Total number of stock items handled by result",
		"{items}")
	if err != nil {
		return nil, err
	}

	m.orderTotal, err = NewCounter(meter,
		"channelsync_order_total",
		"Total number of marketplace orders handled by result",
		"{orders}")
	if err != nil {
		return nil, err
	}

	m.webhookTotal, err = NewCounter(meter,
		"channelsync_webhook_event_total",
		"Total number of webhook events received by outcome",
		"{events}")
	if err != nil {
		return nil, err
	}

	m.sweepDuration, err = NewHistogram(meter,
		"channelsync_sweep_duration_seconds",
		"Duration of full synchronization sweeps by kind",
		"s")
	if err != nil {
		return nil, err
	}

	m.mappingCount, err = NewGauge(meter,
		"channelsync_mapping_count",
		"Number of loaded product mappings",
		"{mappings}")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordLookup records one mapping lookup.
func (m *SyncMetrics) RecordLookup(ctx context.Context, direction string, hit bool) {
	if m == nil {
		return
	}
	result := LookupMiss
	if hit {
		result = LookupHit
	}
	m.lookupTotal.Inc(ctx,
		attribute.String("direction", direction),
		attribute.String("result", result),
	)
}

// RecordStockItem records one stock item outcome.
func (m *SyncMetrics) RecordStockItem(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.stockItemTotal.Inc(ctx, attribute.String("result", result))
}

// RecordOrder records one order outcome.
func (m *SyncMetrics) RecordOrder(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.orderTotal.Inc(ctx, attribute.String("result", result))
}

// RecordWebhookEvent records one received webhook event.
func (m *SyncMetrics) RecordWebhookEvent(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.Inc(ctx, attribute.String("outcome", outcome))
}

// RecordSweepDuration records one sweep's duration.
func (m *SyncMetrics) RecordSweepDuration(ctx context.Context, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.RecordDuration(ctx, d, attribute.String("kind", kind))
}

// RecordMappingCount records the current size of the mapping table.
func (m *SyncMetrics) RecordMappingCount(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.mappingCount.Record(ctx, int64(count))
}
