// Package scheduler drives the periodic reconciliation sweeps: the stock
// full sweep and the order poll run on independent interval tickers with an
// overlap guard, and every run is recorded in the in-memory history ring and
// the sync run repository.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/domain/shared"
	"github.com/erp/channelsync/internal/infrastructure/persistence"
)

// Run kinds.
const (
	KindStock  = "stock"
	KindOrders = "orders"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	defaultHistorySize  = 50
	maxErrorSummaryLen  = 4000
	runRecordingTimeout = 5 * time.Second
)

// ---------------------------------------------------------------------------
// Collaborator Interfaces
// ---------------------------------------------------------------------------

// StockSweeper runs the full stock reconciliation sweep.
type StockSweeper interface {
	FullSweep(ctx context.Context) (integration.SyncStats, error)
}

// OrderPoller ingests new orders and propagates shipments.
type OrderPoller interface {
	PollAndProcessOrders(ctx context.Context) (integration.OrderSyncStats, error)
	ProcessShippedOrders(ctx context.Context) (integration.OrderSyncStats, error)
}

// RunRecorder persists run records. May be nil when history is disabled.
type RunRecorder interface {
	Save(ctx context.Context, record *persistence.SyncRunRecord) error
}

// ---------------------------------------------------------------------------
// Job Records
// ---------------------------------------------------------------------------

// JobRecord is one scheduled or manually triggered run.
type JobRecord struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Summary    string    `json:"summary"`
	Error      string    `json:"error,omitempty"`
}

// OrderPollResult combines the two order sweeps of one tick.
type OrderPollResult struct {
	Poll      integration.OrderSyncStats `json:"poll"`
	Shipments integration.OrderSyncStats `json:"shipments"`
}

// Status is the scheduler's externally visible state.
type Status struct {
	Running           bool          `json:"running"`
	StockSyncInterval time.Duration `json:"stockSyncInterval"`
	OrderPollInterval time.Duration `json:"orderPollInterval"`
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// Config holds scheduler configuration. Intervals must be at least a minute.
type Config struct {
	StockSyncInterval time.Duration
	OrderPollInterval time.Duration
	HistorySize       int
}

// SyncScheduler owns the periodic stock and order sweeps. Each kind runs in
// its own goroutine sequentially, so two runs of the same kind never
// overlap; manual triggers share the same per-kind guard.
type SyncScheduler struct {
	config   Config
	stock    StockSweeper
	orders   OrderPoller
	recorder RunRecorder
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	stockGuard sync.Mutex
	orderGuard sync.Mutex

	historyMu sync.RWMutex
	history   []JobRecord
}

// NewSyncScheduler creates a SyncScheduler. recorder may be nil.
func NewSyncScheduler(
	config Config,
	stock StockSweeper,
	orders OrderPoller,
	recorder RunRecorder,
	logger *zap.Logger,
) *SyncScheduler {
	if config.HistorySize <= 0 {
		config.HistorySize = defaultHistorySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:   config,
		stock:    stock,
		orders:   orders,
		recorder: recorder,
		logger:   logger,
	}
}

// Start launches the two tick loops. Calling Start on a running scheduler
// is a no-op.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runLoop(ctx, KindStock, s.config.StockSyncInterval, func(ctx context.Context) {
		if _, err := s.TriggerStockSweep(ctx); err != nil {
			s.logger.Error("Scheduled stock sweep failed", zap.Error(err))
		}
	})
	go s.runLoop(ctx, KindOrders, s.config.OrderPollInterval, func(ctx context.Context) {
		if _, err := s.TriggerOrderPoll(ctx); err != nil {
			s.logger.Error("Scheduled order poll failed", zap.Error(err))
		}
	})

	s.logger.Info("Sync scheduler started",
		zap.Duration("stock_sync_interval", s.config.StockSyncInterval),
		zap.Duration("order_poll_interval", s.config.OrderPollInterval),
	)
}

// Stop cancels the tick loops and waits for in-flight runs to finish or the
// context to expire.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the tick loops are active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Status returns the scheduler's current state.
func (s *SyncScheduler) Status() Status {
	return Status{
		Running:           s.IsRunning(),
		StockSyncInterval: s.config.StockSyncInterval,
		OrderPollInterval: s.config.OrderPollInterval,
	}
}

func (s *SyncScheduler) runLoop(ctx context.Context, kind string, interval time.Duration, tick func(ctx context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First run happens immediately on start.
	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Tick loop exiting", zap.String("kind", kind))
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// TriggerStockSweep runs one full stock sweep. Returns
// shared.ErrAlreadyRunning when a stock sweep is already in flight.
func (s *SyncScheduler) TriggerStockSweep(ctx context.Context) (integration.SyncStats, error) {
	if !s.stockGuard.TryLock() {
		return integration.SyncStats{}, shared.ErrAlreadyRunning
	}
	defer s.stockGuard.Unlock()

	job := s.startJob(KindStock)
	stats, err := s.stock.FullSweep(ctx)
	if err != nil {
		s.finishJob(job, "", err)
		return integration.SyncStats{}, err
	}

	summary := fmt.Sprintf("total=%d synced=%d skipped=%d errors=%d",
		stats.Total, stats.Synced, stats.Skipped, len(stats.Errors))
	s.finishJob(job, summary, nil)
	s.recordRun(&persistence.SyncRunRecord{
		ID:           job.ID.String(),
		Kind:         KindStock,
		Status:       StatusCompleted,
		StartedAt:    job.StartedAt,
		FinishedAt:   time.Now().UTC(),
		Total:        stats.Total,
		Successful:   stats.Synced,
		Skipped:      stats.Skipped,
		Failed:       len(stats.Errors),
		ErrorSummary: stockErrorSummary(stats),
	})
	return stats, nil
}

// TriggerOrderPoll runs one order poll tick: new-order ingestion followed by
// shipment propagation. Returns shared.ErrAlreadyRunning when an order poll
// is already in flight.
func (s *SyncScheduler) TriggerOrderPoll(ctx context.Context) (OrderPollResult, error) {
	if !s.orderGuard.TryLock() {
		return OrderPollResult{}, shared.ErrAlreadyRunning
	}
	defer s.orderGuard.Unlock()

	job := s.startJob(KindOrders)
	result := OrderPollResult{}

	pollStats, err := s.orders.PollAndProcessOrders(ctx)
	if err != nil {
		s.finishJob(job, "", err)
		return OrderPollResult{}, err
	}
	result.Poll = pollStats

	shipStats, err := s.orders.ProcessShippedOrders(ctx)
	if err != nil {
		s.finishJob(job, "", err)
		return OrderPollResult{}, err
	}
	result.Shipments = shipStats

	summary := fmt.Sprintf("orders processed=%d successful=%d failed=%d, shipments processed=%d successful=%d failed=%d",
		pollStats.Processed, pollStats.Successful, pollStats.Failed,
		shipStats.Processed, shipStats.Successful, shipStats.Failed)
	s.finishJob(job, summary, nil)
	s.recordRun(&persistence.SyncRunRecord{
		ID:           job.ID.String(),
		Kind:         KindOrders,
		Status:       StatusCompleted,
		StartedAt:    job.StartedAt,
		FinishedAt:   time.Now().UTC(),
		Total:        pollStats.Processed + shipStats.Processed,
		Successful:   pollStats.Successful + shipStats.Successful,
		Skipped:      pollStats.Skipped + shipStats.Skipped,
		Failed:       pollStats.Failed + shipStats.Failed,
		ErrorSummary: orderErrorSummary(pollStats, shipStats),
	})
	return result, nil
}

// History returns the newest-first in-memory job history.
func (s *SyncScheduler) History() []JobRecord {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	out := make([]JobRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *SyncScheduler) startJob(kind string) *JobRecord {
	return &JobRecord{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (s *SyncScheduler) finishJob(job *JobRecord, summary string, err error) {
	job.FinishedAt = time.Now().UTC()
	job.Summary = summary
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		s.recordRun(&persistence.SyncRunRecord{
			ID:           job.ID.String(),
			Kind:         job.Kind,
			Status:       StatusFailed,
			StartedAt:    job.StartedAt,
			FinishedAt:   job.FinishedAt,
			ErrorSummary: truncate(err.Error(), maxErrorSummaryLen),
		})
	} else {
		job.Status = StatusCompleted
	}

	s.historyMu.Lock()
	s.history = append([]JobRecord{*job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
	s.historyMu.Unlock()
}

func (s *SyncScheduler) recordRun(record *persistence.SyncRunRecord) {
	if s.recorder == nil {
		return
	}
	// Recording runs detached from the sweep's context so a cancelled sweep
	// still leaves an audit record.
	ctx, cancel := context.WithTimeout(context.Background(), runRecordingTimeout)
	defer cancel()
	if err := s.recorder.Save(ctx, record); err != nil {
		s.logger.Error("Failed to persist sync run record",
			zap.String("run_id", record.ID),
			zap.Error(err),
		)
	}
}

func stockErrorSummary(stats integration.SyncStats) string {
	if len(stats.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(stats.Errors))
	for _, e := range stats.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.InternalID, e.Message))
	}
	return truncate(strings.Join(parts, "; "), maxErrorSummaryLen)
}

func orderErrorSummary(poll, shipments integration.OrderSyncStats) string {
	parts := make([]string, 0, len(poll.Errors)+len(shipments.Errors))
	for _, e := range poll.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.ExternalOrderID, e.Message))
	}
	for _, e := range shipments.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.ExternalOrderID, e.Message))
	}
	if len(parts) == 0 {
		return ""
	}
	return truncate(strings.Join(parts, "; "), maxErrorSummaryLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
