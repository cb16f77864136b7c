package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/domain/shared"
	"github.com/erp/channelsync/internal/infrastructure/persistence"
	"github.com/erp/channelsync/internal/infrastructure/scheduler"
	"github.com/erp/channelsync/internal/interfaces/http/dto"
)

// SyncTrigger starts sweeps on demand and exposes scheduler state.
type SyncTrigger interface {
	TriggerStockSweep(ctx context.Context) (integration.SyncStats, error)
	TriggerOrderPoll(ctx context.Context) (scheduler.OrderPollResult, error)
	History() []scheduler.JobRecord
	Status() scheduler.Status
}

// MappingAdmin reloads and inspects the id mapping table.
type MappingAdmin interface {
	LoadMappings(ctx context.Context) (int, error)
	MappingCount() int
	ListInternalIDs() ([]string, error)
	ListExternalIDs() ([]string, error)
}

// RunLister reads the persisted run history. May be nil when history is
// disabled.
type RunLister interface {
	List(ctx context.Context, limit int) ([]persistence.SyncRunRecord, error)
}

// ProcessedResetter clears the processed-order de-dup set.
type ProcessedResetter interface {
	Reset()
}

// SyncHandler exposes the administrative sync API.
type SyncHandler struct {
	BaseHandler
	trigger   SyncTrigger
	mapper    MappingAdmin
	runs      RunLister
	processed ProcessedResetter
	logger    *zap.Logger
}

// NewSyncHandler creates a SyncHandler. runs and processed may be nil.
func NewSyncHandler(trigger SyncTrigger, mapper MappingAdmin, runs RunLister, processed ProcessedResetter, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{
		trigger:   trigger,
		mapper:    mapper,
		runs:      runs,
		processed: processed,
		logger:    logger,
	}
}

// TriggerStockSync runs a full stock sweep synchronously.
func (h *SyncHandler) TriggerStockSync(c *gin.Context) {
	stats, err := h.trigger.TriggerStockSweep(c.Request.Context())
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyRunning) {
			h.Conflict(c, dto.ErrCodeAlreadyRunning, "A stock sweep is already in progress")
			return
		}
		h.logger.Error("Manual stock sweep failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// TriggerOrderSync runs an order poll tick synchronously.
func (h *SyncHandler) TriggerOrderSync(c *gin.Context) {
	result, err := h.trigger.TriggerOrderPoll(c.Request.Context())
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyRunning) {
			h.Conflict(c, dto.ErrCodeAlreadyRunning, "An order poll is already in progress")
			return
		}
		h.logger.Error("Manual order poll failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReloadMappings re-reads the mapping file from disk.
func (h *SyncHandler) ReloadMappings(c *gin.Context) {
	count, err := h.mapper.LoadMappings(c.Request.Context())
	if err != nil {
		h.logger.Error("Mapping reload failed", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeStorageFailure, "Failed to reload mappings")
		return
	}
	h.Success(c, gin.H{"count": count})
}

// MappingStats reports the size of the in-memory mapping table.
func (h *SyncHandler) MappingStats(c *gin.Context) {
	internalIDs, err := h.mapper.ListInternalIDs()
	if err != nil {
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeStorageFailure, "Mapping table not loaded")
		return
	}
	externalIDs, err := h.mapper.ListExternalIDs()
	if err != nil {
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeStorageFailure, "Mapping table not loaded")
		return
	}
	h.Success(c, gin.H{
		"count":       h.mapper.MappingCount(),
		"internalIds": len(internalIDs),
		"externalIds": len(externalIDs),
	})
}

// ListRuns returns the persisted run history, newest first.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		h.Success(c, gin.H{"runs": []persistence.SyncRunRecord{}, "recent": h.trigger.History()})
		return
	}

	var req dto.SyncRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid limit parameter")
		return
	}

	runs, err := h.runs.List(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list sync runs", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeStorageFailure, "Failed to list sync runs")
		return
	}
	h.Success(c, gin.H{"runs": runs, "recent": h.trigger.History()})
}

// SyncStatus reports scheduler state and mapping table size.
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	h.Success(c, gin.H{
		"scheduler":    h.trigger.Status(),
		"mappingCount": h.mapper.MappingCount(),
	})
}

// ResetProcessedOrders clears the processed-order de-dup set so orders are
// re-evaluated on the next poll.
func (h *SyncHandler) ResetProcessedOrders(c *gin.Context) {
	if h.processed == nil {
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "Processed-order store does not support reset")
		return
	}
	h.processed.Reset()
	h.logger.Info("Processed-order set cleared by administrative request")
	h.Success(c, gin.H{"reset": true})
}
