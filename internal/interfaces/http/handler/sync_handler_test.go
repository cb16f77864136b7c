package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/domain/shared"
	"github.com/erp/channelsync/internal/infrastructure/persistence"
	"github.com/erp/channelsync/internal/infrastructure/scheduler"
)

type fakeTrigger struct {
	stockStats integration.SyncStats
	stockErr   error
	pollResult scheduler.OrderPollResult
	pollErr    error
	history    []scheduler.JobRecord
}

func (f *fakeTrigger) TriggerStockSweep(ctx context.Context) (integration.SyncStats, error) {
	return f.stockStats, f.stockErr
}

func (f *fakeTrigger) TriggerOrderPoll(ctx context.Context) (scheduler.OrderPollResult, error) {
	return f.pollResult, f.pollErr
}

func (f *fakeTrigger) History() []scheduler.JobRecord {
	return f.history
}

func (f *fakeTrigger) Status() scheduler.Status {
	return scheduler.Status{Running: true}
}

type fakeMappingAdmin struct {
	count   int
	loadErr error
	listErr error
}

func (f *fakeMappingAdmin) LoadMappings(ctx context.Context) (int, error) {
	return f.count, f.loadErr
}

func (f *fakeMappingAdmin) MappingCount() int { return f.count }

func (f *fakeMappingAdmin) ListInternalIDs() ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return make([]string, f.count), nil
}

func (f *fakeMappingAdmin) ListExternalIDs() ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return make([]string, f.count), nil
}

type fakeRunLister struct {
	runs []persistence.SyncRunRecord
	err  error
}

func (f *fakeRunLister) List(ctx context.Context, limit int) ([]persistence.SyncRunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeResetter struct {
	resets int
}

func (f *fakeResetter) Reset() { f.resets++ }

func newSyncRouter(h *SyncHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	{
		api.POST("/sync/stock", h.TriggerStockSync)
		api.POST("/sync/orders", h.TriggerOrderSync)
		api.POST("/sync/processed/reset", h.ResetProcessedOrders)
		api.POST("/mappings/reload", h.ReloadMappings)
		api.GET("/mappings/stats", h.MappingStats)
		api.GET("/sync/runs", h.ListRuns)
		api.GET("/sync/status", h.SyncStatus)
	}
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSyncHandler_TriggerStockSync(t *testing.T) {
	t.Run("Returns sweep stats", func(t *testing.T) {
		trigger := &fakeTrigger{stockStats: integration.SyncStats{Total: 5, Synced: 5}}
		h := NewSyncHandler(trigger, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/stock")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"synced":5`)
	})

	t.Run("Overlapping sweep returns 409", func(t *testing.T) {
		trigger := &fakeTrigger{stockErr: shared.ErrAlreadyRunning}
		h := NewSyncHandler(trigger, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/stock")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Sweep failure returns 500", func(t *testing.T) {
		trigger := &fakeTrigger{stockErr: errors.New("mapping store unavailable")}
		h := NewSyncHandler(trigger, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/stock")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestSyncHandler_TriggerOrderSync(t *testing.T) {
	t.Run("Returns combined poll result", func(t *testing.T) {
		trigger := &fakeTrigger{pollResult: scheduler.OrderPollResult{
			Poll: integration.OrderSyncStats{Processed: 2, Successful: 2},
		}}
		h := NewSyncHandler(trigger, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/orders")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"successful":2`)
	})

	t.Run("Overlapping poll returns 409", func(t *testing.T) {
		trigger := &fakeTrigger{pollErr: shared.ErrAlreadyRunning}
		h := NewSyncHandler(trigger, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/orders")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestSyncHandler_Mappings(t *testing.T) {
	t.Run("Reload reports count", func(t *testing.T) {
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{count: 12}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/mappings/reload")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":12`)
	})

	t.Run("Reload failure returns 500", func(t *testing.T) {
		admin := &fakeMappingAdmin{loadErr: errors.New("corrupt file")}
		h := NewSyncHandler(&fakeTrigger{}, admin, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/mappings/reload")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Stats endpoint", func(t *testing.T) {
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{count: 3}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodGet, "/api/v1/mappings/stats")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":3`)
	})
}

func TestSyncHandler_Runs(t *testing.T) {
	t.Run("Lists persisted runs", func(t *testing.T) {
		runs := &fakeRunLister{runs: []persistence.SyncRunRecord{{ID: "run-1", Kind: "stock"}}}
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{}, runs, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodGet, "/api/v1/sync/runs")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "run-1")
	})

	t.Run("History disabled still returns recent jobs", func(t *testing.T) {
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodGet, "/api/v1/sync/runs")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid limit returns 400", func(t *testing.T) {
		runs := &fakeRunLister{}
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{}, runs, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodGet, "/api/v1/sync/runs?limit=-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_Status(t *testing.T) {
	h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{count: 9}, nil, nil, zap.NewNop())

	w := doRequest(newSyncRouter(h), http.MethodGet, "/api/v1/sync/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mappingCount":9`)
	assert.Contains(t, w.Body.String(), `"running":true`)
}

func TestSyncHandler_ResetProcessedOrders(t *testing.T) {
	t.Run("Clears the set", func(t *testing.T) {
		resetter := &fakeResetter{}
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{}, nil, resetter, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/processed/reset")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, resetter.resets)
	})

	t.Run("Unsupported store returns 409", func(t *testing.T) {
		h := NewSyncHandler(&fakeTrigger{}, &fakeMappingAdmin{}, nil, nil, zap.NewNop())

		w := doRequest(newSyncRouter(h), http.MethodPost, "/api/v1/sync/processed/reset")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
