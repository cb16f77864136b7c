// Package persistence stores the audit history of synchronization runs in an
// embedded sqlite database.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SyncRunRecord is one persisted sweep or poll run.
type SyncRunRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Kind         string    `gorm:"size:32;index" json:"kind"`
	Status       string    `gorm:"size:16" json:"status"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Total        int       `json:"total"`
	Successful   int       `json:"successful"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	ErrorSummary string    `gorm:"size:4096" json:"errorSummary,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName overrides the gorm default.
func (SyncRunRecord) TableName() string {
	return "sync_runs"
}

// SyncRunRepository persists and lists SyncRunRecords.
type SyncRunRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSyncRunRepository opens (or creates) the sqlite database at path and
// migrates the schema.
func NewSyncRunRepository(path string, logger *zap.Logger) (*SyncRunRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sync history database %s: %w", path, err)
	}
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("install gorm tracing plugin: %w", err)
	}
	if err := db.AutoMigrate(&SyncRunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sync history schema: %w", err)
	}

	logger.Info("Sync run history database ready", zap.String("path", path))
	return &SyncRunRepository{db: db, logger: logger}, nil
}

// Save persists one run record.
func (r *SyncRunRepository) Save(ctx context.Context, record *SyncRunRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("save sync run record: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *SyncRunRepository) List(ctx context.Context, limit int) ([]SyncRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []SyncRunRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list sync run records: %w", err)
	}
	return records, nil
}

// Close closes the underlying database connection.
func (r *SyncRunRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
