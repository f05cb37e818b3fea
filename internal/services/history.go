package services

import (
	"fmt"
	"time"

	"pdfshrink/internal/domain/history"
	"pdfshrink/internal/models"

	"gorm.io/gorm"
)

// DefaultHistoryLimit is the number of records listed when none is given
const DefaultHistoryLimit = 20

// HistoryService stores per-document results across runs
type HistoryService struct {
	db *gorm.DB
}

// NewHistoryService creates a new history service
func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{db: db}
}

// Save appends a record and fills in its ID and timestamp
func (s *HistoryService) Save(record *history.Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	row := models.NewCompressionRecord(record)
	if err := s.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to save history record for %s: %w", record.Filename, err)
	}

	record.ID = row.ID
	return nil
}

// Recent returns up to limit records, newest first
func (s *HistoryService) Recent(limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := models.RecentRecords(s.db, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	records := make([]history.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].Record()
	}
	return records, nil
}
