package models

import (
	"time"

	"pdfshrink/internal/domain/history"

	"gorm.io/gorm"
)

// CompressionRecord is one processed document of one run
type CompressionRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"index;size:36" json:"run_id"`
	FileID        string    `gorm:"size:36" json:"file_id"`
	Filename      string    `json:"filename"`
	Status        string    `gorm:"index" json:"status"`
	Outcome       string    `json:"outcome"`
	OriginalSize  int64     `json:"original_size"`
	OptimizedSize int64     `json:"optimized_size"`
	FinalSize     int64     `json:"final_size"`
	Budget        int64     `json:"budget"`
	Passes        int       `json:"passes"`
	LastQuality   int       `json:"last_quality"`
	Error         string    `gorm:"type:text" json:"error"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// NewCompressionRecord converts a history record into its database row
func NewCompressionRecord(r *history.Record) *CompressionRecord {
	return &CompressionRecord{
		ID:            r.ID,
		RunID:         r.RunID,
		FileID:        r.FileID,
		Filename:      r.Filename,
		Status:        r.Status,
		Outcome:       r.Outcome,
		OriginalSize:  r.OriginalSize,
		OptimizedSize: r.OptimizedSize,
		FinalSize:     r.FinalSize,
		Budget:        r.Budget,
		Passes:        r.Passes,
		LastQuality:   r.LastQuality,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
	}
}

// Record converts the row back into a history record
func (c *CompressionRecord) Record() history.Record {
	return history.Record{
		ID:            c.ID,
		RunID:         c.RunID,
		FileID:        c.FileID,
		Filename:      c.Filename,
		Status:        c.Status,
		Outcome:       c.Outcome,
		OriginalSize:  c.OriginalSize,
		OptimizedSize: c.OptimizedSize,
		FinalSize:     c.FinalSize,
		Budget:        c.Budget,
		Passes:        c.Passes,
		LastQuality:   c.LastQuality,
		Error:         c.Error,
		CreatedAt:     c.CreatedAt,
	}
}

// RecentRecords returns up to limit rows, newest first
func RecentRecords(db *gorm.DB, limit int) ([]CompressionRecord, error) {
	var records []CompressionRecord
	err := db.Order("created_at desc").Order("id desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
