package history

import "time"

// Record is one processed document as kept in the history store.
type Record struct {
	ID            uint      `json:"id"`
	RunID         string    `json:"run_id"`
	FileID        string    `json:"file_id"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	Outcome       string    `json:"outcome"`
	OriginalSize  int64     `json:"original_size"`
	OptimizedSize int64     `json:"optimized_size"`
	FinalSize     int64     `json:"final_size"`
	Budget        int64     `json:"budget"`
	Passes        int       `json:"passes"`
	LastQuality   int       `json:"last_quality"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository stores and lists history records.
type Repository interface {
	Save(record *Record) error
	Recent(limit int) ([]Record, error)
}
