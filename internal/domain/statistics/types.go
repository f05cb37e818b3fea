package statistics

// RunStats represents counters for one batch run
type RunStats struct {
	FilesFound       int   `json:"files_found"`
	FilesProcessed   int   `json:"files_processed"`
	TargetAchieved   int   `json:"target_achieved"`
	Warnings         int   `json:"warnings"`
	Failures         int   `json:"failures"`
	RecompressPasses int   `json:"recompress_passes"`
	DataSaved        int64 `json:"data_saved"`
}

// Service defines the interface for statistics operations
type Service interface {
	RecordFound(count int)
	RecordFile(status string, passes int, dataSaved int64)
	GetStats() *RunStats
}
