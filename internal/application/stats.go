package application

import (
	"sync"

	"pdfshrink/internal/common"
	statisticsDomain "pdfshrink/internal/domain/statistics"
)

// StatsManager accumulates the counters of one run
type StatsManager struct {
	mu    sync.Mutex
	stats statisticsDomain.RunStats
}

// NewStatsManager creates a new stats manager
func NewStatsManager() *StatsManager {
	return &StatsManager{}
}

// RecordFound sets the number of documents the run will attempt
func (m *StatsManager) RecordFound(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FilesFound = count
}

// RecordFile adds one finished document
func (m *StatsManager) RecordFile(status string, passes int, dataSaved int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.FilesProcessed++
	m.stats.RecompressPasses += passes
	switch status {
	case common.StatusCompleted:
		m.stats.TargetAchieved++
		m.stats.DataSaved += dataSaved
	case common.StatusWarning:
		m.stats.Warnings++
		m.stats.DataSaved += dataSaved
	default:
		m.stats.Failures++
	}
}

// GetStats returns a snapshot of the counters
func (m *StatsManager) GetStats() *statisticsDomain.RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.stats
	return &snapshot
}
