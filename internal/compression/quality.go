package compression

import (
	"fmt"

	"pdfshrink/internal/common"
)

// Reference quality policy: 80, 70, ... 20.
const (
	DefaultQualityStart = 80
	DefaultQualityStop  = 10
	DefaultQualityStep  = 10
)

// QualityLevels is a strictly decreasing sequence of JPEG quality values,
// consumed front to back.
type QualityLevels []int

// DefaultQualityLevels returns 80, 70, 60, 50, 40, 30, 20.
func DefaultQualityLevels() QualityLevels {
	levels, _ := NewQualityLevels(DefaultQualityStart, DefaultQualityStop, DefaultQualityStep)
	return levels
}

// NewQualityLevels builds start, start-step, ... down to but excluding stop.
func NewQualityLevels(start, stop, step int) (QualityLevels, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: quality step must be positive, got %d", common.ErrInvalidConfig, step)
	}
	if start > 100 || start < 1 {
		return nil, fmt.Errorf("%w: quality start %d out of range 1..100", common.ErrInvalidConfig, start)
	}
	if stop < 0 || stop >= start {
		return nil, fmt.Errorf("%w: quality stop %d must be below start %d", common.ErrInvalidConfig, stop, start)
	}

	var levels QualityLevels
	for q := start; q > stop; q -= step {
		levels = append(levels, q)
	}
	return levels, nil
}

// Validate checks that the sequence is non-empty, within 1..100 and
// strictly decreasing.
func (l QualityLevels) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: no quality levels", common.ErrInvalidConfig)
	}
	for i, q := range l {
		if q < 1 || q > 100 {
			return fmt.Errorf("%w: quality %d out of range 1..100", common.ErrInvalidConfig, q)
		}
		if i > 0 && q >= l[i-1] {
			return fmt.Errorf("%w: quality levels must strictly decrease (%d after %d)", common.ErrInvalidConfig, q, l[i-1])
		}
	}
	return nil
}
