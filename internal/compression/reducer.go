package compression

import (
	"fmt"
	"log/slog"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"
)

// ReducerObserver receives the observable state of a reduction.
type ReducerObserver interface {
	ReductionStarted(size, budget int64)
	AttemptStarted(quality int)
	AttemptFinished(attempt compressionDomain.Attempt)
	ReductionFinished(result *Result)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ReductionStarted(int64, int64) {}
func (NopObserver) AttemptStarted(int) {}
func (NopObserver) AttemptFinished(compressionDomain.Attempt) {}
func (NopObserver) ReductionFinished(*Result) {}

// Result is the final state of one document's reduction.
type Result struct {
	Outcome   compressionDomain.Outcome
	Budget    int64
	StartSize int64
	FinalSize int64
	Attempts  []compressionDomain.Attempt

	// Err is set when a pass failed at the document level, for example when
	// the file could no longer be parsed. The outcome is then OutcomeNoImages.
	Err error
}

// Passes returns the number of recompression passes that altered images.
func (r *Result) Passes() int {
	return len(r.Attempts)
}

// Achieved reports whether the document ended within budget.
func (r *Result) Achieved() bool {
	return r.Outcome == compressionDomain.OutcomeAchieved
}

// Warning returns ErrSizeTargetUnreachable when the document is still over
// budget, and nil otherwise.
func (r *Result) Warning() error {
	if r.FinalSize <= r.Budget {
		return nil
	}
	return fmt.Errorf("%w: final size %.1f KB exceeds budget %.1f KB (%s)",
		common.ErrSizeTargetUnreachable, common.KB(r.FinalSize), common.KB(r.Budget), r.Outcome)
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithQualityLevels replaces the default quality sequence.
func WithQualityLevels(levels QualityLevels) ReducerOption {
	return func(r *Reducer) {
		r.levels = append(QualityLevels(nil), levels...)
	}
}

// WithObserver registers an observer for progress events.
func WithObserver(observer ReducerObserver) ReducerOption {
	return func(r *Reducer) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReducerOption {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSizer replaces the on-disk size probe.
func WithSizer(sizer func(path string) (int64, error)) ReducerOption {
	return func(r *Reducer) {
		if sizer != nil {
			r.sizer = sizer
		}
	}
}

// Reducer drives the adaptive loop: while the file is over budget it
// recompresses images at the next lower quality level.
type Reducer struct {
	budget       int64
	levels       QualityLevels
	recompressor compressionDomain.Recompressor
	observer     ReducerObserver
	logger       *slog.Logger
	sizer        func(path string) (int64, error)
}

// NewReducer creates a reducer for the given budget in bytes.
func NewReducer(budget int64, recompressor compressionDomain.Recompressor, opts ...ReducerOption) *Reducer {
	r := &Reducer{
		budget:       budget,
		levels:       DefaultQualityLevels(),
		recompressor: recompressor,
		observer:     NopObserver{},
		logger:       slog.Default(),
		sizer:        common.FileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Budget returns the size budget in bytes.
func (r *Reducer) Budget() int64 {
	return r.budget
}

// Levels returns a copy of the quality sequence.
func (r *Reducer) Levels() QualityLevels {
	return append(QualityLevels(nil), r.levels...)
}

type state int

const (
	stateEvaluating state = iota
	stateReducing
	stateDone
)

// session is the per-document state of the loop. It lives only for the
// duration of one Reduce call.
type session struct {
	size      int64
	remaining QualityLevels
	outcome   compressionDomain.Outcome
	started   bool
}

// Reduce runs the loop on the file at path, which is rewritten in place by
// each pass. Every pass works on the previous pass's output.
func (r *Reducer) Reduce(path string) (*Result, error) {
	size, err := r.sizer(path)
	if err != nil {
		return nil, fmt.Errorf("failed to measure %s: %w", path, err)
	}

	s := &session{
		size:      size,
		remaining: r.Levels(),
	}
	result := &Result{
		Budget:    r.budget,
		StartSize: size,
	}
	logger := r.logger.With("file", path, "budget", r.budget)

	st := stateEvaluating
	for st != stateDone {
		switch st {
		case stateEvaluating:
			switch {
			case s.size <= r.budget:
				s.outcome = compressionDomain.OutcomeAchieved
				st = stateDone
			case len(s.remaining) == 0:
				s.outcome = compressionDomain.OutcomeExhausted
				st = stateDone
			default:
				if !s.started {
					s.started = true
					r.observer.ReductionStarted(s.size, r.budget)
				}
				st = stateReducing
			}

		case stateReducing:
			quality := s.remaining[0]
			s.remaining = s.remaining[1:]
			r.observer.AttemptStarted(quality)

			altered, err := r.recompressor.Recompress(path, quality)
			if err != nil {
				logger.Warn("Recompression pass failed", "quality", quality, "error", err)
				result.Err = err
				s.outcome = compressionDomain.OutcomeNoImages
				st = stateDone
				continue
			}
			if altered == 0 {
				s.outcome = compressionDomain.OutcomeNoImages
				st = stateDone
				continue
			}

			newSize, err := r.sizer(path)
			if err != nil {
				return nil, fmt.Errorf("failed to measure %s: %w", path, err)
			}
			s.size = newSize

			attempt := compressionDomain.Attempt{
				Quality:       quality,
				ImagesAltered: altered,
				Size:          newSize,
			}
			result.Attempts = append(result.Attempts, attempt)
			r.observer.AttemptFinished(attempt)
			logger.Debug("Recompression pass finished", "quality", quality, "images", altered, "size", newSize)

			st = stateEvaluating
		}
	}

	result.Outcome = s.outcome
	result.FinalSize = s.size
	r.observer.ReductionFinished(result)

	logger.Info("Reduction finished",
		"outcome", result.Outcome,
		"start_size", result.StartSize,
		"final_size", result.FinalSize,
		"passes", result.Passes())

	return result, nil
}
