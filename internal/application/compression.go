package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"pdfshrink/internal/common"
	"pdfshrink/internal/compression"
	compressionDomain "pdfshrink/internal/domain/compression"
	"pdfshrink/internal/domain/history"
	statisticsDomain "pdfshrink/internal/domain/statistics"
)

// Reporter receives the user-facing progress of a run. The reducer events
// it inherits always refer to the document of the last FileStarted call.
type Reporter interface {
	compression.ReducerObserver

	RunStarted(request compressionDomain.CompressionRequest)
	InputUnavailable(err error)
	FilesFound(count int)
	FileStarted(index, total int, filename string)
	FileFailed(filename string, err error)
	FileFinished(result compressionDomain.FileResult)
	RunFinished(response compressionDomain.CompressionResponse, stats *statisticsDomain.RunStats)
}

// CompressionHandler runs the batch: each document of the input directory is
// optimized into the output directory and then reduced to the budget.
type CompressionHandler struct {
	logger       *slog.Logger
	optimizer    compressionDomain.Optimizer
	recompressor compressionDomain.Recompressor
	levels       compression.QualityLevels
	history      history.Repository
	reporter     Reporter
}

// NewCompressionHandler creates a new compression handler. repo may be
// nil, in which case results are not persisted.
func NewCompressionHandler(
	logger *slog.Logger,
	optimizer compressionDomain.Optimizer,
	recompressor compressionDomain.Recompressor,
	levels compression.QualityLevels,
	repo history.Repository,
	reporter Reporter,
) *CompressionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompressionHandler{
		logger:       logger,
		optimizer:    optimizer,
		recompressor: recompressor,
		levels:       levels,
		history:      repo,
		reporter:     reporter,
	}
}

// CompressPDF processes every PDF of request.InputDir one after another.
//
// A missing input directory or an empty one yields an error matching
// common.ErrInputDirMissing or common.ErrNoPDFFiles after it has been
// reported. Failures of single documents are reported and recorded in the
// response; they never end the run. ctx is checked between documents only.
func (h *CompressionHandler) CompressPDF(ctx context.Context, request compressionDomain.CompressionRequest) (compressionDomain.CompressionResponse, error) {
	response := compressionDomain.CompressionResponse{
		RunID: common.GenerateUUID(),
	}
	logger := h.logger.With("run_id", response.RunID)
	stats := NewStatsManager()

	h.reporter.RunStarted(request)

	if err := EnsureOutputDir(request.OutputDir); err != nil {
		logger.Error("Failed to create output directory", "dir", request.OutputDir, "error", err)
		response.Error = err.Error()
		return response, err
	}

	files, err := ListPDFFiles(request.InputDir)
	if err != nil {
		logger.Warn("Nothing to process", "dir", request.InputDir, "error", err)
		h.reporter.InputUnavailable(err)
		response.Error = err.Error()
		return response, err
	}

	stats.RecordFound(len(files))
	h.reporter.FilesFound(len(files))
	logger.Info("Starting compression run",
		"files", len(files),
		"budget", request.Budget,
		"input_dir", request.InputDir,
		"output_dir", request.OutputDir)

	reducer := compression.NewReducer(request.Budget, h.recompressor,
		compression.WithQualityLevels(h.levels),
		compression.WithObserver(h.reporter),
		compression.WithLogger(logger))

	var runErr error
	for i, inputPath := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("Compression cancelled by context", "remaining", len(files)-i)
			runErr = fmt.Errorf("%w after %d of %d files: %v", ErrRunInterrupted, i, len(files), err)
			break
		}

		filename := filepath.Base(inputPath)
		h.reporter.FileStarted(i+1, len(files), filename)

		result := h.processSingleFile(logger, reducer, inputPath, OutputPath(request.OutputDir, inputPath))
		response.Files = append(response.Files, result)

		saved := result.OriginalSize - result.CompressedSize
		stats.RecordFile(result.Status, result.Passes(), saved)
		h.recordHistory(logger, response.RunID, request.Budget, result)

		if result.Status == common.StatusError {
			h.reporter.FileFailed(filename, errors.New(result.Error))
			continue
		}
		response.TotalOriginalSize += result.OriginalSize
		response.TotalCompressedSize += result.CompressedSize
		h.reporter.FileFinished(result)
	}

	response.TotalFiles = len(response.Files)
	response.OverallCompressionRatio = compressionRatio(response.TotalOriginalSize, response.TotalCompressedSize)
	response.Success = runErr == nil
	if runErr != nil {
		response.Error = runErr.Error()
	}

	runStats := stats.GetStats()
	h.reporter.RunFinished(response, runStats)
	logger.Info("Compression run finished",
		"processed", runStats.FilesProcessed,
		"achieved", runStats.TargetAchieved,
		"warnings", runStats.Warnings,
		"failures", runStats.Failures,
		"data_saved", runStats.DataSaved)

	return response, runErr
}

func (h *CompressionHandler) processSingleFile(logger *slog.Logger, reducer *compression.Reducer, inputPath, outputPath string) compressionDomain.FileResult {
	filename := filepath.Base(inputPath)
	logger = logger.With("file", filename)

	result := compressionDomain.FileResult{
		FileID:           common.GenerateUUID(),
		OriginalFilename: filename,
		OutputPath:       outputPath,
	}

	fail := func(err error) compressionDomain.FileResult {
		fileErr := NewFileError(filename, err)
		logger.Error("Error processing file", "error", fileErr)
		result.Status = common.StatusError
		result.Error = err.Error()
		return result
	}

	originalSize, err := common.FileSize(inputPath)
	if err != nil {
		return fail(err)
	}
	result.OriginalSize = originalSize

	if err := h.optimizer.Optimize(inputPath, outputPath); err != nil {
		return fail(err)
	}

	optimizedSize, err := common.FileSize(outputPath)
	if err != nil {
		return fail(err)
	}
	result.OptimizedSize = optimizedSize

	reduction, err := reducer.Reduce(outputPath)
	if err != nil {
		return fail(err)
	}
	result.Outcome = reduction.Outcome
	result.Attempts = reduction.Attempts
	result.CompressedSize = reduction.FinalSize
	result.CompressionRatio = compressionRatio(originalSize, reduction.FinalSize)

	// A pass that could not read the document leaves the previous output in
	// place, so the file ends over budget like any other unreachable target.
	switch warning := reduction.Warning(); {
	case warning != nil && reduction.Err != nil:
		result.Status = common.StatusWarning
		result.Error = fmt.Sprintf("%v: %v", warning, reduction.Err)
	case warning != nil:
		result.Status = common.StatusWarning
		result.Error = warning.Error()
	case reduction.Err != nil:
		result.Status = common.StatusWarning
		result.Error = reduction.Err.Error()
	default:
		result.Status = common.StatusCompleted
	}

	logger.Debug("File processed",
		"status", result.Status,
		"original_size", result.OriginalSize,
		"optimized_size", result.OptimizedSize,
		"final_size", result.CompressedSize)
	return result
}

func (h *CompressionHandler) recordHistory(logger *slog.Logger, runID string, budget int64, result compressionDomain.FileResult) {
	if h.history == nil {
		return
	}

	record := &history.Record{
		RunID:         runID,
		FileID:        result.FileID,
		Filename:      result.OriginalFilename,
		Status:        result.Status,
		Outcome:       string(result.Outcome),
		OriginalSize:  result.OriginalSize,
		OptimizedSize: result.OptimizedSize,
		FinalSize:     result.CompressedSize,
		Budget:        budget,
		Passes:        result.Passes(),
		LastQuality:   result.LastQuality(),
		Error:         result.Error,
	}
	if err := h.history.Save(record); err != nil {
		logger.Warn("Failed to record history", "file", result.OriginalFilename, "error", err)
	}
}

func compressionRatio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}
