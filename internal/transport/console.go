package transport

import (
	"fmt"
	"io"
	"sync"

	"pdfshrink/internal/common"
	"pdfshrink/internal/compression"
	compressionDomain "pdfshrink/internal/domain/compression"
	statisticsDomain "pdfshrink/internal/domain/statistics"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleReporter prints run progress as plain lines. Colors are used only
// when the writer is a terminal.
type ConsoleReporter struct {
	mu        sync.Mutex
	out       io.Writer
	outputDir string
	current   string

	headerStyle  lipgloss.Style
	dimStyle     lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
}

// NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	r := lipgloss.NewRenderer(out)
	return &ConsoleReporter{
		out:          out,
		headerStyle:  r.NewStyle().Foreground(lipgloss.Color("51")).Bold(true),
		dimStyle:     r.NewStyle().Foreground(lipgloss.Color("245")),
		successStyle: r.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		warningStyle: r.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		errorStyle:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

func (c *ConsoleReporter) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *ConsoleReporter) RunStarted(request compressionDomain.CompressionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputDir = request.OutputDir
	c.printf("%s\n", c.headerStyle.Render(fmt.Sprintf("Target maximum file size set to: %d KB", request.Budget/common.BytesPerKB)))
}

func (c *ConsoleReporter) InputUnavailable(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("%s\n", c.errorStyle.Render(fmt.Sprintf("Error! %v.", err)))
}

func (c *ConsoleReporter) FilesFound(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("Found %d PDF files to process.\n", count)
}

func (c *ConsoleReporter) FileStarted(index, total int, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = filename
	c.printf("%s\n", c.dimStyle.Render(fmt.Sprintf("Compressing PDFs [%d/%d] %s", index, total, filename)))
}

func (c *ConsoleReporter) FileFailed(filename string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("\n%s\n", c.errorStyle.Render(fmt.Sprintf("Could not process file '%s'. Error: %v", filename, err)))
}

func (c *ConsoleReporter) FileFinished(result compressionDomain.FileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("%s\n", c.dimStyle.Render(fmt.Sprintf("  %s: %.1f KB -> %.1f KB (%.1f%% smaller)",
		result.OriginalFilename, common.KB(result.OriginalSize), common.KB(result.CompressedSize), result.CompressionRatio)))
}

func (c *ConsoleReporter) RunFinished(response compressionDomain.CompressionResponse, stats *statisticsDomain.RunStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("\n%s\n", c.successStyle.Render("Process completed!"))
	c.printf("The compressed files are in: '%s'\n", c.outputDir)
	c.printf("%s\n", c.dimStyle.Render(fmt.Sprintf("%d processed, %d within budget, %d over budget, %d failed, %.1f KB saved (%.1f%%)",
		stats.FilesProcessed, stats.TargetAchieved, stats.Warnings, stats.Failures,
		common.KB(stats.DataSaved), response.OverallCompressionRatio)))
	if response.Error != "" {
		c.printf("%s\n", c.warningStyle.Render(response.Error))
	}
}

// ReductionStarted implements compression.ReducerObserver.
func (c *ConsoleReporter) ReductionStarted(size, _ int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("\n'%s' is too large (%.1f KB). Starting adaptive compression...\n", c.current, common.KB(size))
}

func (c *ConsoleReporter) AttemptStarted(quality int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("  -> Attempting compression with image quality=%d...\n", quality)
}

func (c *ConsoleReporter) AttemptFinished(attempt compressionDomain.Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printf("     -> New size: %.1f KB\n", common.KB(attempt.Size))
}

func (c *ConsoleReporter) ReductionFinished(result *compression.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch result.Outcome {
	case compressionDomain.OutcomeAchieved:
		if result.Passes() > 0 {
			c.printf("%s\n", c.successStyle.Render("  -> Target size achieved!"))
		}
	case compressionDomain.OutcomeNoImages:
		if result.Err != nil {
			c.printf("%s\n", c.errorStyle.Render(fmt.Sprintf("  -> Error during image processing: %v", result.Err)))
		}
		c.printf("  -> No images found to compress further.\n")
	}

	if result.Warning() != nil {
		c.printf("%s\n", c.warningStyle.Render(fmt.Sprintf("  -> Warning: Could not reduce '%s' below target size. Final size is %.1f KB.",
			c.current, common.KB(result.FinalSize))))
	}
}
