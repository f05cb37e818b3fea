package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pdfshrink/internal/common"
	"pdfshrink/internal/config"
	"pdfshrink/internal/container"
	compressionDomain "pdfshrink/internal/domain/compression"
	"pdfshrink/internal/transport"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X pdfshrink/internal/cli.version=..."
var version = "dev"

// options holds the command-line flags. Zero values mean "not given" and
// leave the other configuration sources in charge.
type options struct {
	configFile string
	inputDir   string
	outputDir  string
	maxSizeKB  int
	historyDB  string
	logLevel   string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	api.DisableConfigDir()

	cmd := NewRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the pdfshrink command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pdfshrink",
		Short: "Compress PDF files to fit under a size budget",
		Long: `pdfshrink compresses every PDF in the input directory so that it fits
under a maximum file size.

Each file is first rewritten losslessly into the output directory. If it is
still too large, its images are re-encoded as JPEG at decreasing quality
(80, 70, ... 20) until the file fits, no images are left, or the quality
levels run out.

Configuration is read from, lowest to highest precedence: built-in
defaults, the --config YAML file, a .env file in the working directory,
environment variables (MAX_FILE_SIZE_KB, INPUT_DIR, OUTPUT_DIR, HISTORY_DB,
LOG_LEVEL, LOG_FORMAT) and flags.

Examples:
  # Compress input_pdfs/*.pdf into output_pdfs/ with a 300 KB budget
  pdfshrink

  # Use other directories and a 1 MB budget
  pdfshrink -i scans -o shrunk -m 1024`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd, opts, stdout, stderr)
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	persistent.StringVar(&opts.historyDB, "history-db", "", "SQLite file that keeps a record of every processed file")
	persistent.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	flags := cmd.Flags()
	flags.StringVarP(&opts.inputDir, "input", "i", "", "directory to read PDF files from (default \"input_pdfs\")")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "directory to write compressed files to (default \"output_pdfs\")")
	flags.IntVarP(&opts.maxSizeKB, "max-size-kb", "m", 0, "maximum output file size in KB (default 300)")

	cmd.AddCommand(newHistoryCommand(opts, stdout, stderr))
	cmd.AddCommand(newVersionCommand(stdout))

	return cmd
}

// loadConfig merges the configuration sources with the flags that were
// given on the command line.
func loadConfig(cmd *cobra.Command, opts *options, stderr io.Writer) (*config.Config, error) {
	overrides := make(map[string]any)
	flags := cmd.Flags()
	if flags.Changed("input") {
		overrides["input_dir"] = opts.inputDir
	}
	if flags.Changed("output") {
		overrides["output_dir"] = opts.outputDir
	}
	if flags.Changed("max-size-kb") {
		overrides["max_file_size_kb"] = opts.maxSizeKB
	}
	if flags.Changed("history-db") {
		overrides["history_db"] = opts.historyDB
	}
	if flags.Changed("log-level") {
		overrides["log_level"] = opts.logLevel
	}

	return config.Load(config.LoadOptions{
		ConfigFile: opts.configFile,
		EnvFile:    config.DefaultEnvFile,
		Overrides:  overrides,
		LogOutput:  stderr,
	})
}

func runCompress(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts, stderr)
	if err != nil {
		return err
	}

	c, err := container.New(cfg, transport.NewConsoleReporter(stdout))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = c.GetCompressionHandler().CompressPDF(ctx, compressionDomain.CompressionRequest{
		InputDir:  cfg.InputDir,
		OutputDir: cfg.OutputDir,
		Budget:    cfg.Budget(),
	})
	if errors.Is(err, common.ErrInputDirMissing) || errors.Is(err, common.ErrNoPDFFiles) {
		return nil
	}
	return err
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "pdfshrink %s\n", version)
		},
	}
}
