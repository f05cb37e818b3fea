package cli

import (
	"fmt"
	"io"
	"strconv"

	"pdfshrink/internal/common"
	"pdfshrink/internal/database"
	"pdfshrink/internal/services"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *options, stdout, stderr io.Writer) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed files",
		Long: `List the most recent entries of the history store, newest first.

The store is enabled with --history-db or HISTORY_DB.

Examples:
  pdfshrink history --history-db ~/.local/state/pdfshrink.db --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, stderr)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("%w: history store is disabled, set --history-db or HISTORY_DB", common.ErrInvalidConfig)
			}

			db, err := database.Initialize(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer database.Close(db)

			records, err := services.NewHistoryService(db).Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(stdout, "No history recorded yet.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("WHEN", "FILE", "STATUS", "OUTCOME", "ORIGINAL KB", "FINAL KB", "PASSES", "LAST Q")
			for _, r := range records {
				t.Row(
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Filename,
					r.Status,
					r.Outcome,
					fmt.Sprintf("%.1f", common.KB(r.OriginalSize)),
					fmt.Sprintf("%.1f", common.KB(r.FinalSize)),
					strconv.Itoa(r.Passes),
					strconv.Itoa(r.LastQuality),
				)
			}
			fmt.Fprintln(stdout, t.Render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", services.DefaultHistoryLimit, "number of records to show")
	return cmd
}
