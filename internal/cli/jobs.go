package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liaison/internal/services/importer"
	"liaison/internal/services/importer/processors"

	"github.com/spf13/cobra"
)

var (
	sweepGrace   time.Duration
	sweepLimit   int
	remindWithin time.Duration
	remindLimit  int
	importType   string
	importBatch  int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark pending obligations past their due date as overdue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.plans.SweepOverdue(ctx, a.plans.Now().Add(-sweepGrace), sweepLimit)
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d obligations overdue\n", len(res))
			return err
		})
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send reminders for obligations due within the horizon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			horizon := remindWithin
			if !cmd.Flags().Changed("within") {
				horizon = a.cfg.ReminderHorizon
			}
			out, err := a.reminders.DispatchDue(ctx, horizon, remindLimit)
			emailed := 0
			for _, d := range out {
				if d.EmailSent {
					emailed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d reminders, %d emailed\n", len(out), emailed)
			return err
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply a payment statement (CSV or XLSX) to obligations",
	Long: `Apply a payment statement to obligations.

The file may be a local path, file://, s3://bucket/key or an http(s) URL.
Columns: obligation_id, or plan_id and sequence; paid_at; optional resolution.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			path := args[0]
			if !hasScheme(path) {
				path = "file://" + path
			}
			res, err := a.importer.Import(ctx, importer.Request{Type: importType, FilePath: path, BatchSize: importBatch})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
			return err
		})
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepGrace, "grace", 0, "only mark obligations overdue by more than this")
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 0, "maximum obligations per run (0 = store default)")
	remindCmd.Flags().DurationVar(&remindWithin, "within", 7*24*time.Hour, "reminder horizon (default REMINDER_HORIZON)")
	remindCmd.Flags().IntVar(&remindLimit, "limit", 0, "maximum reminders per run (0 = store default)")
	importCmd.Flags().StringVar(&importType, "type", processors.StatementType, "import processor type")
	importCmd.Flags().IntVar(&importBatch, "batch", 500, "rows per batch")
}

func hasScheme(p string) bool {
	for _, s := range []string{"file://", "s3://", "http://", "https://"} {
		if len(p) >= len(s) && p[:len(s)] == s {
			return true
		}
	}
	return false
}
