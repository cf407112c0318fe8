package cli

import (
	"context"
	"fmt"
	"time"

	"liaison/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort          string
	serveSweepInterval time.Duration
	serveRemindEvery   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Examples:
  liaison serve
  liaison serve --port 9000 --sweep-interval 1h --remind-interval 24h`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default SERVER_PORT)")
	serveCmd.Flags().DurationVar(&serveSweepInterval, "sweep-interval", 0, "mark overdue obligations on this interval; 0 disables")
	serveCmd.Flags().DurationVar(&serveRemindEvery, "remind-interval", 0, "dispatch due reminders on this interval; 0 disables")
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.cfg.CheckConnections(ctx); err != nil {
			return fmt.Errorf("connection check failed: %w", err)
		}
		r, err := a.router(ctx)
		if err != nil {
			return err
		}

		if serveSweepInterval > 0 {
			go every(ctx, serveSweepInterval, func() {
				if _, err := a.plans.SweepOverdue(ctx, a.plans.Now(), 0); err != nil {
					a.log.Warn("scheduled overdue sweep incomplete", zap.Error(err))
				}
			})
		}
		if serveRemindEvery > 0 {
			go every(ctx, serveRemindEvery, func() {
				if _, err := a.reminders.DispatchDue(ctx, a.cfg.ReminderHorizon, 0); err != nil {
					a.log.Warn("scheduled reminder dispatch incomplete", zap.Error(err))
				}
			})
		}

		port := servePort
		if port == "" {
			port = a.cfg.Port
		}
		return server.NewServer(port, r, a.log).Run(ctx)
	})
}
