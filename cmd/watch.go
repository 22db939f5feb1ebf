// =============================================================================
// GST Tally Vouchers - Watch Command
// =============================================================================
//
// The 'watch' command runs the process pipeline on the cron 'schedule' from
// the main config until interrupted (SIGINT or SIGTERM).
//
// COMMAND USAGE:
//   gst-tally watch [--now] [--timezone Asia/Kolkata]
//
// A run that is still going when the next tick fires is skipped, so two runs
// never pick up the same input. Each run rediscovers the input directory.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/logging"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchNow      bool
	watchTimezone string
	watchFlags    processOptions
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the input directory on a schedule",
	Long: `Run 'process' on the cron schedule from the main config (default "@every 15m").
Standard five-field expressions and descriptors such as @hourly are accepted.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		loc, err := time.LoadLocation(watchTimezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		run := func() {
			summary, err := runProcess(ctx, a, watchFlags)
			if err != nil {
				a.log.Error("scheduled run failed", logging.Err(err))
				return
			}
			a.log.Info("scheduled run finished",
				zap.Int("files", summary.TotalFiles),
				zap.Int("failed", summary.FailedFiles),
				logging.Vouchers(summary.TotalVouchers))
		}

		logger := cronLogger{log: a.log}
		c := cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		)
		if _, err := c.AddFunc(a.cfg.Schedule, run); err != nil {
			return fmt.Errorf("failed to schedule process job: %w", err)
		}

		if watchNow {
			run()
		}

		c.Start()
		a.log.Info("watching input directory",
			logging.File(a.cfg.InputDir),
			zap.String("schedule", a.cfg.Schedule))

		<-ctx.Done()
		a.log.Info("stopping, waiting for the running job")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchNow, "now", false,
		"Run once immediately before waiting for the schedule")
	watchCmd.Flags().StringVar(&watchTimezone, "timezone", "Local",
		"Time zone the schedule is evaluated in")
	watchCmd.Flags().StringVar(&watchFlags.schema, "schema", "",
		"Force a schema tag for every run")
	watchCmd.Flags().StringVar(&watchFlags.profile, "profile", "",
		"Force a bank profile for every run")
}

// cronLogger routes cron's own messages into the application logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(cronFields(keysAndValues), logging.Err(err))...)
}

func cronFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

var _ cron.Logger = cronLogger{}
