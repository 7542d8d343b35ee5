package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var daemonCron string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run imports on a schedule until interrupted",
	Long:  "Runs one import pass per cron tick, draining any budget-checkpoint continuations before sleeping again.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		imp, led, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		spec := daemonCron
		if spec == "" {
			spec = cfg.Schedule.Cron
		}

		c := cron.New()
		_, err = c.AddFunc(spec, func() {
			result, err := imp.RunUntilDone(ctx)
			if err != nil {
				zap.L().Error("daemon: scheduled import failed", zap.Error(err))
				return
			}
			zap.L().Info("daemon: scheduled import finished",
				zap.String("run_id", result.RunID),
				zap.Int("succeeded", result.Summary.Succeeded),
				zap.Int("failed", result.Summary.Failed),
			)
		})
		if err != nil {
			return eris.Wrapf(err, "parse cron spec %q", spec)
		}

		zap.L().Info("daemon: started", zap.String("cron", spec))
		c.Start()
		<-ctx.Done()

		zap.L().Info("daemon: shutting down")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonCron, "cron", "", "cron schedule (default from config)")
	rootCmd.AddCommand(daemonCmd)
}
