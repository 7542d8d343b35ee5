package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rotisserie/eris"
)

var runDrain bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one import pass over the intake inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		imp, led, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		run := imp.Run
		if runDrain {
			run = imp.RunUntilDone
		}
		result, err := run(ctx)
		if err != nil {
			return eris.Wrap(err, "import run")
		}

		zap.L().Info("import finished",
			zap.String("run_id", result.RunID),
			zap.Bool("checkpointed", result.Checkpointed),
			zap.Int("succeeded", result.Summary.Succeeded),
			zap.Int("failed", result.Summary.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDrain, "drain", false, "keep resuming until the continuation queue is empty")
	rootCmd.AddCommand(runCmd)
}
