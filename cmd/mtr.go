package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/normalize"
)

var mtrCmd = &cobra.Command{
	Use:   "mtr",
	Short: "Normalize staged manifests into the warehouse",
	Long:  "Processes staged manifests one transaction each: resolves reference rows and entity links, upserts the manifest and its waste lines, then moves the staged row to history. Failures land in quarantine with the error description.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		drain, _ := cmd.Flags().GetBool("drain")

		engine := normalize.NewEngine(pool, normalize.Options{
			BatchSize:     cfg.Mtr.BatchSize,
			Drain:         drain || cfg.Mtr.Drain,
			ProgressEvery: cfg.Mtr.ProgressEvery,
		})
		totals, err := engine.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "mtr")
		}
		zap.L().Info("normalization finished",
			zap.Int64("processed", totals.Processed),
			zap.Int64("errors", totals.Errors),
			zap.Int64("rounds", totals.Rounds))
		return nil
	},
}

func init() {
	mtrCmd.Flags().Bool("drain", false, "keep processing batches until the staging table is empty")
	rootCmd.AddCommand(mtrCmd)
}
