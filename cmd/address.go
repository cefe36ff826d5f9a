package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/address"
	"github.com/resilead/sinir-cli/internal/partner"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Reconcile per-unit addresses from the partner endpoint",
	Long:  "Looks up each organization still missing an address on the partner endpoint and persists the operating units it reports. Runs in rounds until nothing new resolves.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		r := address.New(pool, partner.New(partner.DefaultBaseURL, nil), address.Options{
			BatchSize:   cfg.Address.BatchSize,
			Concurrency: cfg.Address.Concurrency,
		})
		totals, err := r.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "address")
		}
		zap.L().Info("reconciliation finished",
			zap.Int("rounds", totals.Rounds),
			zap.Int("looked", totals.Looked),
			zap.Int("failed", totals.Failed),
			zap.Int("persisted", totals.Persisted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
