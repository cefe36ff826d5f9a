package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/brasilapi"
	"github.com/resilead/sinir-cli/internal/enrich"
)

var stakeholderCmd = &cobra.Command{
	Use:   "stakeholder",
	Short: "Enrich harvested stakeholders into warehouse entities",
	Long:  "Classifies each pending stakeholder as individual or company, looks companies up in the public registry and upserts the result as a warehouse entity. The registry_policy setting decides whether a registry miss is tolerated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		drain, _ := cmd.Flags().GetBool("drain")

		registry := brasilapi.New(cfg.Stakeholder.RegistryBaseURL, nil)
		enricher := enrich.New(pool, registry, enrich.Options{
			BatchSize:       cfg.Stakeholder.BatchSize,
			Drain:           drain || cfg.Stakeholder.Drain,
			RegistryPolicy:  cfg.Stakeholder.RegistryPolicy,
			RegistryBackoff: time.Duration(cfg.Stakeholder.RegistryBackoffSecs) * time.Second,
			PauseEvery:      cfg.Stakeholder.PauseEvery,
			PauseFor:        time.Duration(cfg.Stakeholder.PauseSecs) * time.Second,
		})

		totals, err := enricher.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "stakeholder")
		}
		zap.L().Info("enrichment finished",
			zap.Int64("processed", totals.Processed),
			zap.Int64("individuals", totals.Individuals),
			zap.Int64("companies", totals.Companies),
			zap.Int64("api_hits", totals.APIHits),
			zap.Int64("inserted", totals.Inserted),
			zap.Int64("updated", totals.Updated),
			zap.Int64("errors", totals.Errors))
		return nil
	},
}

func init() {
	stakeholderCmd.Flags().Bool("drain", false, "keep processing batches until the source is empty")
	rootCmd.AddCommand(stakeholderCmd)
}
