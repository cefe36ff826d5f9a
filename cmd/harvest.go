package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/fetcher"
	"github.com/resilead/sinir-cli/internal/harvest"
	"github.com/resilead/sinir-cli/internal/parser"
	"github.com/resilead/sinir-cli/internal/queue"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Report harvesting: window setup, batch processing, queue status",
}

var harvestSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Plan monthly report windows and enqueue fetch jobs",
	Long:  "For every stakeholder, splits the uncovered date range into calendar months, enqueues the three status-partition report URLs per month and extends the stakeholder's covered period.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := harvest.Setup(ctx, harvest.NewStore(pool), queue.New(pool), time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "harvest setup")
		}
		zap.L().Info("setup done", zap.Int("enqueued", n))
		return nil
	},
}

var harvestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim, fetch, parse and stage pending report jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		drain, _ := cmd.Flags().GetBool("drain")

		f := fetcher.NewHTTPFetcher(
			fetcher.WithTimeout(time.Duration(cfg.HTTP.TimeoutSecs)*time.Second),
			fetcher.WithUserAgent(cfg.HTTP.UserAgent),
			fetcher.WithDefaultRate(cfg.HTTP.HostRate),
		)
		proc := harvest.NewProcessor(
			queue.New(pool),
			f,
			parser.New(cfg.Parser.ColumnVariants),
			harvest.NewStore(pool),
			harvest.Options{
				BatchSize:   cfg.Harvest.BatchSize,
				Concurrency: cfg.Harvest.Concurrency,
				Drain:       drain || cfg.Harvest.Drain,
			})

		if _, err := proc.Run(ctx); err != nil {
			return eris.Wrap(err, "harvest run")
		}
		return nil
	},
}

var harvestStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show work-queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		stuckAfter := time.Duration(cfg.Harvest.StuckAfterSecs) * time.Second
		counts, err := queue.New(pool).Counts(ctx, stuckAfter)
		if err != nil {
			return eris.Wrap(err, "harvest status")
		}

		fmt.Printf("pending:    %d\n", counts.Pending)
		fmt.Printf("processing: %d (stuck >%s: %d)\n", counts.Processing, stuckAfter, counts.Stuck)
		fmt.Printf("errored:    %d\n", counts.Errored)
		return nil
	},
}

func init() {
	harvestRunCmd.Flags().Bool("drain", false, "keep processing batches until the queue is empty")
	harvestCmd.AddCommand(harvestSetupCmd)
	harvestCmd.AddCommand(harvestRunCmd)
	harvestCmd.AddCommand(harvestStatusCmd)
	rootCmd.AddCommand(harvestCmd)
}
