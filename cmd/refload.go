package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/resilead/sinir-cli/internal/normalize"
)

var refloadCmd = &cobra.Command{
	Use:   "refload",
	Short: "Load reference vocabularies from seed files",
	Long:  "Reads the situacao, tipoManifesto, tratamento, unidade, classe and residuos JSON seed files from refload.data_dir and upserts them into the warehouse reference tables. Missing files are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		loader := normalize.NewSeedLoader(pool, cfg.RefLoad.DataDir)
		if err := loader.Run(ctx); err != nil {
			return eris.Wrap(err, "refload")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refloadCmd)
}
