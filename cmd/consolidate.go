package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/consolidate"
	"github.com/sells-group/catalog-cli/internal/model"
)

var (
	consolidateInput string
	consolidateRun   string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Group extracted product variants into consolidated products",
	Long:  "Reads product variants from a JSON file or a stored run and groups them into base products with merged attributes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var variants []model.ProductVariant
		switch {
		case consolidateInput != "":
			data, err := os.ReadFile(consolidateInput)
			if err != nil {
				return eris.Wrap(err, "read input file")
			}
			if err := json.Unmarshal(data, &variants); err != nil {
				return eris.Wrap(err, "parse variants")
			}
		case consolidateRun != "":
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			run, err := st.GetRun(ctx, consolidateRun)
			if err != nil {
				return eris.Wrap(err, "load run")
			}
			if run.Result == nil {
				return eris.Errorf("run %s has no result", consolidateRun)
			}
			variants = consolidate.VariantsFromEntities(run.Result.Entities)
		default:
			return eris.New("either --input or --run is required")
		}

		engine := consolidate.NewEngine(consolidate.Config{
			JoinThreshold: cfg.Consolidate.JoinThreshold,
			MaxVariants:   cfg.Consolidate.MaxVariants,
		})
		groups := engine.Consolidate(variants)

		zap.L().Info("consolidation complete",
			zap.Int("variants", len(variants)),
			zap.Int("groups", len(groups)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	},
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateInput, "input", "", "JSON file containing an array of product variants")
	consolidateCmd.Flags().StringVar(&consolidateRun, "run", "", "consolidate products from a stored run's result")
	rootCmd.AddCommand(consolidateCmd)
}
