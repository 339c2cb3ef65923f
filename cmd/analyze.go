package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/pipeline"
)

var (
	analyzeURL     string
	analyzeSkipVal bool
	analyzeSkipEnr bool
	analyzeRefresh bool
	analyzeKeepRaw bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract the product catalog from a business website",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalysis(ctx, pipeline.Options{
			SkipValidation: analyzeSkipVal,
			SkipEnrichment: analyzeSkipEnr,
			ForceRefresh:   analyzeRefresh,
			KeepRawContent: analyzeKeepRaw,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		normalized, err := pipeline.NormalizeURL(analyzeURL)
		if err != nil {
			return err
		}

		run, err := env.Store.CreateRun(ctx, normalized)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result, err := env.Pipeline.AnalyzeRun(ctx, run.ID, normalized)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", run.ID),
			zap.String("url", result.SourceURL),
			zap.String("status", string(result.Status)),
			zap.Float64("confidence", result.Confidence),
			zap.Int("entities", len(result.Entities)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "business website URL (required)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipVal, "skip-validation", false, "skip the validation stage")
	analyzeCmd.Flags().BoolVar(&analyzeSkipEnr, "skip-enrichment", false, "skip the enrichment stage")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "ignore any cached result")
	analyzeCmd.Flags().BoolVar(&analyzeKeepRaw, "raw", false, "include fetched HTML in the result")
	_ = analyzeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(analyzeCmd)
}
