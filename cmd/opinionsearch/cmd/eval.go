package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fppclabs/opinionsearch/internal/eval"
	"github.com/fppclabs/opinionsearch/internal/search"
)

// newEvalCmd creates the eval command.
func newEvalCmd() *cobra.Command {
	var strategyName string
	var datasetPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a strategy against the relevance-judgment dataset",
		Long: `Run every judged query through a fusion strategy and print the IR
metric scorecard (MRR, nDCG, precision, recall), aggregated overall
and broken down by query type and topic.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, strategyName, datasetPath, outputPath)
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", search.NameCitationFusion, "Fusion strategy to evaluate")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset path (default from config)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write detailed JSON results to this path")

	return cmd
}

func runEval(cmd *cobra.Command, strategyName, datasetPath, outputPath string) error {
	log := slog.Default()

	if datasetPath == "" {
		datasetPath = cfg.Paths.EvalDataset
	}
	dataset, err := eval.LoadDataset(datasetPath, log)
	if err != nil {
		return err
	}

	eng, err := openEngine(cfg, strategyNeedsSemantic(strategyName))
	if err != nil {
		return err
	}
	defer eng.close()

	strategy, err := search.NewStrategy(strategyName, eng.deps(), searchConfig(cfg))
	if err != nil {
		return err
	}

	harness, err := eval.NewHarness(strategy, log)
	if err != nil {
		return err
	}

	report, err := harness.Run(cmd.Context(), dataset)
	if err != nil {
		return err
	}

	report.WriteScorecard(cmd.OutOrStdout())

	if outputPath != "" {
		if err := report.WriteResults(outputPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputPath)
	}
	return nil
}
