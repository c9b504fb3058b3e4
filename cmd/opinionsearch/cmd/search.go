package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fppclabs/opinionsearch/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var strategyName string
	var topK int
	var useANN bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank opinions for a query",
		Long: `Rank opinions for a query using one of the fusion strategies:

  lexical          BM25 only
  citation-boost   BM25 + IDF-weighted citation and topic boosts
  rrf              weighted reciprocal rank fusion of both arms
  score-fusion     normalized score blend with a lexical circuit breaker
  citation-fusion  citation-narrowed pool with semantic re-ranking`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), strategyName, topK, useANN)
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", search.NameCitationFusion, "Fusion strategy")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&useANN, "ann", false, "Use approximate nearest neighbor for the semantic arm")

	return cmd
}

func runSearch(cmd *cobra.Command, query, strategyName string, topK int, useANN bool) error {
	if topK <= 0 {
		topK = cfg.Search.MaxResults
	}

	eng, err := openEngine(cfg, strategyNeedsSemantic(strategyName))
	if err != nil {
		return err
	}
	defer eng.close()

	if useANN && eng.vector != nil {
		eng.vector.EnableANN()
	}

	strategy, err := search.NewStrategy(strategyName, eng.deps(), searchConfig(cfg))
	if err != nil {
		return err
	}

	results, err := strategy.Rank(cmd.Context(), query, topK)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}
	for i, id := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, id)
	}
	return nil
}
