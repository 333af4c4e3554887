package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/okapisearch/okapi/internal/searcher/executor"
)

var (
	searchTopK           int
	searchTopKToken      int
	searchFilters        string
	searchOrderBy        string
	searchBatchSize      int
	searchRandomTiebreak bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run BM25 searches over documents, stored queries, or the graph",
}

var searchDocumentsCmd = &cobra.Command{
	Use:   "documents <query>...",
	Short: "Search the document index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args, func(ctx context.Context, eng searcher, req executor.Request) ([]executor.Result, error) {
			return eng.SearchDocuments(ctx, req)
		})
	},
}

var searchQueriesCmd = &cobra.Command{
	Use:   "queries <query>...",
	Short: "Search the stored-query index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args, func(ctx context.Context, eng searcher, req executor.Request) ([]executor.Result, error) {
			return eng.SearchQueries(ctx, req)
		})
	},
}

var searchGraphsCmd = &cobra.Command{
	Use:   "graphs <query>...",
	Short: "Search documents with graph re-ranking through stored queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args, func(ctx context.Context, eng searcher, req executor.Request) ([]executor.Result, error) {
			return eng.SearchGraphs(ctx, req, searchRandomTiebreak)
		})
	},
}

// searcher is the slice of the engine the search commands use.
type searcher interface {
	SearchDocuments(ctx context.Context, req executor.Request) ([]executor.Result, error)
	SearchQueries(ctx context.Context, req executor.Request) ([]executor.Result, error)
	SearchGraphs(ctx context.Context, req executor.Request, randomTiebreak bool) ([]executor.Result, error)
}

func runSearch(queries []string, run func(context.Context, searcher, executor.Request) ([]executor.Result, error)) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, _, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := executor.Request{
		Queries:   queries,
		TopK:      searchTopK,
		TopKToken: searchTopKToken,
		Filters:   searchFilters,
		OrderBy:   searchOrderBy,
		BatchSize: searchBatchSize,
	}
	results, err := run(ctx, eng, req)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func init() {
	for _, cmd := range []*cobra.Command{searchDocumentsCmd, searchQueriesCmd, searchGraphsCmd} {
		cmd.Flags().IntVar(&searchTopK, "top-k", 0, "results per query (0 = configured default)")
		cmd.Flags().IntVar(&searchTopKToken, "top-k-token", 0, "score slice length per term (0 = configured default)")
		cmd.Flags().IntVar(&searchBatchSize, "batch-size", 0, "queries per execution batch (0 = configured default)")
	}
	searchDocumentsCmd.Flags().StringVar(&searchFilters, "filters", "", "SQL predicate over document columns")
	searchDocumentsCmd.Flags().StringVar(&searchOrderBy, "order-by", "", "SQL order-by expression replacing score order")
	searchGraphsCmd.Flags().StringVar(&searchFilters, "filters", "", "SQL predicate over document columns")
	searchGraphsCmd.Flags().BoolVar(&searchRandomTiebreak, "random-tiebreak", false, "shuffle equal-score runs instead of ordering by doc id")

	searchCmd.AddCommand(searchDocumentsCmd)
	searchCmd.AddCommand(searchQueriesCmd)
	searchCmd.AddCommand(searchGraphsCmd)
}
