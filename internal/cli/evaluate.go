package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okapisearch/okapi/internal/evaluation"
	"github.com/okapisearch/okapi/internal/searcher/executor"
)

var (
	evaluateMetrics string
	evaluateTopK    int
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <qrels.jsonl>",
	Short: "Score retrieval quality against relevance judgements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		qrels, _, err := evaluation.ReadQrelsJSONL(f)
		f.Close()
		if err != nil {
			return err
		}

		eng, _, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := eng.Evaluate(ctx, qrels,
			strings.Split(evaluateMetrics, ","),
			executor.Request{TopK: evaluateTopK},
		)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateMetrics, "metrics", "ndcg@10,hits@10", "comma-separated metrics (ndcg@K, hits@K)")
	evaluateCmd.Flags().IntVar(&evaluateTopK, "top-k", 100, "results per query during evaluation")
}
