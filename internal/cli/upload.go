package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okapisearch/okapi/internal/ingest"
)

var (
	uploadKeyField  string
	uploadEdgesPath string
	uploadStopwords string
	uploadFields    string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload documents or queries from JSONL files",
}

var uploadDocumentsCmd = &cobra.Command{
	Use:   "documents <file.jsonl>",
	Short: "Index documents from a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		eng, _, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if uploadStopwords != "" {
			words := strings.Split(uploadStopwords, ",")
			if err := eng.SetStopwords(ctx, words); err != nil {
				return err
			}
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		records, failed, err := ingest.ReadJSONL(f, uploadKeyField)
		if err != nil {
			return err
		}

		var indexFields []string
		if uploadFields != "" {
			indexFields = strings.Split(uploadFields, ",")
		}
		summary, err := eng.UploadDocuments(ctx, records, indexFields)
		if err != nil {
			return err
		}
		summary.Failed += failed
		return printJSON(summary)
	},
}

var uploadQueriesCmd = &cobra.Command{
	Use:   "queries <file.jsonl>",
	Short: "Store queries, optionally with document-query edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		eng, _, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		texts, err := readQueryTexts(args[0])
		if err != nil {
			return err
		}

		var edges []ingest.EdgeSpec
		var edgesFailed int
		if uploadEdgesPath != "" {
			f, err := os.Open(uploadEdgesPath)
			if err != nil {
				return err
			}
			edges, edgesFailed, err = ingest.ReadEdgesJSONL(f)
			f.Close()
			if err != nil {
				return err
			}
		}

		summary, err := eng.UploadQueries(ctx, texts, edges)
		if err != nil {
			return err
		}
		summary.EdgesSkipped += edgesFailed
		return printJSON(summary)
	},
}

func init() {
	uploadDocumentsCmd.Flags().StringVar(&uploadKeyField, "key", "id", "name of the key column in the input rows")
	uploadDocumentsCmd.Flags().StringVar(&uploadStopwords, "stopwords", "", "comma-separated stopword list replacing the built-in one")
	uploadDocumentsCmd.Flags().StringVar(&uploadFields, "fields", "", "comma-separated columns contributing to the indexed text (default: all)")
	uploadQueriesCmd.Flags().StringVar(&uploadEdgesPath, "edges", "", "JSONL file of {document, query, weight} edges")
	uploadCmd.AddCommand(uploadDocumentsCmd)
	uploadCmd.AddCommand(uploadQueriesCmd)
}

// readQueryTexts accepts one query per line, either as a JSON object with a
// "query" field or as raw text.
func readQueryTexts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var row struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(line), &row); err == nil && row.Query != "" {
				texts = append(texts, row.Query)
				continue
			}
		}
		texts = append(texts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queries from %s: %w", path, err)
	}
	return texts, nil
}
