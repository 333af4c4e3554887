package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteKeysFile string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete indexed documents",
}

var deleteDocumentsCmd = &cobra.Command{
	Use:   "documents [key]...",
	Short: "Delete documents by external key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		keys := args
		if deleteKeysFile != "" {
			fromFile, err := readLines(deleteKeysFile)
			if err != nil {
				return err
			}
			keys = append(keys, fromFile...)
		}
		if len(keys) == 0 {
			return cmd.Help()
		}

		eng, _, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := eng.DeleteDocuments(ctx, keys)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	deleteDocumentsCmd.Flags().StringVar(&deleteKeysFile, "file", "", "file with one key per line")
	deleteCmd.AddCommand(deleteDocumentsCmd)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
