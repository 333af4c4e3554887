// Package cli implements the okapi command line: uploading documents and
// queries, searching, deleting, evaluating, and the Kafka ingest commands.
package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okapisearch/okapi/internal/engine"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/logger"
	"github.com/okapisearch/okapi/pkg/metrics"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "okapi",
	Short:         "BM25 document search over an embedded SQLite store",
	Long:          "okapi indexes documents and stored queries with BM25, persists everything in a single SQLite file, and supports filtered, batched, and graph-reranked search.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(consumeCmd)
}

// setup loads configuration, initialises logging, and opens the engine. The
// returned cleanup closes the engine and, when enabled, the metrics server.
func setup(ctx context.Context) (*engine.Engine, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	opts := []engine.Option{}
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		opts = append(opts, engine.WithMetrics(metrics.New()))
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	eng, err := engine.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		eng.Close()
		if shutdownMetrics != nil {
			shutdownMetrics(context.Background())
		}
	}
	return eng, cfg, cleanup, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
