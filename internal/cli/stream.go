package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okapisearch/okapi/internal/ingest"
	"github.com/okapisearch/okapi/pkg/config"
	"github.com/okapisearch/okapi/pkg/kafka"
	"github.com/okapisearch/okapi/pkg/logger"
)

var (
	publishKeyField  string
	consumeBatchSize int
)

var publishCmd = &cobra.Command{
	Use:   "publish <file.jsonl>",
	Short: "Publish document records to the ingest topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		records, failed, err := ingest.ReadJSONL(f, publishKeyField)
		if err != nil {
			return err
		}

		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()

		events := make([]kafka.Event, len(records))
		for i, rec := range records {
			row := map[string]any{publishKeyField: rec.Key}
			for k, v := range rec.Fields {
				row[k] = v
			}
			events[i] = kafka.Event{Key: rec.Key, Value: row}
		}
		if err := producer.PublishBatch(ctx, events); err != nil {
			return err
		}
		return printJSON(map[string]int{"published": len(events), "failed": failed})
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume document records from the ingest topic and index them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		eng, cfg, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		var pending []ingest.Record
		flush := func(ctx context.Context) error {
			if len(pending) == 0 {
				return nil
			}
			if _, err := eng.UploadDocuments(ctx, pending, nil); err != nil {
				return err
			}
			pending = pending[:0]
			return nil
		}

		// Messages arrive on a single goroutine, so the pending buffer
		// needs no locking. The batch flush keeps score rebuilds amortised
		// over many records.
		handler := func(ctx context.Context, key, value []byte) error {
			var row map[string]any
			if err := json.Unmarshal(value, &row); err != nil {
				return fmt.Errorf("decoding record %q: %w", key, err)
			}
			rec, err := ingest.FromMap(row, publishKeyField)
			if err != nil {
				return err
			}
			pending = append(pending, rec)
			if len(pending) >= consumeBatchSize {
				return flush(ctx)
			}
			return nil
		}

		consumer := kafka.NewConsumer(cfg.Kafka, handler)
		defer consumer.Close()

		runErr := consumer.Run(ctx)
		if err := flush(context.Background()); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishKeyField, "key", "id", "name of the key column in the input rows")
	consumeCmd.Flags().StringVar(&publishKeyField, "key", "id", "name of the key column in consumed rows")
	consumeCmd.Flags().IntVar(&consumeBatchSize, "batch-size", 500, "records indexed per flush")
}
