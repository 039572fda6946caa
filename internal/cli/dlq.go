package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/outbox"
	"example.com/exercisetracker/internal/persistence/postgres"
)

var dlqReplayBatch int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered outbox events",
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Move dead-lettered events back into the outbox",
	Example: `tracker dlq replay
  tracker dlq replay --batch 500`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.StoreDriver != config.DriverPostgres {
			return errors.New("dlq replay requires STORE_DRIVER=postgres")
		}
		if dlqReplayBatch <= 0 {
			return fmt.Errorf("--batch must be positive, got %d", dlqReplayBatch)
		}

		pool, err := postgres.Connect(cmd.Context(), cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		replayer := outbox.NewReplayer(pool)
		moved, err := replayer.Replay(cmd.Context(), dlqReplayBatch)
		if err != nil {
			logger.Warn("some entries were not replayed", zap.Error(err))
		}
		pending, countErr := replayer.Pending(cmd.Context())
		if countErr != nil {
			return countErr
		}
		logger.Info("dlq replay finished", zap.Int("requeued", moved), zap.Int("pending", pending))
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d, pending %d\n", moved, pending)
		return err
	},
}

func init() {
	dlqReplayCmd.Flags().IntVar(&dlqReplayBatch, "batch", 100, "maximum number of entries to requeue")
	dlqCmd.AddCommand(dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
