package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medevs/hr-agent/internal/app"
	"github.com/medevs/hr-agent/internal/config"
	"github.com/medevs/hr-agent/internal/log"
)

var (
	seedCount int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the employee store with synthetic records",
	Long: `Seed generates deterministic synthetic employee records, computes a
summary and embedding for each, and upserts them into the store.

Re-running with the same --count and --seed is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed()
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of records to generate")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 42, "random seed for deterministic generation")
	rootCmd.AddCommand(seedCmd)
}

func runSeed() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})
	logger.Info("seeding employee store", "count", seedCount, "seed", seedValue)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.Seed(ctx, seedCount, seedValue); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	total, err := a.Employees.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting employees: %w", err)
	}

	fmt.Printf("Seeded %d records (%d total in store)\n", seedCount, total)
	return nil
}
