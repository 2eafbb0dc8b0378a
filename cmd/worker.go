package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/ordermonitor/internal/messaging"
	"example.com/backstage/services/ordermonitor/internal/services"
)

var (
	reindexInterval time.Duration
	warmPages       int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that ingests order events from Azure Service Bus,
keeps the search index in step with the database and warms the page cache`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().DurationVar(&reindexInterval, "reindex-interval", 5*time.Minute, "how often modified orders are reindexed")
	workerCmd.Flags().IntVar(&warmPages, "warm-pages", 5, "number of leading pages kept warm in the cache")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Azure.QueueConnStr != "" {
		bus, err := messaging.NewAzureServiceBus(cfg.Azure, b.metrics)
		if err != nil {
			return err
		}
		defer bus.Close()

		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Azure Service Bus processor")
			return bus.ProcessMessages(ctx, b.orders)
		})
	} else {
		log.Warn().Msg("Azure Service Bus connection string not set, order events will not be consumed")
	}

	g.Go(func() error {
		return runMaintenance(ctx, b.orders)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runMaintenance schedules the reindex and cache warm jobs until ctx ends
func runMaintenance(ctx context.Context, orders *services.OrderService) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	var (
		mu          sync.Mutex
		lastReindex time.Time
	)
	_, err = scheduler.NewJob(
		gocron.DurationJob(reindexInterval),
		gocron.NewTask(func() {
			mu.Lock()
			since := lastReindex
			mu.Unlock()

			started := time.Now()
			n, err := orders.Reindex(ctx, since)
			switch {
			case errors.Is(err, services.ErrSearchUnavailable):
			case err != nil:
				log.Error().Err(err).Msg("Failed to reindex modified orders")
			default:
				mu.Lock()
				lastReindex = started
				mu.Unlock()
				log.Info().Int("orders", n).Time("since", since).Msg("Modified orders reindexed")
			}

			if _, err := orders.WarmPages(ctx, warmPages); err != nil {
				log.Error().Err(err).Msg("Failed to warm order page cache")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			orders.CheckHealth(ctx)
		}),
	)
	if err != nil {
		return err
	}

	log.Info().Dur("interval", reindexInterval).Msg("Starting order maintenance jobs")
	scheduler.Start()

	// Wait for context cancellation
	<-ctx.Done()

	return scheduler.Shutdown()
}
