package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/ordermonitor/internal/messaging"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/seed"
)

var (
	seedFile     string
	seedGenerate int
	seedRandom   int64
	seedPublish  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load an order dataset",
	Long: `Load orders from a JSON file, or generate them, and ingest them into the
database, the search index and the cache. With --publish the orders are sent
as OrderUpserted events for the worker to ingest instead.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "JSON array of orders (default from seed.file)")
	seedCmd.Flags().IntVar(&seedGenerate, "generate", 0, "generate this many orders instead of reading a file")
	seedCmd.Flags().Int64Var(&seedRandom, "random-seed", 1, "random seed for generated orders")
	seedCmd.Flags().BoolVar(&seedPublish, "publish", false, "publish orders to Azure Service Bus instead of storing them")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var orders []models.Order
	if seedGenerate > 0 {
		orders = seed.Generate(seedGenerate, seedRandom, time.Now().UTC())
		log.Info().Int("orders", len(orders)).Msg("Generated order dataset")
	} else {
		path := seedFile
		if path == "" {
			path = cfg.Seed.File
		}
		ds, err := seed.LoadFile(path)
		if err != nil {
			return err
		}
		log.Info().Str("file", path).Str("dataset", ds.Describe()).Msg("Loaded order dataset")
		orders = ds.Orders
	}

	batches := seed.Batches(orders, cfg.Seed.BatchSize)

	if seedPublish {
		bus, err := messaging.NewAzureServiceBus(cfg.Azure, nil)
		if err != nil {
			return err
		}
		defer bus.Close()

		for i, batch := range batches {
			if err := bus.Publish(ctx, batch); err != nil {
				return errors.Wrapf(err, "failed to publish batch %d", i+1)
			}
		}
		log.Info().Int("orders", len(orders)).Int("events", len(batches)).Msg("Order events published")
		return nil
	}

	b, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var stored int
	for i, batch := range batches {
		n, err := b.orders.Ingest(ctx, batch)
		if err != nil {
			return errors.Wrapf(err, "failed to ingest batch %d", i+1)
		}
		stored += n
	}

	log.Info().Int("stored", stored).Int("batches", len(batches)).Msg("Order dataset ingested")
	return nil
}
