package cmd

import (
	"context"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/config"
	"example.com/backstage/services/ordermonitor/internal/cache"
	"example.com/backstage/services/ordermonitor/internal/database"
	"example.com/backstage/services/ordermonitor/internal/metrics"
	"example.com/backstage/services/ordermonitor/internal/repositories"
	"example.com/backstage/services/ordermonitor/internal/search"
	"example.com/backstage/services/ordermonitor/internal/services"
	"example.com/backstage/services/ordermonitor/internal/tracing"
)

// backend is the server-side object graph shared by api, worker and seed
type backend struct {
	dbs     *database.Databases
	cache   *cache.RedisCache
	elastic *search.ElasticClient
	tracer  tracing.Tracer
	metrics *metrics.Metrics
	orders  *services.OrderService
}

func newBackend(cfg config.Config) (*backend, error) {
	dbs, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = cache.Disabled()
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Noop()
	}

	// Initialize Elasticsearch client
	var index services.OrderIndex
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	} else {
		index = elasticClient
	}

	metricsCollector := metrics.NewMetrics()

	orderService := services.NewOrderService(
		repositories.NewOrderRepository(dbs.Write, dbs.ReadOnly),
		redisCache,
		index,
		metricsCollector,
		tracer,
		services.Options{PageTTL: cfg.Redis.PageTTL, BatchSize: cfg.Seed.BatchSize},
	)

	orderService.AddHealthCheck("database", func(context.Context) error { return dbs.Ping() })
	if redisCache.Enabled() {
		orderService.AddHealthCheck("redis", redisCache.Ping)
	}
	if elasticClient != nil {
		orderService.AddHealthCheck("elasticsearch", elasticClient.Ping)
	}

	return &backend{
		dbs:     dbs,
		cache:   redisCache,
		elastic: elasticClient,
		tracer:  tracer,
		metrics: metricsCollector,
		orders:  orderService,
	}, nil
}

func (b *backend) Close() {
	if err := b.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis connection")
	}
	if err := b.dbs.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connections")
	}
	b.tracer.Close()
}
