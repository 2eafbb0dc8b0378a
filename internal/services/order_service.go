package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/cache"
	"example.com/backstage/services/ordermonitor/internal/metrics"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/tracing"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
	reindexBatch      = 1000
)

var (
	// ErrEmptyQuery is returned by Search for a blank query
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrSearchUnavailable is returned by Search when no index is configured
	ErrSearchUnavailable = errors.New("order search is unavailable")
	// ErrNoValidOrders is returned by Ingest when every order failed validation
	ErrNoValidOrders = errors.New("no valid orders to ingest")
)

// OrderStore is the persistent order table
type OrderStore interface {
	Page(ctx context.Context, page, size int) ([]models.Order, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	UpsertBatch(ctx context.Context, orders []models.Order, batchSize int) error
	ModifiedSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.Order, error)
}

// PageCache caches rendered pages and single orders
type PageCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	FlushPages(ctx context.Context) (int, error)
}

// OrderIndex is the full-text order index
type OrderIndex interface {
	IndexOrder(ctx context.Context, order models.Order) error
	BulkIndex(ctx context.Context, orders []models.Order) error
	SearchOrders(ctx context.Context, text string, size int) ([]models.Order, error)
}

// HealthCheck probes one backing component
type HealthCheck func(ctx context.Context) error

// Options tunes an OrderService
type Options struct {
	PageTTL   time.Duration
	BatchSize int
}

// OrderService serves order pages and keeps the store, cache and index in
// step when orders are ingested
type OrderService struct {
	store   OrderStore
	cache   PageCache
	index   OrderIndex
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	opts    Options
	checks  map[string]HealthCheck
}

// NewOrderService creates a new order service. index may be nil when
// search is not configured.
func NewOrderService(
	store OrderStore,
	pageCache PageCache,
	index OrderIndex,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
	opts Options,
) *OrderService {
	if pageCache == nil {
		pageCache = cache.Disabled()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetrics()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &OrderService{
		store:   store,
		cache:   pageCache,
		index:   index,
		metrics: metricsCollector,
		tracer:  tracer,
		opts:    opts,
		checks:  make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a probe reported by CheckHealth
func (s *OrderService) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// CheckHealth runs every probe and records the outcome
func (s *OrderService) CheckHealth(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(s.checks))
	for name, check := range s.checks {
		err := check(ctx)
		if err != nil {
			log.Warn().Err(err).Str("component", name).Msg("Health check failed")
		}
		status[name] = err == nil
		s.metrics.SetHealth(name, err == nil)
	}
	return status
}

// GetPage returns one page of enriched orders. Pages below 1 are served as
// page 1.
func (s *OrderService) GetPage(ctx context.Context, page int) (*models.PageResult, error) {
	page = models.ClampPage(page)

	txn := s.tracer.StartTransaction("get-orders-page")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "page", page)

	s.metrics.IncrementCounter(metrics.PageRequests)

	key := cache.PageCacheKey(page)
	var cached models.PageResult
	span := s.tracer.StartSpan("page-cache-lookup", txn)
	err := s.cache.Get(ctx, key, &cached)
	span.End()
	if err == nil {
		s.metrics.IncrementCounter(metrics.PageCacheHits)
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheDisabled) {
		s.metrics.IncrementCounter(metrics.PageCacheMisses)
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Int("page", page).Msg("Page cache lookup failed")
		}
	}

	result, err := s.loadPage(ctx, txn, page)
	s.metrics.RecordResult(metrics.PageQuery, err)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.storePage(ctx, page, result)
	return result, nil
}

func (s *OrderService) loadPage(ctx context.Context, txn *newrelic.Transaction, page int) (*models.PageResult, error) {
	defer s.metrics.Time(metrics.PageQuery)()
	span := s.tracer.StartSpan("page-query", txn)
	defer span.End()

	orders, err := s.store.Page(ctx, page, models.RecordsPerPage)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i] = orders[i].Enriched()
	}
	return models.NewPageResult(orders, models.HasNextPage(page, total)), nil
}

func (s *OrderService) storePage(ctx context.Context, page int, result *models.PageResult) {
	err := s.cache.Set(ctx, cache.PageCacheKey(page), result, s.opts.PageTTL)
	if err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Int("page", page).Msg("Failed to cache order page")
	}
}

// GetOrder returns a single enriched order
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.metrics.IncrementCounter(metrics.OrderLookups)

	key := cache.OrderCacheKey(id)
	var cached models.Order
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	enriched := order.Enriched()

	if err := s.cache.Set(ctx, key, enriched, s.opts.PageTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Int64("order_id", id).Msg("Failed to cache order")
	}
	return &enriched, nil
}

// Search runs a full-text query over the order index. size is clamped to
// [1, 100] with 20 used for non-positive values.
func (s *OrderService) Search(ctx context.Context, query string, size int) ([]models.Order, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.index == nil {
		return nil, ErrSearchUnavailable
	}
	switch {
	case size <= 0:
		size = defaultSearchSize
	case size > maxSearchSize:
		size = maxSearchSize
	}

	txn := s.tracer.StartTransaction("search-orders")
	defer s.tracer.EndTransaction(txn)

	orders, err := s.index.SearchOrders(ctx, query, size)
	s.metrics.RecordResult(metrics.SearchRequests, err)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "order search failed")
	}
	return orders, nil
}

// Ingest validates orders, upserts the valid ones, indexes them and drops
// the cached pages they may appear on. Invalid orders are skipped. It
// returns the number of orders stored.
func (s *OrderService) Ingest(ctx context.Context, orders []models.Order) (int, error) {
	txn := s.tracer.StartTransaction("ingest-orders")
	defer s.tracer.EndTransaction(txn)

	valid := make([]models.Order, 0, len(orders))
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			log.Warn().Err(err).Int64("order_id", orders[i].ID).Msg("Skipping invalid order")
			continue
		}
		valid = append(valid, orders[i])
	}
	if len(valid) == 0 {
		if len(orders) == 0 {
			return 0, nil
		}
		return 0, ErrNoValidOrders
	}

	span := s.tracer.StartSpan("upsert-orders", txn)
	err := s.store.UpsertBatch(ctx, valid, s.opts.BatchSize)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, err
	}
	s.metrics.IncrementCounterBy(metrics.OrdersIngested, int64(len(valid)))

	if s.index != nil {
		span = s.tracer.StartSpan("index-orders", txn)
		err = s.index.BulkIndex(ctx, valid)
		span.End()
		if err != nil {
			// the rows are stored; the next reindex picks them up
			s.tracer.RecordError(txn, err)
			log.Warn().Err(err).Int("count", len(valid)).Msg("Failed to index ingested orders")
		}
	}

	s.invalidate(ctx, valid)

	log.Info().Int("stored", len(valid)).Int("skipped", len(orders)-len(valid)).Msg("Orders ingested")
	return len(valid), nil
}

func (s *OrderService) invalidate(ctx context.Context, orders []models.Order) {
	removed, err := s.cache.FlushPages(ctx)
	if errors.Is(err, cache.ErrCacheDisabled) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to flush cached order pages")
	}

	keys := make([]string, len(orders))
	for i, o := range orders {
		keys[i] = cache.OrderCacheKey(o.ID)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("Failed to drop cached orders")
	}
	log.Debug().Int("pages", removed).Int("orders", len(keys)).Msg("Order cache invalidated")
}

// Reindex pushes orders modified after since into the search index and
// returns how many were indexed
func (s *OrderService) Reindex(ctx context.Context, since time.Time) (int, error) {
	if s.index == nil {
		return 0, ErrSearchUnavailable
	}
	s.metrics.IncrementCounter(metrics.ReindexRuns)

	var (
		indexed int
		afterID int64
	)
	for {
		orders, err := s.store.ModifiedSince(ctx, since, afterID, reindexBatch)
		if err != nil {
			return indexed, err
		}
		if len(orders) == 0 {
			return indexed, nil
		}
		if err := s.index.BulkIndex(ctx, orders); err != nil {
			return indexed, errors.Wrap(err, "failed to reindex orders")
		}
		indexed += len(orders)
		if len(orders) < reindexBatch {
			return indexed, nil
		}
		// rows written by one statement share updated_at; resume after the last id
		last := orders[len(orders)-1]
		since, afterID = last.UpdatedAt, last.ID
	}
}

// WarmPages loads the first pages into the cache, stopping at the last
// page. It returns the number of pages stored.
func (s *OrderService) WarmPages(ctx context.Context, pages int) (int, error) {
	var warmed int
	for page := 1; page <= pages; page++ {
		result, err := s.loadPage(ctx, nil, page)
		if err != nil {
			return warmed, errors.Wrapf(err, "failed to warm page %d", page)
		}
		s.storePage(ctx, page, result)
		warmed++
		if !result.Result.NextPage {
			break
		}
	}
	log.Debug().Int("pages", warmed).Msg("Order page cache warmed")
	return warmed, nil
}

// ParsePage reads a page query value. Missing values mean page 1.
func ParsePage(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Errorf("page must be a number, got %q", raw)
	}
	return models.ClampPage(page), nil
}
