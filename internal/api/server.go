package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/config"
	"example.com/backstage/services/ordermonitor/internal/api/handlers"
	"example.com/backstage/services/ordermonitor/internal/metrics"
	"example.com/backstage/services/ordermonitor/internal/services"
	"example.com/backstage/services/ordermonitor/internal/tracing"
)

const sweepInterval = 5 * time.Minute

// Server represents the HTTP server
type Server struct {
	config       config.Config
	router       *gin.Engine
	httpServer   *http.Server
	orderService *services.OrderService
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
	limiter      *RateLimiter
	done         chan struct{}
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, orderService *services.OrderService, metricsCollector *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetrics()
	}
	server := &Server{
		config:       cfg,
		orderService: orderService,
		metrics:      metricsCollector,
		tracer:       tracer,
		done:         make(chan struct{}),
	}
	if cfg.Server.RateLimitRPS > 0 {
		server.limiter = NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, metricsCollector)
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery(), RequestID(), Logger())
	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}
	if s.config.Server.CorsEnabled {
		router.Use(CORS(trimOrigins(s.config.Server.CorsOrigins)))
	}

	if s.config.MetricsEnabled {
		handlers.NewMetricsHandler(s.metrics, s.orderService).RegisterRoutes(router)
	}

	// rate limiting applies to the data routes only
	data := router.Group("/")
	if s.limiter != nil {
		data.Use(s.limiter.Middleware())
	}
	handlers.NewOrdersHandler(s.orderService).RegisterRoutes(data)

	return router
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if s.limiter != nil {
		go s.sweep()
	}

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

func (s *Server) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := s.limiter.Sweep(now); n > 0 {
				log.Debug().Int("clients", n).Msg("Rate limiter entries expired")
			}
		case <-s.done:
			return
		}
	}
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	close(s.done)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
