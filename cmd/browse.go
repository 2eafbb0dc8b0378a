package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/ordermonitor/internal/client"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/orderlist"
	"example.com/backstage/services/ordermonitor/internal/scroll"
	"example.com/backstage/services/ordermonitor/internal/tracing"
	"example.com/backstage/services/ordermonitor/internal/view"
	"example.com/backstage/services/ordermonitor/internal/window"
)

var browseOpts struct {
	baseURL   string
	width     float64
	height    float64
	rowHeight float64
	speed     float64
	tick      time.Duration
	duration  time.Duration
	bounce    bool
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Scroll through the order list headlessly",
	Long: `Mount the incremental order list against the order service, scroll it at a
fixed speed and log the resident window on every change`,
	RunE: runBrowse,
}

func init() {
	f := browseCmd.Flags()
	f.StringVar(&browseOpts.baseURL, "base-url", "", "order service URL (default from client.base_url)")
	f.Float64Var(&browseOpts.width, "width", 1280, "viewport width")
	f.Float64Var(&browseOpts.height, "height", 720, "viewport height")
	f.Float64Var(&browseOpts.rowHeight, "row-height", 32, "height of one order row")
	f.Float64Var(&browseOpts.speed, "speed", 600, "pixels scrolled per tick")
	f.DurationVar(&browseOpts.tick, "tick", 250*time.Millisecond, "interval between scroll steps")
	f.DurationVar(&browseOpts.duration, "duration", 2*time.Minute, "stop after this long")
	f.BoolVar(&browseOpts.bounce, "bounce", false, "reverse direction at either end instead of stopping")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if browseOpts.baseURL != "" {
		cfg.Client.BaseURL = browseOpts.baseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, browseOpts.duration)
	defer cancel()

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Noop()
	}
	defer tracer.Close()

	source := client.NewFromConfig(cfg.Client, client.WithNewRelic(tracer.Application()))

	screen := view.NewScreen(browseOpts.width, browseOpts.height)
	lv := orderlist.NewListView(screen, browseOpts.rowHeight)

	controller := orderlist.New(source, window.New(cfg.Client.RecordsPerPage, cfg.Client.PageQueueLimit()), orderlist.Options{
		Layout:   screen,
		Registry: scroll.NewRegistry(scroll.WithSampleInterval(cfg.Client.ScrollSampleInterval)),
		Debounce: cfg.Client.Debounce,
		OnUpdate: lv.Apply,
	})
	defer controller.Teardown()

	log.Info().
		Str("base_url", cfg.Client.BaseURL).
		Int("page_queue_limit", cfg.Client.PageQueueLimit()).
		Str("columns", columnNames()).
		Msg("Browsing orders")

	if err := controller.Mount(ctx, lv.Sentinels()); err != nil {
		log.Warn().Err(err).Msg("First page failed to load")
	}
	logState(controller.State(), lv)

	ticker := time.NewTicker(browseOpts.tick)
	defer ticker.Stop()

	step := browseOpts.speed
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Browsing finished")
			return nil
		case <-controller.Changes():
			logState(controller.State(), lv)
		case <-ticker.C:
			if lv.List.ScrollBy(step) {
				continue
			}
			state := controller.State()
			if state.IsLoading {
				continue
			}
			atEnd := (step > 0 && !state.HasMoreDown) || (step < 0 && !state.HasMoreUp)
			if !atEnd {
				continue
			}
			if !browseOpts.bounce {
				logState(state, lv)
				log.Info().Msg("Reached the end of the order list")
				return nil
			}
			step = -step
		}
	}
}

func logState(s orderlist.State, lv *orderlist.ListView) {
	event := log.Info().
		Ints("viewedPages", s.ViewedPages).
		Int("records", len(s.Orders)).
		Bool("isLoading", s.IsLoading).
		Bool("hasMoreDown", s.HasMoreDown).
		Bool("hasMoreUp", s.HasMoreUp).
		Float64("scrollTop", lv.List.ScrollTop())

	if len(s.Orders) > 0 {
		row := lv.FirstVisibleRow()
		if row < len(s.Orders) {
			top := s.Orders[row]
			event = event.
				Int64("topOrder", top.ID).
				Str("customer", top.Customer).
				Float64("distanceLeft", top.DistanceLeft)
		}
	}
	if s.LastError != nil {
		event = event.Str("notice", s.LastError.Error())
	}
	event.Msg("Order list")
}

func columnNames() string {
	schema := models.OrderSchema()
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}
