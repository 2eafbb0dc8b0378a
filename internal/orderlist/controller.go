// Package orderlist drives the infinitely scrolling order list: it wires the
// lazy-load triggers at both ends of the list to page fetches and keeps the
// bounded window of resident orders up to date.
package orderlist

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/geometry"
	"example.com/backstage/services/ordermonitor/internal/lazyload"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/scroll"
	"example.com/backstage/services/ordermonitor/internal/view"
	"example.com/backstage/services/ordermonitor/internal/window"
)

var (
	// ErrRejected is reported when the order service answers with a
	// non-zero error code
	ErrRejected = errors.New("order service rejected the request")
	// ErrAlreadyMounted is returned by a second Mount
	ErrAlreadyMounted = errors.New("controller already mounted")
	// ErrTornDown is returned by Mount after Teardown
	ErrTornDown = errors.New("controller was torn down")
)

// DataSource fetches one page of orders
type DataSource interface {
	FetchPage(ctx context.Context, page int) (*models.PageResult, error)
}

// Sentinels are the elements watched at both ends of the list and the
// element whose scrolling moves them
type Sentinels struct {
	Down         *view.Element
	Up           *view.Element
	ScrollTarget *view.Element
}

// Update describes a window change. OnUpdate hooks receive it while the
// controller lock is held and must not call back into the controller.
type Update struct {
	Direction window.Direction
	Page      int
	Eviction  window.Eviction
	Orders    []models.Order
}

// Options configure a Controller
type Options struct {
	Layout   geometry.Provider[*view.Element]
	Registry *scroll.Registry
	Clock    clockwork.Clock
	Debounce time.Duration
	OnUpdate func(Update)
}

// State is a snapshot of what the presentation layer renders
type State struct {
	Orders      []models.Order
	IsLoading   bool
	HasMoreDown bool
	HasMoreUp   bool
	ViewedPages []int
	LastError   error
}

// Controller owns the window and at most one fetch per direction
type Controller struct {
	source   DataSource
	win      *window.Window
	down     *lazyload.Trigger
	up       *lazyload.Trigger
	onUpdate func(Update)

	mu       sync.Mutex
	gen      uint64
	mounted  bool
	torn     bool
	ctx      context.Context
	cancel   context.CancelFunc
	inflight map[window.Direction]bool
	lastErr  error
	changes  chan struct{}
	wg       sync.WaitGroup
}

// New creates a controller over win. Nothing is fetched before Mount.
func New(source DataSource, win *window.Window, opts Options) *Controller {
	c := &Controller{
		source:   source,
		win:      win,
		onUpdate: opts.OnUpdate,
		inflight: make(map[window.Direction]bool),
		changes:  make(chan struct{}, 1),
	}

	layout := opts.Layout
	if layout == nil {
		layout = noLayout{}
	}
	c.down = lazyload.New(layout, func() { c.Load(c.context(), window.Down) }, opts.triggerOptions("down")...)
	c.up = lazyload.New(layout, func() { c.Load(c.context(), window.Up) }, opts.triggerOptions("up")...)
	return c
}

func (o Options) triggerOptions(name string) []lazyload.Option {
	topts := []lazyload.Option{lazyload.WithName(name)}
	if o.Registry != nil {
		topts = append(topts, lazyload.WithRegistry(o.Registry))
	}
	if o.Clock != nil {
		topts = append(topts, lazyload.WithClock(o.Clock))
	}
	if o.Debounce > 0 {
		topts = append(topts, lazyload.WithDebounce(o.Debounce))
	}
	return topts
}

// Mount loads the first page and arms both triggers. The returned error is
// the failure of the first page fetch, if any; the triggers are armed
// regardless.
func (c *Controller) Mount(ctx context.Context, s Sentinels) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return ErrTornDown
	}
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.mu.Unlock()

	var err error
	if c.Load(runCtx, window.Initial) {
		c.wg.Wait()
		err = c.State().LastError
	}

	c.down.Arm(s.Down, s.ScrollTarget)
	c.up.Arm(s.Up, s.ScrollTarget)

	log.Info().
		Bool("downArmed", c.down.State() != lazyload.Idle).
		Bool("upArmed", c.up.State() != lazyload.Idle).
		Msg("Order list mounted")
	return err
}

// Load starts a fetch in direction d. The request is dropped, and false
// returned, when a fetch in that direction is outstanding or there is
// nothing more to load there.
func (c *Controller) Load(ctx context.Context, d window.Direction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return false
	}
	if c.inflight[d] {
		log.Debug().Str("direction", d.String()).Msg("Fetch already in flight, load dropped")
		return false
	}
	if (d == window.Down && !c.win.HasMoreDown()) || (d == window.Up && !c.win.HasMoreUp()) {
		return false
	}

	page, err := c.win.NextPageToFetch(d)
	if err != nil {
		log.Error().Err(err).Str("direction", d.String()).Msg("Cannot compute next page")
		return false
	}

	c.inflight[d] = true
	c.pauseLocked(d, true)
	c.notifyLocked()

	gen := c.gen
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.source.FetchPage(ctx, page)
		c.complete(gen, d, page, res, err)
	}()
	return true
}

func (c *Controller) complete(gen uint64, d window.Direction, page int, res *models.PageResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		log.Debug().Int("page", page).Str("direction", d.String()).Msg("Discarding result after teardown")
		return
	}
	delete(c.inflight, d)
	c.pauseLocked(d, false)
	defer c.notifyLocked()

	if err == nil && !res.OK() {
		if res == nil {
			err = errors.Wrapf(ErrRejected, "page %d: empty response", page)
		} else {
			err = errors.Wrapf(ErrRejected, "page %d: code %d: %s", page, res.Error, res.Message)
		}
	}
	if err != nil {
		c.lastErr = err
		log.Warn().Err(err).Int("page", page).Str("direction", d.String()).Msg("Failed to fetch orders page")
		return
	}

	want, perr := c.win.NextPageToFetch(d)
	if perr != nil || want != page {
		log.Debug().Int("page", page).Int("expected", want).Str("direction", d.String()).Msg("Discarding stale page")
		return
	}

	var ev window.Eviction
	if d == window.Up {
		ev, err = c.win.PrependHead(page, res.Result.Items)
	} else {
		ev, err = c.win.AppendTail(page, res.Result.Items, res.Result.NextPage)
	}
	if err != nil {
		log.Error().Err(err).Int("page", page).Msg("Failed to apply page")
		return
	}
	c.lastErr = nil

	if c.onUpdate != nil {
		c.onUpdate(Update{Direction: d, Page: page, Eviction: ev, Orders: c.win.Orders()})
	}
}

// Teardown stops both triggers synchronously. Fetches still in flight are
// cancelled and their results ignored. A torn down controller cannot be
// mounted again.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.gen++
	c.mounted = false
	c.torn = true
	if c.cancel != nil {
		c.cancel()
	}
	clear(c.inflight)
	c.notifyLocked()
	c.mu.Unlock()

	c.down.Stop()
	c.up.Stop()
	log.Info().Msg("Order list torn down")
}

// Wait blocks until every started fetch has completed
func (c *Controller) Wait() {
	c.wg.Wait()
}

// State returns a snapshot of the list state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Orders:      c.win.Orders(),
		IsLoading:   len(c.inflight) > 0,
		HasMoreDown: c.win.HasMoreDown(),
		HasMoreUp:   c.win.HasMoreUp(),
		ViewedPages: c.win.ViewedPages(),
		LastError:   c.lastErr,
	}
}

// Changes signals that State changed. Signals are coalesced; read State
// after each receive.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// TriggerStates reports the state of the down and up triggers
func (c *Controller) TriggerStates() (down, up lazyload.State) {
	return c.down.State(), c.up.State()
}

func (c *Controller) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Controller) pauseLocked(d window.Direction, paused bool) {
	switch d {
	case window.Down:
		c.down.Pause(paused)
	case window.Up:
		c.up.Pause(paused)
	}
}

func (c *Controller) notifyLocked() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

type noLayout struct{}

func (noLayout) ViewportRect() geometry.Rect             { return geometry.Empty }
func (noLayout) ElementRect(*view.Element) geometry.Rect { return geometry.Empty }
