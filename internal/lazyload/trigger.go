// Package lazyload watches a sentinel element and signals when it has been
// visible long enough to load more content.
package lazyload

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/geometry"
	"example.com/backstage/services/ordermonitor/internal/scroll"
	"example.com/backstage/services/ordermonitor/internal/view"
)

// DefaultDebounce is how long a sentinel must stay visible before a load
const DefaultDebounce = 1500 * time.Millisecond

// State of a trigger
type State int

const (
	Idle State = iota
	Watching
	Pending
	Fired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case Pending:
		return "pending"
	case Fired:
		return "fired"
	default:
		return "unknown"
	}
}

// Trigger debounces the visibility of a sentinel inside a scroll target
type Trigger struct {
	layout   geometry.Provider[*view.Element]
	onLoad   func()
	name     string
	debounce time.Duration
	clock    clockwork.Clock
	registry *scroll.Registry

	mu        sync.Mutex
	state     State
	gen       uint64
	timerSeq  uint64
	sentinel  *view.Element
	container *view.Element
	sub       *scroll.Subscription
	timer     clockwork.Timer
	paused    bool
	fires     int
}

// Option configures a Trigger
type Option func(*Trigger)

// WithDebounce overrides DefaultDebounce
func WithDebounce(d time.Duration) Option {
	return func(t *Trigger) {
		if d > 0 {
			t.debounce = d
		}
	}
}

// WithClock sets the clock used for the debounce timer
func WithClock(c clockwork.Clock) Option {
	return func(t *Trigger) {
		t.clock = c
	}
}

// WithRegistry sets where scroll streams come from
func WithRegistry(r *scroll.Registry) Option {
	return func(t *Trigger) {
		t.registry = r
	}
}

// WithName labels the trigger in logs
func WithName(name string) Option {
	return func(t *Trigger) {
		t.name = name
	}
}

// New creates an idle trigger. onLoad is called from a timer goroutine,
// never while the trigger's lock is held.
func New(layout geometry.Provider[*view.Element], onLoad func(), opts ...Option) *Trigger {
	t := &Trigger{
		layout:   layout,
		onLoad:   onLoad,
		name:     "lazyload",
		debounce: DefaultDebounce,
		clock:    clockwork.NewRealClock(),
		registry: scroll.Default,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Arm starts watching sentinel inside scrollTarget, discarding any previous
// configuration and pending timer. It returns false, leaving the trigger
// idle, when lazy loading is not possible for these elements.
func (t *Trigger) Arm(sentinel, scrollTarget *view.Element) bool {
	stream := t.registry.StreamFor(scrollTarget)

	t.mu.Lock()
	t.resetLocked()
	gen := t.gen
	if sentinel == nil || stream.Empty() {
		t.mu.Unlock()
		log.Debug().Str("trigger", t.name).Msg("Lazy load disabled, nothing to watch")
		return false
	}
	t.sentinel = sentinel
	t.container = scrollTarget
	t.state = Watching
	t.mu.Unlock()

	// the initial event is delivered synchronously, so subscribe unlocked
	sub := stream.Subscribe(func(ev scroll.Event) {
		t.onTick(gen, ev)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		sub.Cancel()
		return false
	}
	t.sub = sub
	log.Debug().Str("trigger", t.name).Str("sentinel", sentinel.ID()).Msg("Lazy load armed")
	return true
}

// Pause makes the trigger ignore ticks and cancels a pending timer
func (t *Trigger) Pause(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
	if paused && t.state == Pending {
		t.stopTimerLocked()
		t.state = Watching
	}
}

// Stop tears the trigger down synchronously. Safe to call more than once.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// State returns the current state
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fires returns how many load signals were emitted since creation
func (t *Trigger) Fires() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fires
}

func (t *Trigger) resetLocked() {
	t.gen++
	t.stopTimerLocked()
	if t.sub != nil {
		t.sub.Cancel()
		t.sub = nil
	}
	t.sentinel = nil
	t.container = nil
	t.state = Idle
}

func (t *Trigger) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerSeq++
}

func (t *Trigger) visibleLocked() bool {
	return geometry.ElementVisible(t.layout, t.sentinel, t.container)
}

func (t *Trigger) onTick(gen uint64, _ scroll.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.paused || t.state == Idle {
		return
	}

	if t.visibleLocked() {
		t.stopTimerLocked()
		seq := t.timerSeq
		t.timer = t.clock.AfterFunc(t.debounce, func() {
			t.expire(gen, seq)
		})
		t.state = Pending
		return
	}

	if t.state == Pending {
		t.stopTimerLocked()
		t.state = Watching
		log.Debug().Str("trigger", t.name).Msg("Sentinel left the viewport, load cancelled")
	}
}

func (t *Trigger) expire(gen, seq uint64) {
	t.mu.Lock()
	if gen != t.gen || seq != t.timerSeq || t.paused || t.state != Pending {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if !t.visibleLocked() {
		t.state = Watching
		t.mu.Unlock()
		return
	}
	t.state = Fired
	t.fires++
	onLoad := t.onLoad
	t.state = Watching
	t.mu.Unlock()

	log.Debug().Str("trigger", t.name).Msg("Load signal")
	if onLoad != nil {
		onLoad()
	}
}
