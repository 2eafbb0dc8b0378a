package scroll

import (
	"runtime"
	"sync"
	"time"
	"weak"

	"github.com/jonboulle/clockwork"

	"example.com/backstage/services/ordermonitor/internal/view"
)

// DefaultSampleInterval is the throttle window of a stream
const DefaultSampleInterval = 100 * time.Millisecond

// Registry hands out one stream per scroll target. Entries are keyed by a
// weak pointer to the target and dropped once the target is collected.
type Registry struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	streams map[weak.Pointer[view.Element]]*Stream
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces the real clock, mostly for tests
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithSampleInterval sets the throttle window for new streams
func WithSampleInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// Default is the process-wide registry
var Default = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:    clockwork.NewRealClock(),
		interval: DefaultSampleInterval,
		streams:  make(map[weak.Pointer[view.Element]]*Stream),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StreamFor returns the shared stream of target. A nil target or one that
// cannot scroll gets the empty stream.
func (r *Registry) StreamFor(target *view.Element) *Stream {
	if target == nil || !target.Scrollable() {
		return emptyStream
	}

	key := weak.Make(target)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[key]; ok {
		return s
	}

	s := &Stream{
		target:   key,
		targetID: target.ID(),
		clock:    r.clock,
		interval: r.interval,
	}
	r.streams[key] = s
	runtime.AddCleanup(target, r.forget, key)
	return s
}

// Len returns the number of cached streams
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

func (r *Registry) forget(key weak.Pointer[view.Element]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, key)
}
