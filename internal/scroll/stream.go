// Package scroll turns raw scroll notifications of a view element into a
// sampled, shared event stream.
package scroll

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/view"
)

// Event is one sampled scroll tick. Initial marks the synthetic event every
// subscriber receives when it subscribes.
type Event struct {
	ScrollTop float64
	At        time.Time
	Initial   bool
}

// Stream samples the scroll events of one target. A single listener is
// attached to the target while at least one subscription is open.
type Stream struct {
	target   weak.Pointer[view.Element]
	targetID string
	clock    clockwork.Clock
	interval time.Duration
	empty    bool

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	remove  func()
	stop    chan struct{}
	latest  Event
	pending bool
}

// Subscription is an open registration on a stream
type Subscription struct {
	stream *Stream
	id     uint64
	fn     func(Event)
	active atomic.Bool
}

var emptyStream = &Stream{empty: true}

// Empty reports whether the stream never emits. Streams of nil or
// non-scrollable targets are empty.
func (s *Stream) Empty() bool {
	return s.empty
}

// Subscribe registers fn and delivers the initial event to it before
// returning. Later events are delivered from the sampler goroutine, in
// order. An empty stream returns an already closed subscription.
func (s *Stream) Subscribe(fn func(Event)) *Subscription {
	if s.empty || fn == nil {
		return &Subscription{}
	}

	s.mu.Lock()
	if len(s.subs) == 0 && !s.attachLocked() {
		s.mu.Unlock()
		return &Subscription{}
	}
	s.nextID++
	sub := &Subscription{stream: s, id: s.nextID, fn: fn}
	sub.active.Store(true)
	s.subs[sub.id] = sub

	initial := Event{At: s.clock.Now(), Initial: true}
	if el := s.target.Value(); el != nil {
		initial.ScrollTop = el.ScrollTop()
	}
	s.mu.Unlock()

	fn(initial)
	return sub
}

// SubscriberCount returns the number of open subscriptions
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Attached reports whether a listener is currently registered on the target
func (s *Stream) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove != nil
}

func (s *Stream) attachLocked() bool {
	el := s.target.Value()
	if el == nil {
		return false
	}
	remove, ok := el.AddScrollListener(s.record)
	if !ok {
		return false
	}
	if s.subs == nil {
		s.subs = make(map[uint64]*Subscription)
	}
	s.remove = remove
	s.stop = make(chan struct{})
	s.pending = false

	ticker := s.clock.NewTicker(s.interval)
	go s.run(ticker, s.stop)

	log.Debug().Str("target", s.targetID).Dur("interval", s.interval).Msg("Scroll listener attached")
	return true
}

func (s *Stream) detachLocked() {
	if s.remove == nil {
		return
	}
	s.remove()
	s.remove = nil
	close(s.stop)
	s.stop = nil
	s.pending = false

	log.Debug().Str("target", s.targetID).Msg("Scroll listener detached")
}

func (s *Stream) record(ev view.ScrollEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Event{ScrollTop: ev.ScrollTop, At: s.clock.Now()}
	s.pending = true
}

func (s *Stream) run(ticker clockwork.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.flush(stop)
		}
	}
}

// flush emits the latest raw event of the interval, if there was one
func (s *Stream) flush(stop chan struct{}) {
	s.mu.Lock()
	if s.stop != stop || !s.pending {
		s.mu.Unlock()
		return
	}
	ev := s.latest
	s.pending = false
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(ev)
		}
	}
}

// Closed reports whether the subscription no longer receives events
func (sub *Subscription) Closed() bool {
	return !sub.active.Load()
}

// Cancel closes the subscription. The last cancellation detaches the
// listener from the target and stops sampling. Safe to call more than once.
func (sub *Subscription) Cancel() {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}
	s := sub.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub.id)
	if len(s.subs) == 0 {
		s.detachLocked()
	}
}
