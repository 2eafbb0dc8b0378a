// Package window keeps a bounded, contiguous run of fetched order pages in
// memory.
package window

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/ordermonitor/internal/models"
)

var (
	// ErrEmptyWindow is returned when a directional page is requested
	// before the initial load
	ErrEmptyWindow = errors.New("window is empty")
	// ErrNoPageAbove is returned when the first page is already resident
	ErrNoPageAbove = errors.New("no page above the first page")
	// ErrNonContiguousPage is returned when a page does not extend the
	// resident run at the requested end
	ErrNonContiguousPage = errors.New("page is not adjacent to the resident pages")
	// ErrAlreadyLoaded is returned for an initial load into a non-empty window
	ErrAlreadyLoaded = errors.New("window already holds pages")
)

// Direction of a page fetch
type Direction int

const (
	Initial Direction = iota
	Down
	Up
)

func (d Direction) String() string {
	switch d {
	case Initial:
		return "initial"
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "unknown"
	}
}

// Eviction describes the page dropped by an append or prepend. Page is zero
// when nothing was evicted.
type Eviction struct {
	Page    int
	Records int
}

// Evicted reports whether a page was dropped
func (e Eviction) Evicted() bool {
	return e.Page != 0
}

type span struct {
	page  int
	count int
}

// Window holds the resident orders and the pages they came from, in scroll
// order. It is not safe for concurrent use; the list controller owns it.
type Window struct {
	perPage     int
	limit       int
	orders      []models.Order
	pages       []span
	hasMoreUp   bool
	hasMoreDown bool
}

// New creates an empty window holding at most pageQueueLimit pages
func New(recordsPerPage, pageQueueLimit int) *Window {
	if recordsPerPage < 1 {
		recordsPerPage = models.RecordsPerPage
	}
	if pageQueueLimit < 1 {
		pageQueueLimit = 1
	}
	return &Window{perPage: recordsPerPage, limit: pageQueueLimit}
}

// AppendTail adds a page below the resident run. nextPage is the flag the
// server returned with it. When the limit is exceeded the head page is
// evicted together with its records.
func (w *Window) AppendTail(page int, items []models.Order, nextPage bool) (Eviction, error) {
	if page < 1 {
		return Eviction{}, errors.Wrapf(ErrNonContiguousPage, "page %d", page)
	}
	if len(w.pages) > 0 && page != w.maxPage()+1 {
		return Eviction{}, errors.Wrapf(ErrNonContiguousPage, "append page %d after %d", page, w.maxPage())
	}

	w.orders = append(w.orders, enrich(items)...)
	w.pages = append(w.pages, span{page: page, count: len(items)})
	w.hasMoreDown = nextPage

	var ev Eviction
	if len(w.pages) > w.limit {
		head := w.pages[0]
		w.pages = append([]span(nil), w.pages[1:]...)
		w.orders = append([]models.Order(nil), w.orders[head.count:]...)
		ev = Eviction{Page: head.page, Records: head.count}
	}
	w.hasMoreUp = w.minPage() > 1

	w.logPages(Down, ev)
	return ev, nil
}

// PrependHead adds a page above the resident run. When the limit is
// exceeded the tail page is evicted, and since there is then data below the
// run again, hasMoreDown is set.
func (w *Window) PrependHead(page int, items []models.Order) (Eviction, error) {
	if len(w.pages) == 0 {
		return Eviction{}, ErrEmptyWindow
	}
	if page < 1 || page != w.minPage()-1 {
		return Eviction{}, errors.Wrapf(ErrNonContiguousPage, "prepend page %d before %d", page, w.minPage())
	}

	orders := make([]models.Order, 0, len(items)+len(w.orders))
	orders = append(orders, enrich(items)...)
	w.orders = append(orders, w.orders...)
	w.pages = append([]span{{page: page, count: len(items)}}, w.pages...)

	var ev Eviction
	if len(w.pages) > w.limit {
		tail := w.pages[len(w.pages)-1]
		w.pages = w.pages[:len(w.pages)-1]
		w.orders = w.orders[:len(w.orders)-tail.count]
		w.hasMoreDown = true
		ev = Eviction{Page: tail.page, Records: tail.count}
	}
	w.hasMoreUp = w.minPage() > 1

	w.logPages(Up, ev)
	return ev, nil
}

// NextPageToFetch returns the page a fetch in direction d should request
func (w *Window) NextPageToFetch(d Direction) (int, error) {
	if d == Initial {
		if len(w.pages) > 0 {
			return 0, ErrAlreadyLoaded
		}
		return 1, nil
	}
	if len(w.pages) == 0 {
		return 0, errors.Wrapf(ErrEmptyWindow, "direction %s", d)
	}

	switch d {
	case Down:
		return w.maxPage() + 1, nil
	case Up:
		if w.minPage() <= 1 {
			return 0, ErrNoPageAbove
		}
		return w.minPage() - 1, nil
	default:
		return 0, errors.Errorf("unknown direction %d", d)
	}
}

// Orders returns a copy of the resident orders in scroll order
func (w *Window) Orders() []models.Order {
	out := make([]models.Order, len(w.orders))
	copy(out, w.orders)
	return out
}

// ViewedPages returns a copy of the resident page indices in scroll order
func (w *Window) ViewedPages() []int {
	out := make([]int, len(w.pages))
	for i, s := range w.pages {
		out[i] = s.page
	}
	return out
}

// HasMoreDown reports whether the last tail fetch said more pages follow,
// or a tail page was evicted
func (w *Window) HasMoreDown() bool {
	return w.hasMoreDown
}

// HasMoreUp reports whether pages above the resident run exist
func (w *Window) HasMoreUp() bool {
	return w.hasMoreUp
}

// Len returns the number of resident orders
func (w *Window) Len() int {
	return len(w.orders)
}

// PageCount returns the number of resident pages
func (w *Window) PageCount() int {
	return len(w.pages)
}

// Limit returns the maximum number of resident pages
func (w *Window) Limit() int {
	return w.limit
}

// RecordsPerPage returns the configured page size
func (w *Window) RecordsPerPage() int {
	return w.perPage
}

func (w *Window) minPage() int {
	if len(w.pages) == 0 {
		return 0
	}
	return w.pages[0].page
}

func (w *Window) maxPage() int {
	if len(w.pages) == 0 {
		return 0
	}
	return w.pages[len(w.pages)-1].page
}

func (w *Window) logPages(d Direction, ev Eviction) {
	e := log.Debug().
		Str("direction", d.String()).
		Ints("viewedPages", w.ViewedPages()).
		Int("records", len(w.orders))
	if ev.Evicted() {
		e = e.Int("evictedPage", ev.Page).Int("evictedRecords", ev.Records)
	}
	e.Msg("Window updated")
}

func enrich(items []models.Order) []models.Order {
	out := make([]models.Order, len(items))
	for i, o := range items {
		out[i] = o.Enriched()
	}
	return out
}
