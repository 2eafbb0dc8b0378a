// Package view is a headless layout tree: elements with boxes, scroll
// offsets and scroll listeners. It stands in for a browser document so the
// order list loader can be driven from a terminal or from tests.
package view

import (
	"strconv"
	"sync"

	"example.com/backstage/services/ordermonitor/internal/geometry"
)

// ScrollEvent is delivered to scroll listeners after a scroll offset changes
type ScrollEvent struct {
	Target    *Element
	ScrollTop float64
}

// Screen owns a tree of elements and the viewport they are laid out in.
// It implements geometry.Provider for *Element.
type Screen struct {
	mu     sync.RWMutex
	width  float64
	height float64
	root   *Element
	nextID int
}

// Element is a box in the tree. Boxes are positioned relative to the
// content origin of their parent.
type Element struct {
	screen *Screen
	id     string

	// guarded by screen.mu
	parent     *Element
	children   []*Element
	x, y, w, h float64
	hidden     bool
	scrollable bool
	scrollTop  float64

	lmu       sync.Mutex
	listeners map[int]func(ScrollEvent)
	nextLID   int
}

// NewScreen creates a screen whose root element fills the viewport and
// scrolls like a document.
func NewScreen(width, height float64) *Screen {
	s := &Screen{width: width, height: height}
	s.root = &Element{screen: s, id: "root", w: width, h: height, scrollable: true}
	return s
}

// Root returns the document element
func (s *Screen) Root() *Element {
	return s.root
}

// Resize changes the viewport size
func (s *Screen) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.root.w, s.root.h = width, height
}

// NewElement creates a detached element owned by this screen
func (s *Screen) NewElement(id string) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.nextID++
		id = "el-" + strconv.Itoa(s.nextID)
	}
	return &Element{screen: s, id: id}
}

// NewScrollContainer creates a detached element that clips and scrolls its
// children.
func (s *Screen) NewScrollContainer(id string) *Element {
	el := s.NewElement(id)
	el.scrollable = true
	return el
}

// ViewportRect is the visible area of the screen
func (s *Screen) ViewportRect() geometry.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return geometry.Rect{Right: s.width, Bottom: s.height}
}

// ElementRect returns the bounding rectangle of el in viewport coordinates.
// Detached, hidden and zero-sized elements report geometry.Empty.
func (s *Screen) ElementRect(el *Element) geometry.Rect {
	if el == nil || el.screen != s {
		return geometry.Empty
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rectLocked(el)
}

func (s *Screen) rectLocked(el *Element) geometry.Rect {
	if el.hidden || (el.w == 0 && el.h == 0) {
		return geometry.Empty
	}
	x, y := el.x, el.y
	node := el
	for node.parent != nil {
		node = node.parent
		if node.hidden {
			return geometry.Empty
		}
		x += node.x
		y += node.y - node.scrollTop
	}
	if node != s.root {
		return geometry.Empty
	}
	return geometry.Rect{Left: x, Top: y, Right: x + el.w, Bottom: y + el.h}
}

// ID returns the element identifier
func (e *Element) ID() string {
	return e.id
}

// Append attaches child as the last child of e, detaching it from any
// previous parent.
func (e *Element) Append(child *Element) {
	e.screen.mu.Lock()
	defer e.screen.mu.Unlock()
	child.detachLocked()
	child.parent = e
	e.children = append(e.children, child)
}

// Remove detaches the element from its parent
func (e *Element) Remove() {
	e.screen.mu.Lock()
	defer e.screen.mu.Unlock()
	e.detachLocked()
}

func (e *Element) detachLocked() {
	p := e.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == e {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	e.parent = nil
}

// Children returns a copy of the child list
func (e *Element) Children() []*Element {
	e.screen.mu.RLock()
	defer e.screen.mu.RUnlock()
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// SetBox positions the element inside its parent's content
func (e *Element) SetBox(x, y, w, h float64) {
	e.screen.mu.Lock()
	defer e.screen.mu.Unlock()
	e.x, e.y, e.w, e.h = x, y, w, h
}

// Box returns the element's box relative to its parent's content
func (e *Element) Box() geometry.Rect {
	e.screen.mu.RLock()
	defer e.screen.mu.RUnlock()
	return geometry.Rect{Left: e.x, Top: e.y, Right: e.x + e.w, Bottom: e.y + e.h}
}

// SetHidden toggles display of the element and its subtree
func (e *Element) SetHidden(hidden bool) {
	e.screen.mu.Lock()
	defer e.screen.mu.Unlock()
	e.hidden = hidden
}

// Scrollable reports whether the element emits scroll events
func (e *Element) Scrollable() bool {
	return e != nil && e.scrollable
}

// ContentHeight is the bottom edge of the lowest child
func (e *Element) ContentHeight() float64 {
	e.screen.mu.RLock()
	defer e.screen.mu.RUnlock()
	return e.contentHeightLocked()
}

func (e *Element) contentHeightLocked() float64 {
	var bottom float64
	for _, c := range e.children {
		if !c.hidden && c.y+c.h > bottom {
			bottom = c.y + c.h
		}
	}
	return bottom
}

// ScrollTop returns the current scroll offset
func (e *Element) ScrollTop() float64 {
	e.screen.mu.RLock()
	defer e.screen.mu.RUnlock()
	return e.scrollTop
}

// MaxScrollTop is the largest offset ScrollTo accepts
func (e *Element) MaxScrollTop() float64 {
	e.screen.mu.RLock()
	defer e.screen.mu.RUnlock()
	return e.maxScrollLocked()
}

func (e *Element) maxScrollLocked() float64 {
	return max(0, e.contentHeightLocked()-e.h)
}

// ScrollTo moves the scroll offset, clamped to the content, and notifies
// listeners when it changed. It reports whether the offset moved.
func (e *Element) ScrollTo(top float64) bool {
	if !e.scrollable {
		return false
	}
	e.screen.mu.Lock()
	top = min(max(0, top), e.maxScrollLocked())
	changed := top != e.scrollTop
	e.scrollTop = top
	e.screen.mu.Unlock()

	if changed {
		e.dispatch(ScrollEvent{Target: e, ScrollTop: top})
	}
	return changed
}

// ScrollBy moves the scroll offset by dy
func (e *Element) ScrollBy(dy float64) bool {
	return e.ScrollTo(e.ScrollTop() + dy)
}

// SetScrollTopSilently adjusts the offset without notifying listeners. It
// keeps content anchored when rows are inserted or removed above the fold.
func (e *Element) SetScrollTopSilently(top float64) {
	e.screen.mu.Lock()
	defer e.screen.mu.Unlock()
	e.scrollTop = min(max(0, top), e.maxScrollLocked())
}

// AddScrollListener registers fn for scroll events. ok is false when the
// element cannot scroll; remove is then a no-op.
func (e *Element) AddScrollListener(fn func(ScrollEvent)) (remove func(), ok bool) {
	if !e.Scrollable() || fn == nil {
		return func() {}, false
	}
	e.lmu.Lock()
	defer e.lmu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]func(ScrollEvent))
	}
	e.nextLID++
	id := e.nextLID
	e.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.lmu.Lock()
			delete(e.listeners, id)
			e.lmu.Unlock()
		})
	}, true
}

// ListenerCount returns the number of attached scroll listeners
func (e *Element) ListenerCount() int {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	return len(e.listeners)
}

func (e *Element) dispatch(ev ScrollEvent) {
	e.lmu.Lock()
	fns := make([]func(ScrollEvent), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
