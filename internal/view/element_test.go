package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/ordermonitor/internal/geometry"
)

func buildList(t *testing.T) (*Screen, *Element, *Element) {
	t.Helper()
	s := NewScreen(800, 600)

	list := s.NewScrollContainer("list")
	list.SetBox(0, 100, 800, 300)
	s.Root().Append(list)

	for i := 0; i < 20; i++ {
		row := s.NewElement("")
		row.SetBox(0, float64(i)*40, 800, 40)
		list.Append(row)
	}

	sentinel := s.NewElement("sentinel")
	sentinel.SetBox(0, 800, 800, 20)
	list.Append(sentinel)
	return s, list, sentinel
}

func TestElementRectFollowsScroll(t *testing.T) {
	s, list, sentinel := buildList(t)

	assert.Equal(t, geometry.Rect{Left: 0, Top: 100, Right: 800, Bottom: 400}, s.ElementRect(list))
	assert.Equal(t, geometry.Rect{Left: 0, Top: 900, Right: 800, Bottom: 920}, s.ElementRect(sentinel))
	assert.False(t, geometry.ElementVisible[*Element](s, sentinel, list))

	assert.Equal(t, 820.0, list.ContentHeight())
	assert.Equal(t, 520.0, list.MaxScrollTop())

	require.True(t, list.ScrollTo(600))
	assert.Equal(t, 520.0, list.ScrollTop())
	assert.Equal(t, geometry.Rect{Left: 0, Top: 380, Right: 800, Bottom: 400}, s.ElementRect(sentinel))
	assert.True(t, geometry.ElementVisible[*Element](s, sentinel, list))
}

func TestElementRectEmptyWhenNotLaidOut(t *testing.T) {
	s, list, sentinel := buildList(t)

	detached := s.NewElement("detached")
	detached.SetBox(0, 0, 10, 10)
	assert.True(t, s.ElementRect(detached).IsEmpty())

	zero := s.NewElement("zero")
	list.Append(zero)
	assert.True(t, s.ElementRect(zero).IsEmpty())

	sentinel.SetHidden(true)
	assert.True(t, s.ElementRect(sentinel).IsEmpty())

	other := NewScreen(10, 10)
	assert.True(t, other.ElementRect(list).IsEmpty())
}

func TestScrollListeners(t *testing.T) {
	_, list, sentinel := buildList(t)

	var events []ScrollEvent
	remove, ok := list.AddScrollListener(func(ev ScrollEvent) {
		events = append(events, ev)
	})
	require.True(t, ok)
	assert.Equal(t, 1, list.ListenerCount())

	list.ScrollBy(100)
	list.ScrollBy(0)
	list.SetScrollTopSilently(300)
	list.ScrollBy(-1000)

	require.Len(t, events, 2)
	assert.Equal(t, 100.0, events[0].ScrollTop)
	assert.Equal(t, 0.0, events[1].ScrollTop)
	assert.Same(t, list, events[1].Target)

	remove()
	remove()
	assert.Equal(t, 0, list.ListenerCount())

	_, ok = sentinel.AddScrollListener(func(ScrollEvent) {})
	assert.False(t, ok)
}

func TestAppendMovesElement(t *testing.T) {
	s, list, sentinel := buildList(t)

	other := s.NewScrollContainer("other")
	other.SetBox(0, 0, 100, 100)
	s.Root().Append(other)
	other.Append(sentinel)

	assert.Len(t, list.Children(), 20)
	assert.Len(t, other.Children(), 1)

	sentinel.Remove()
	assert.Empty(t, other.Children())
}
