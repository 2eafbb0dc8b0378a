package orderlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/ordermonitor/internal/geometry"
	"example.com/backstage/services/ordermonitor/internal/view"
	"example.com/backstage/services/ordermonitor/internal/window"
)

func TestListViewLayout(t *testing.T) {
	screen := view.NewScreen(800, 400)
	lv := NewListView(screen, 10)

	s := lv.Sentinels()
	require.NotNil(t, s.Down)
	assert.Same(t, lv.List, s.ScrollTarget)
	assert.True(t, lv.List.Scrollable())

	lv.Apply(Update{Direction: window.Initial, Page: 1, Orders: ordersFor(1, 100)})
	assert.Equal(t, 100, lv.Resident())
	assert.Equal(t, 2*SentinelHeight+1000.0, lv.List.ContentHeight())

	// the down sentinel is below the fold until the list is scrolled to the end
	assert.False(t, geometry.ElementVisible[*view.Element](screen, s.Down, s.ScrollTarget))
	lv.List.ScrollTo(lv.List.MaxScrollTop())
	assert.True(t, geometry.ElementVisible[*view.Element](screen, s.Down, s.ScrollTarget))
	assert.False(t, geometry.ElementVisible[*view.Element](screen, s.Up, s.ScrollTarget))
}

func TestListViewAnchorsOnHeadEviction(t *testing.T) {
	screen := view.NewScreen(800, 400)
	lv := NewListView(screen, 10)
	lv.Apply(Update{Direction: window.Initial, Page: 1, Orders: ordersFor(1, 200)})

	lv.List.ScrollTo(1500)
	before := lv.FirstVisibleRow()

	// page 3 arrives and page 1 leaves the top
	lv.Apply(Update{
		Direction: window.Down,
		Page:      3,
		Eviction:  window.Eviction{Page: 1, Records: 100},
		Orders:    append(ordersFor(2, 100), ordersFor(3, 100)...),
	})
	assert.Equal(t, 500.0, lv.List.ScrollTop())
	assert.Equal(t, before-100, lv.FirstVisibleRow())
}

func TestListViewAnchorsOnPrepend(t *testing.T) {
	screen := view.NewScreen(800, 400)
	lv := NewListView(screen, 10)
	lv.Apply(Update{Direction: window.Initial, Page: 2, Orders: append(ordersFor(2, 100), ordersFor(3, 100)...)})
	lv.List.ScrollTo(0)

	// page 1 is prepended and page 3 leaves the bottom
	lv.Apply(Update{
		Direction: window.Up,
		Page:      1,
		Eviction:  window.Eviction{Page: 3, Records: 100},
		Orders:    append(ordersFor(1, 100), ordersFor(2, 100)...),
	})
	assert.Equal(t, 1000.0, lv.List.ScrollTop())
	assert.Equal(t, 98, lv.FirstVisibleRow())
}
