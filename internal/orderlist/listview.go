package orderlist

import (
	"example.com/backstage/services/ordermonitor/internal/view"
	"example.com/backstage/services/ordermonitor/internal/window"
)

// SentinelHeight is the height of the load sentinels at both ends
const SentinelHeight = 20

// ListView lays the resident orders out as fixed-height rows inside a
// scroll container, between the up and down sentinels
type ListView struct {
	List      *view.Element
	rows      *view.Element
	up        *view.Element
	down      *view.Element
	rowHeight float64
	resident  int
}

// NewListView builds the list filling the screen's viewport
func NewListView(screen *view.Screen, rowHeight float64) *ListView {
	lv := &ListView{
		List:      screen.NewScrollContainer("order-list"),
		up:        screen.NewElement("load-up"),
		rows:      screen.NewElement("rows"),
		down:      screen.NewElement("load-down"),
		rowHeight: rowHeight,
	}
	vp := screen.ViewportRect()
	lv.List.SetBox(0, 0, vp.Width(), vp.Height())
	screen.Root().Append(lv.List)
	lv.List.Append(lv.up)
	lv.List.Append(lv.rows)
	lv.List.Append(lv.down)
	lv.layout(0)
	return lv
}

// Sentinels returns the elements a Controller watches
func (lv *ListView) Sentinels() Sentinels {
	return Sentinels{Down: lv.down, Up: lv.up, ScrollTarget: lv.List}
}

// Apply re-lays the rows after a window change and keeps the rows on
// screen where they were: rows added above or evicted from the top shift
// the scroll offset by the same amount, without a scroll event.
func (lv *ListView) Apply(u Update) {
	prev := lv.resident
	n := len(u.Orders)
	lv.layout(n)

	var shift float64
	switch u.Direction {
	case window.Up:
		shift = float64(n-prev+u.Eviction.Records) * lv.rowHeight
	case window.Down:
		shift = -float64(u.Eviction.Records) * lv.rowHeight
	}
	if shift != 0 {
		lv.List.SetScrollTopSilently(lv.List.ScrollTop() + shift)
	}
}

// Resident returns the number of rows laid out
func (lv *ListView) Resident() int {
	return lv.resident
}

// FirstVisibleRow is the index of the row at the top of the viewport
func (lv *ListView) FirstVisibleRow() int {
	top := lv.List.ScrollTop() - SentinelHeight
	if top <= 0 || lv.resident == 0 {
		return 0
	}
	return min(int(top/lv.rowHeight), lv.resident-1)
}

func (lv *ListView) layout(rows int) {
	w := lv.List.Box().Width()
	height := float64(rows) * lv.rowHeight
	lv.up.SetBox(0, 0, w, SentinelHeight)
	lv.rows.SetBox(0, SentinelHeight, w, height)
	lv.down.SetBox(0, SentinelHeight+height, w, SentinelHeight)
	lv.resident = rows
}
