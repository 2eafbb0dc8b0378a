// Package geometry decides whether a laid-out element intersects the visible
// part of the screen.
package geometry

// Rect is an axis-aligned rectangle in viewport coordinates
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Empty is the rectangle of an element that has not been laid out yet
var Empty = Rect{}

// IsEmpty reports whether every edge is zero
func (r Rect) IsEmpty() bool {
	return r == Empty
}

// Width of the rectangle
func (r Rect) Width() float64 {
	return r.Right - r.Left
}

// Height of the rectangle
func (r Rect) Height() float64 {
	return r.Bottom - r.Top
}

// Translate returns the rectangle shifted by dx, dy
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Intersects reports whether the two rectangles overlap. Touching edges do
// not count as an overlap.
func (r Rect) Intersects(o Rect) bool {
	return o.Left < r.Right &&
		r.Left < o.Right &&
		o.Top < r.Bottom &&
		r.Top < o.Bottom
}

// Intersection returns the overlapping region, or Empty when there is none
func (r Rect) Intersection(o Rect) Rect {
	left := max(r.Left, o.Left)
	top := max(r.Top, o.Top)
	right := min(r.Right, o.Right)
	bottom := min(r.Bottom, o.Bottom)

	if right >= left && bottom >= top {
		return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
	}
	return Empty
}
