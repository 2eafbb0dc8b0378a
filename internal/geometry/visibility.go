package geometry

// Provider supplies layout information to the visibility check. It replaces
// direct access to a browser window so the loader can run headless.
type Provider[E any] interface {
	ViewportRect() Rect
	ElementRect(el E) Rect
}

// IsVisible reports whether target intersects the viewport. When a scroll
// container is given the target must intersect the part of the container
// that is itself inside the viewport.
func IsVisible(target, viewport Rect, container *Rect) bool {
	if target.IsEmpty() {
		return false
	}
	if container == nil {
		return target.Intersects(viewport)
	}
	return target.Intersects(container.Intersection(viewport))
}

// ElementVisible resolves the rectangles of el and the optional container
// through p and applies IsVisible.
func ElementVisible[E comparable](p Provider[E], el E, container E) bool {
	var zero E
	if el == zero {
		return false
	}
	var clip *Rect
	if container != zero {
		r := p.ElementRect(container)
		clip = &r
	}
	return IsVisible(p.ElementRect(el), p.ViewportRect(), clip)
}
