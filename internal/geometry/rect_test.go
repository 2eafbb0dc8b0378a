package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectIntersects(t *testing.T) {
	viewport := Rect{0, 0, 800, 600}

	tests := []struct {
		name string
		rect Rect
		want bool
	}{
		{"inside", Rect{10, 10, 100, 100}, true},
		{"partially below", Rect{0, 550, 800, 650}, true},
		{"touching bottom edge", Rect{0, 600, 800, 700}, false},
		{"below", Rect{0, 700, 800, 800}, false},
		{"left of", Rect{-200, 0, -1, 100}, false},
		{"covers", Rect{-10, -10, 900, 900}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rect.Intersects(viewport))
			assert.Equal(t, tt.want, viewport.Intersects(tt.rect))
		})
	}
}

func TestRectIntersection(t *testing.T) {
	a := Rect{0, 0, 100, 100}

	assert.Equal(t, Rect{50, 50, 100, 100}, a.Intersection(Rect{50, 50, 150, 150}))
	assert.Equal(t, Empty, a.Intersection(Rect{200, 200, 300, 300}))
	// touching rectangles produce a zero-area, non-empty strip
	assert.Equal(t, Rect{100, 0, 100, 100}, a.Intersection(Rect{100, 0, 200, 100}))
}

func TestIsVisible(t *testing.T) {
	viewport := Rect{0, 0, 800, 600}
	container := Rect{0, 100, 800, 300}

	// a rectangle at the origin with zero size has not been laid out
	assert.False(t, IsVisible(Empty, viewport, nil))

	sentinel := Rect{0, 400, 800, 420}
	assert.True(t, IsVisible(sentinel, viewport, nil))
	assert.False(t, IsVisible(sentinel, viewport, &container))

	inContainer := Rect{0, 250, 800, 270}
	assert.True(t, IsVisible(inContainer, viewport, &container))

	offscreen := Rect{0, 700, 800, 900}
	assert.False(t, IsVisible(Rect{0, 250, 800, 270}, viewport, &offscreen))
}

type fakeProvider struct {
	viewport Rect
	rects    map[string]Rect
}

func (p fakeProvider) ViewportRect() Rect         { return p.viewport }
func (p fakeProvider) ElementRect(id string) Rect { return p.rects[id] }

func TestElementVisible(t *testing.T) {
	p := fakeProvider{
		viewport: Rect{0, 0, 800, 600},
		rects: map[string]Rect{
			"list":     {0, 100, 800, 300},
			"sentinel": {0, 280, 800, 300},
			"hidden":   {0, 320, 800, 340},
		},
	}

	assert.True(t, ElementVisible[string](p, "sentinel", "list"))
	assert.False(t, ElementVisible[string](p, "hidden", "list"))
	assert.True(t, ElementVisible[string](p, "hidden", ""))
	assert.False(t, ElementVisible[string](p, "", "list"))
	assert.False(t, ElementVisible[string](p, "unknown", ""))
}
