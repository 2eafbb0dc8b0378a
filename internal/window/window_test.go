package window

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/ordermonitor/internal/models"
)

func pageOf(page, n int) []models.Order {
	items := make([]models.Order, n)
	for i := range items {
		items[i] = models.Order{
			ID:               int64((page-1)*models.RecordsPerPage + i + 1),
			DeliveryLocation: models.Loc{Lat: 51.5074, Long: -0.1278},
			CurrentLocation:  models.Loc{Lat: 51.5155, Long: -0.0922},
			VendorLocation:   models.Loc{Lat: 51.4816, Long: -0.1910},
		}
	}
	return items
}

func TestAppendEvictsHeadPage(t *testing.T) {
	w := New(100, 5)

	for page := 1; page <= 5; page++ {
		ev, err := w.AppendTail(page, pageOf(page, 100), true)
		require.NoError(t, err)
		assert.False(t, ev.Evicted())
	}
	assert.Equal(t, 500, w.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w.ViewedPages())
	assert.False(t, w.HasMoreUp())
	assert.True(t, w.HasMoreDown())

	ev, err := w.AppendTail(6, pageOf(6, 100), true)
	require.NoError(t, err)
	assert.Equal(t, Eviction{Page: 1, Records: 100}, ev)
	assert.Equal(t, 500, w.Len())
	assert.Equal(t, []int{2, 3, 4, 5, 6}, w.ViewedPages())
	assert.True(t, w.HasMoreUp())

	orders := w.Orders()
	assert.Equal(t, int64(101), orders[0].ID)
	assert.Equal(t, int64(600), orders[len(orders)-1].ID)
}

func TestShortLastPage(t *testing.T) {
	w := New(100, 5)

	_, err := w.AppendTail(1, pageOf(1, 45), false)
	require.NoError(t, err)
	assert.False(t, w.HasMoreDown())
	assert.False(t, w.HasMoreUp())
	assert.Equal(t, 45, w.Len())
}

func TestEvictionRemovesExactlyThePageRecords(t *testing.T) {
	w := New(100, 2)

	_, err := w.AppendTail(1, pageOf(1, 100), true)
	require.NoError(t, err)
	_, err = w.AppendTail(2, pageOf(2, 100), true)
	require.NoError(t, err)
	ev, err := w.AppendTail(3, pageOf(3, 30), false)
	require.NoError(t, err)
	assert.Equal(t, Eviction{Page: 1, Records: 100}, ev)
	assert.Equal(t, 130, w.Len())

	// scrolling back up evicts the short tail page, not a full page
	ev, err = w.PrependHead(1, pageOf(1, 100))
	require.NoError(t, err)
	assert.Equal(t, Eviction{Page: 3, Records: 30}, ev)
	assert.Equal(t, 200, w.Len())
	assert.Equal(t, []int{1, 2}, w.ViewedPages())
}

// Evicting a tail page always sets hasMoreDown, even when that page was
// the last page of the sequence. This is a policy choice: the evicted page
// can always be fetched again.
func TestPrependEvictionForcesHasMoreDown(t *testing.T) {
	w := New(100, 2)

	for page := 1; page <= 3; page++ {
		_, err := w.AppendTail(page, pageOf(page, 100), page < 3)
		require.NoError(t, err)
	}
	require.False(t, w.HasMoreDown())
	require.Equal(t, []int{2, 3}, w.ViewedPages())

	ev, err := w.PrependHead(1, pageOf(1, 100))
	require.NoError(t, err)
	assert.Equal(t, 3, ev.Page)
	assert.True(t, w.HasMoreDown())
	assert.False(t, w.HasMoreUp())

	next, err := w.NextPageToFetch(Down)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

func TestPrependWithoutEvictionKeepsHasMoreDown(t *testing.T) {
	w := New(100, 5)
	w.pages = []span{{page: 3, count: 100}}
	w.orders = pageOf(3, 100)
	w.hasMoreDown = false

	_, err := w.PrependHead(2, pageOf(2, 100))
	require.NoError(t, err)
	assert.False(t, w.HasMoreDown())
	assert.True(t, w.HasMoreUp())
	assert.Equal(t, []int{2, 3}, w.ViewedPages())
	assert.Equal(t, int64(101), w.Orders()[0].ID)
}

func TestNextPageToFetch(t *testing.T) {
	w := New(100, 5)

	page, err := w.NextPageToFetch(Initial)
	require.NoError(t, err)
	assert.Equal(t, 1, page)

	_, err = w.NextPageToFetch(Down)
	assert.True(t, errors.Is(err, ErrEmptyWindow))
	_, err = w.NextPageToFetch(Up)
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = w.AppendTail(1, pageOf(1, 100), true)
	require.NoError(t, err)

	_, err = w.NextPageToFetch(Initial)
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	page, err = w.NextPageToFetch(Down)
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	_, err = w.NextPageToFetch(Up)
	assert.ErrorIs(t, err, ErrNoPageAbove)

	_, err = w.NextPageToFetch(Direction(9))
	assert.Error(t, err)
}

func TestRejectsNonContiguousPages(t *testing.T) {
	w := New(100, 5)

	_, err := w.PrependHead(1, pageOf(1, 100))
	assert.ErrorIs(t, err, ErrEmptyWindow)

	_, err = w.AppendTail(0, nil, true)
	assert.ErrorIs(t, err, ErrNonContiguousPage)

	_, err = w.AppendTail(4, pageOf(4, 100), true)
	require.NoError(t, err)

	for _, page := range []int{4, 6, 2} {
		_, err = w.AppendTail(page, pageOf(page, 100), true)
		assert.ErrorIs(t, err, ErrNonContiguousPage, "append %d", page)
	}
	for _, page := range []int{4, 2, 5} {
		_, err = w.PrependHead(page, pageOf(page, 100))
		assert.ErrorIs(t, err, ErrNonContiguousPage, "prepend %d", page)
	}

	assert.Equal(t, []int{4}, w.ViewedPages())
	assert.Equal(t, 100, w.Len())
}

func TestOrdersAreEnrichedAndCopied(t *testing.T) {
	w := New(100, 5)
	items := pageOf(1, 3)

	_, err := w.AppendTail(1, items, false)
	require.NoError(t, err)
	assert.Zero(t, items[0].DistanceLeft)

	orders := w.Orders()
	assert.InDelta(t, items[0].Enriched().DistanceLeft, orders[0].DistanceLeft, 1e-9)
	assert.Greater(t, orders[0].TotalDistance, 0.0)

	orders[0].ID = -1
	assert.Equal(t, int64(1), w.Orders()[0].ID)

	pages := w.ViewedPages()
	pages[0] = 99
	assert.Equal(t, []int{1}, w.ViewedPages())
}

func TestWindowInvariantsUnderRandomScrolling(t *testing.T) {
	const (
		limit     = 4
		lastPage  = 25
		lastCount = 37
	)
	rng := rand.New(rand.NewSource(7))
	w := New(100, limit)

	size := func(page int) int {
		if page == lastPage {
			return lastCount
		}
		return 100
	}

	_, err := w.AppendTail(1, pageOf(1, size(1)), true)
	require.NoError(t, err)

	for step := 0; step < 2000; step++ {
		if rng.Intn(3) > 0 {
			if !w.HasMoreDown() {
				continue
			}
			page, err := w.NextPageToFetch(Down)
			require.NoError(t, err)
			_, err = w.AppendTail(page, pageOf(page, size(page)), page < lastPage)
			require.NoError(t, err)
		} else {
			if !w.HasMoreUp() {
				continue
			}
			page, err := w.NextPageToFetch(Up)
			require.NoError(t, err)
			_, err = w.PrependHead(page, pageOf(page, size(page)))
			require.NoError(t, err)
		}

		pages := w.ViewedPages()
		require.LessOrEqual(t, len(pages), limit)
		for i := 1; i < len(pages); i++ {
			require.Equal(t, pages[i-1]+1, pages[i], "pages %v", pages)
		}
		require.Equal(t, pages[0] > 1, w.HasMoreUp())

		want := 0
		for _, p := range pages {
			want += size(p)
		}
		require.Equal(t, want, w.Len())

		orders := w.Orders()
		require.Equal(t, int64((pages[0]-1)*100+1), orders[0].ID)
	}
}
