package orderlist

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/ordermonitor/internal/lazyload"
	"example.com/backstage/services/ordermonitor/internal/models"
	"example.com/backstage/services/ordermonitor/internal/scroll"
	"example.com/backstage/services/ordermonitor/internal/view"
	"example.com/backstage/services/ordermonitor/internal/window"
)

// Mock order source for testing
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) FetchPage(ctx context.Context, page int) (*models.PageResult, error) {
	args := m.Called(ctx, page)
	res, _ := args.Get(0).(*models.PageResult)
	return res, args.Error(1)
}

func ordersFor(page, n int) []models.Order {
	items := make([]models.Order, n)
	for i := range items {
		items[i] = models.Order{ID: int64((page-1)*models.RecordsPerPage + i + 1)}
	}
	return items
}

func okPage(page int, nextPage bool) *models.PageResult {
	return models.NewPageResult(ordersFor(page, models.RecordsPerPage), nextPage)
}

func mounted(t *testing.T, src *MockDataSource, limit int) *Controller {
	t.Helper()
	src.On("FetchPage", mock.Anything, 1).Return(okPage(1, true), nil).Once()

	c := New(src, window.New(models.RecordsPerPage, limit), Options{})
	require.NoError(t, c.Mount(context.Background(), Sentinels{}))
	t.Cleanup(c.Teardown)
	return c
}

func TestMountLoadsFirstPage(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	state := c.State()
	assert.Len(t, state.Orders, 100)
	assert.Equal(t, []int{1}, state.ViewedPages)
	assert.True(t, state.HasMoreDown)
	assert.False(t, state.HasMoreUp)
	assert.False(t, state.IsLoading)
	assert.NoError(t, state.LastError)

	// without sentinels both triggers stay idle
	down, up := c.TriggerStates()
	assert.Equal(t, lazyload.Idle, down)
	assert.Equal(t, lazyload.Idle, up)

	assert.ErrorIs(t, c.Mount(context.Background(), Sentinels{}), ErrAlreadyMounted)
	src.AssertExpectations(t)
}

func TestMountReportsFirstPageFailure(t *testing.T) {
	src := new(MockDataSource)
	src.On("FetchPage", mock.Anything, 1).Return(nil, errors.New("connection refused"))

	c := New(src, window.New(100, 5), Options{})
	defer c.Teardown()

	err := c.Mount(context.Background(), Sentinels{})
	require.Error(t, err)

	state := c.State()
	assert.Empty(t, state.Orders)
	assert.False(t, state.IsLoading)
	assert.Equal(t, err, state.LastError)
}

func TestAtMostOneFetchPerDirection(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	release := make(chan struct{})
	src.On("FetchPage", mock.Anything, 2).
		Run(func(mock.Arguments) { <-release }).
		Return(okPage(2, true), nil).Once()

	require.True(t, c.Load(context.Background(), window.Down))
	assert.True(t, c.State().IsLoading)
	assert.False(t, c.Load(context.Background(), window.Down))
	assert.False(t, c.Load(context.Background(), window.Down))

	close(release)
	c.Wait()

	state := c.State()
	assert.False(t, state.IsLoading)
	assert.Equal(t, []int{1, 2}, state.ViewedPages)
	assert.Len(t, state.Orders, 200)
	src.AssertNumberOfCalls(t, "FetchPage", 2)
}

func TestLoadDroppedWhenNothingMore(t *testing.T) {
	src := new(MockDataSource)
	src.On("FetchPage", mock.Anything, 1).
		Return(models.NewPageResult(ordersFor(1, 45), false), nil).Once()

	c := New(src, window.New(100, 5), Options{})
	defer c.Teardown()
	require.NoError(t, c.Mount(context.Background(), Sentinels{}))

	state := c.State()
	assert.Len(t, state.Orders, 45)
	assert.False(t, state.HasMoreDown)

	assert.False(t, c.Load(context.Background(), window.Down))
	assert.False(t, c.Load(context.Background(), window.Up))
	src.AssertNumberOfCalls(t, "FetchPage", 1)
}

func TestFailedFetchLeavesWindowUnchanged(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	src.On("FetchPage", mock.Anything, 2).Return(nil, errors.New("timeout")).Once()
	require.True(t, c.Load(context.Background(), window.Down))
	c.Wait()

	state := c.State()
	assert.Equal(t, []int{1}, state.ViewedPages)
	assert.Len(t, state.Orders, 100)
	assert.False(t, state.IsLoading)
	require.Error(t, state.LastError)

	// a rejected envelope is a failure as well
	src.On("FetchPage", mock.Anything, 2).
		Return(models.NewErrorResult(models.CodeInternal, "db down"), nil).Once()
	require.True(t, c.Load(context.Background(), window.Down))
	c.Wait()
	assert.ErrorIs(t, c.State().LastError, ErrRejected)

	// the next success clears the notice
	src.On("FetchPage", mock.Anything, 2).Return(okPage(2, true), nil).Once()
	require.True(t, c.Load(context.Background(), window.Down))
	c.Wait()
	state = c.State()
	assert.NoError(t, state.LastError)
	assert.Equal(t, []int{1, 2}, state.ViewedPages)
}

func TestScrollingUpEvictsTail(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 2)

	for page := 2; page <= 3; page++ {
		src.On("FetchPage", mock.Anything, page).Return(okPage(page, page < 3), nil).Once()
		require.True(t, c.Load(context.Background(), window.Down))
		c.Wait()
	}
	state := c.State()
	require.Equal(t, []int{2, 3}, state.ViewedPages)
	require.False(t, state.HasMoreDown)
	require.True(t, state.HasMoreUp)

	src.On("FetchPage", mock.Anything, 1).Return(okPage(1, true), nil).Once()
	require.True(t, c.Load(context.Background(), window.Up))
	c.Wait()

	state = c.State()
	assert.Equal(t, []int{1, 2}, state.ViewedPages)
	assert.True(t, state.HasMoreDown)
	assert.False(t, state.HasMoreUp)
	assert.Equal(t, int64(1), state.Orders[0].ID)
}

func TestStaleDownResultIsDiscarded(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 2)

	for page := 2; page <= 3; page++ {
		src.On("FetchPage", mock.Anything, page).Return(okPage(page, true), nil).Once()
		require.True(t, c.Load(context.Background(), window.Down))
		c.Wait()
	}

	release := make(chan struct{})
	src.On("FetchPage", mock.Anything, 4).
		Run(func(mock.Arguments) { <-release }).
		Return(okPage(4, true), nil).Once()
	src.On("FetchPage", mock.Anything, 1).Return(okPage(1, true), nil).Once()

	require.True(t, c.Load(context.Background(), window.Down))
	require.True(t, c.Load(context.Background(), window.Up))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{1, 2}, c.State().ViewedPages)
	}, time.Second, 2*time.Millisecond)

	// page 4 no longer extends the window once page 3 was evicted
	close(release)
	c.Wait()

	state := c.State()
	assert.Equal(t, []int{1, 2}, state.ViewedPages)
	assert.Len(t, state.Orders, 200)
	assert.False(t, state.IsLoading)
	src.AssertExpectations(t)
}

func TestTeardownIgnoresLateResults(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	release := make(chan struct{})
	var fetchCtx context.Context
	src.On("FetchPage", mock.Anything, 2).
		Run(func(args mock.Arguments) {
			fetchCtx = args.Get(0).(context.Context)
			<-release
		}).
		Return(okPage(2, true), nil).Once()

	require.True(t, c.Load(c.context(), window.Down))
	c.Teardown()
	close(release)
	c.Wait()

	assert.ErrorIs(t, fetchCtx.Err(), context.Canceled)
	state := c.State()
	assert.Equal(t, []int{1}, state.ViewedPages)
	assert.False(t, state.IsLoading)
	assert.False(t, c.Load(context.Background(), window.Down))
}

func TestMountAfterTeardownFails(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	c.Teardown()
	assert.ErrorIs(t, c.Mount(context.Background(), Sentinels{}), ErrTornDown)
	assert.False(t, c.Load(context.Background(), window.Down))
	assert.Equal(t, []int{1}, c.State().ViewedPages)
	src.AssertNumberOfCalls(t, "FetchPage", 1)
}

func TestChangesAreSignalled(t *testing.T) {
	src := new(MockDataSource)
	c := mounted(t, src, 5)

	// drain the signal left by mounting
	select {
	case <-c.Changes():
	default:
	}

	src.On("FetchPage", mock.Anything, 2).Return(okPage(2, true), nil).Once()
	require.True(t, c.Load(context.Background(), window.Down))

	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
	c.Wait()
}

func TestTriggerDrivesDownwardLoad(t *testing.T) {
	clock := clockwork.NewFakeClock()
	screen := view.NewScreen(800, 600)

	list := screen.NewScrollContainer("list")
	list.SetBox(0, 0, 800, 400)
	screen.Root().Append(list)

	up := screen.NewElement("up")
	list.Append(up)
	rows := screen.NewElement("rows")
	list.Append(rows)
	down := screen.NewElement("down")
	list.Append(down)

	layout := func(u Update) {
		height := float64(len(u.Orders)) * 4
		up.SetBox(0, 0, 800, 20)
		rows.SetBox(0, 20, 800, height)
		down.SetBox(0, 20+height, 800, 20)
	}

	src := new(MockDataSource)
	src.On("FetchPage", mock.Anything, 1).Return(okPage(1, true), nil).Once()
	src.On("FetchPage", mock.Anything, 2).Return(okPage(2, false), nil).Once()

	c := New(src, window.New(100, 5), Options{
		Layout:   screen,
		Registry: scroll.NewRegistry(scroll.WithClock(clock)),
		Clock:    clock,
		OnUpdate: layout,
	})
	require.NoError(t, c.Mount(context.Background(), Sentinels{Down: down, Up: up, ScrollTarget: list}))

	downState, upState := c.TriggerStates()
	assert.Equal(t, lazyload.Watching, downState)
	// the up sentinel is on screen, but there is nothing above page 1
	assert.Equal(t, lazyload.Pending, upState)

	list.ScrollTo(list.MaxScrollTop())
	clock.Advance(scroll.DefaultSampleInterval)
	require.Eventually(t, func() bool {
		d, _ := c.TriggerStates()
		return d == lazyload.Pending
	}, time.Second, 2*time.Millisecond)

	clock.Advance(lazyload.DefaultDebounce)
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.IsLoading && len(s.ViewedPages) == 2
	}, time.Second, 2*time.Millisecond)
	c.Wait()

	state := c.State()
	assert.False(t, state.HasMoreDown)
	assert.Len(t, state.Orders, 200)

	c.Teardown()
	assert.Equal(t, 0, list.ListenerCount())
	src.AssertExpectations(t)
}
