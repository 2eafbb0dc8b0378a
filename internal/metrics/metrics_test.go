package metrics

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter(PageRequests)
		}()
	}
	wg.Wait()
	m.IncrementCounterBy(OrdersIngested, 250)
	m.SetGauge("resident_pages", 5)
	m.SetGauge("resident_pages", 4)

	assert.Equal(t, int64(50), m.GetCounters()[PageRequests])
	assert.Equal(t, int64(250), m.GetCounters()[OrdersIngested])
	assert.Equal(t, int64(4), m.GetGauges()["resident_pages"])
}

func TestTimers(t *testing.T) {
	m := NewMetrics()
	m.RecordTimer(PageQuery, 30)
	m.RecordTimer(PageQuery, 10)
	m.RecordTimer(PageQuery, 20)

	tm := m.GetTimers()[PageQuery]
	assert.Equal(t, int64(3), tm.Count)
	assert.Equal(t, int64(60), tm.TotalTimeMs)
	assert.InDelta(t, 20.0, tm.AverageTimeMs, 1e-9)
	assert.Equal(t, int64(10), tm.MinTimeMs)
	assert.Equal(t, int64(30), tm.MaxTimeMs)

	done := m.Time("search")
	done()
	assert.Equal(t, int64(1), m.GetTimers()["search"].Count)
}

func TestErrorRatesAndHealth(t *testing.T) {
	m := NewMetrics()
	m.RecordSuccess(SearchRequests)
	m.RecordResult(SearchRequests, nil)
	m.RecordResult(SearchRequests, errors.New("boom"))
	m.RecordError(SearchRequests)

	er := m.GetErrorRates()[SearchRequests]
	assert.Equal(t, int64(4), er.Total)
	assert.Equal(t, int64(2), er.Errors)
	assert.InDelta(t, 50.0, er.ErrorRate, 1e-9)

	assert.True(t, m.Healthy())
	m.SetHealth("database", true)
	m.SetHealth("redis", false)
	assert.False(t, m.Healthy())
	m.SetHealth("redis", true)
	assert.True(t, m.Healthy())

	all := m.GetAllMetrics()
	require.Contains(t, all, "timers")
	assert.Equal(t, map[string]bool{"database": true, "redis": true}, all["health_checks"])
}
