package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMatch("success", "keyword", 20*time.Millisecond)
	m.ObserveMatch("success", "keyword", 10*time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.AIError("TIMEOUT")
	m.SessionWrite(nil)
	m.SessionWrite(errors.New("down"))
	m.HTTPRequest("/match-benefits", "POST", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchRequests.WithLabelValues("success", "keyword")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIErrors.WithLabelValues("TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionWrites.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/match-benefits", "POST", "4xx")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveMatch("success", "ai", time.Second)
		m.CacheLookup(true)
		m.AIError("AI_MATCHING_ERROR")
		m.SessionWrite(nil)
		m.HTTPRequest("/", "GET", 200, time.Second)
	})
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
