package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)

	m.ObserveReconcile("generator", "Synced")
	m.ObserveReconcile("generator", "Synced")
	m.ObserveReconcile("aggregator", "Unknown")
	m.ObserveRender("generator", false, time.Millisecond)
	m.ObserveApply(ResultSuccess, time.Millisecond)
	m.ObserveApply(ResultTransient, time.Millisecond)
	m.ObserveSuperseded()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.reconciles.WithLabelValues("generator", "Synced")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconciles.WithLabelValues("aggregator", "Unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.applies.WithLabelValues(ResultTransient)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.superseded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.renderDuration))

	err := testutil.CollectAndCompare(m.applies, strings.NewReader(`
# HELP hierarchy_gateway_apply_total Number of apply attempts by result.
# TYPE hierarchy_gateway_apply_total counter
hierarchy_gateway_apply_total{result="success"} 1
hierarchy_gateway_apply_total{result="transient"} 1
`))
	require.NoError(t, err)
}

func TestMetrics_SetTargets(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetTargets("guestbook", map[string]int{"Synced": 3, "Unknown": 1})
	assert.Equal(t, 2, testutil.CollectAndCount(m.targets))

	m.SetTargets("guestbook", map[string]int{"Synced": 4})
	assert.Equal(t, 1, testutil.CollectAndCount(m.targets))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.targets.WithLabelValues("guestbook", "Synced")))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReconcile("generator", "Synced")
		m.ObserveRender("generator", true, time.Second)
		m.ObserveApply(ResultPermanent, time.Second)
		m.SetTargets("guestbook", map[string]int{"Synced": 1})
		m.ObserveSuperseded()
	})
}
