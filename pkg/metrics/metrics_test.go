package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/metrics"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

func setup(t *testing.T) (*prometheus.Registry, *metrics.MetricFactory, *mbean.MemoryServer, *sampler.Sampler) {
	t.Helper()
	reg := metrics.NewRegistry(false)
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(reg))

	srv := mbean.NewMemoryServer()
	t.Cleanup(srv.Close)
	require.NoError(t, srv.Register(objectname.MustParse("app:type=Cache"), mbean.NewStaticBean().
		Set("Hits", 10).
		Set("Ratio", 0.5).
		Set("Enabled", true).
		Set("Name", "users").
		Set("Uptime", 90*time.Second).
		Set("Usage", mbean.NewComposite("Usage", map[string]any{"used": int64(3)}))))
	require.NoError(t, srv.Register(objectname.MustParse("app:type=Broken"), mbean.NewFuncBean(
		mbean.Func("Fail", "int", func() (any, error) { return nil, errors.New("down") }),
	)))

	s, err := sampler.New(srv, sampler.Options{Include: "app:*"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return reg, factory, srv, s
}

func runCycle(s *sampler.Sampler, noop bool) *sampler.Activity {
	a := sampler.NewActivity("test")
	a.SetNoop(noop)
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)
	return a
}

func TestSamplerListener(t *testing.T) {
	_, factory, srv, s := setup(t)
	m := factory.NewSamplerMetrics()
	s.AddListener(metrics.NewSamplerListener(m))

	a := runCycle(s, false)
	runCycle(s, true)
	runCycle(s, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("sampled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("attribute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Excluded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Objects))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.LastMetrics))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ObjectEvents.WithLabelValues("register")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CycleDuration))

	stats := a.Snapshot(sampler.StatsSnapshotName)
	require.NotNil(t, stats)
	_, ok := stats.Get("metrics.cycle.seconds")
	assert.True(t, ok)

	require.NoError(t, srv.Unregister(objectname.MustParse("app:type=Broken")))
	srv.Drain()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObjectEvents.WithLabelValues("unregister")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Objects))
}

func TestAttributeCollector(t *testing.T) {
	reg, _, _, s := setup(t)
	c := metrics.NewAttributeCollector()
	require.NoError(t, reg.Register(c))

	assert.Equal(t, 0, testutil.CollectAndCount(c))

	require.NoError(t, c.Publish(context.Background(), runCycle(s, false)))
	require.NoError(t, c.Publish(context.Background(), runCycle(s, true)))

	expected := `
# HELP sampled_attribute_value Last sampled value of a numeric managed object attribute
# TYPE sampled_attribute_value gauge
sampled_attribute_value{attribute="Enabled",domain="app",object="app:type=Cache"} 1
sampled_attribute_value{attribute="Hits",domain="app",object="app:type=Cache"} 10
sampled_attribute_value{attribute="Ratio",domain="app",object="app:type=Cache"} 0.5
sampled_attribute_value{attribute="Uptime",domain="app",object="app:type=Cache"} 90
sampled_attribute_value{attribute="Usage\\used",domain="app",object="app:type=Cache"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sampled_attribute_value"))
}

func TestRuleAndCollectorMetrics(t *testing.T) {
	reg := metrics.NewRegistry(true)
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(reg))

	rm := factory.NewRuleMetrics()
	rm.Matches.WithLabelValues("high").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.Matches.WithLabelValues("high")))

	cm := factory.NewCollectorMetrics()
	cm.Errors.WithLabelValues("host").Inc()
	cm.Duration.WithLabelValues("host").Observe(0.02)
	assert.Equal(t, 1.0, testutil.ToFloat64(cm.Errors.WithLabelValues("host")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["sampler_rule_matches_total"])

	assert.Panics(t, func() { factory.NewRuleMatchesTotal() })
}
