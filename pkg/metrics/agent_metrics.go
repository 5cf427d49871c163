package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/attr-sampler/pkg/monitor"
)

// -------------------------- 采样周期指标 --------------------------

// NewSamplerCycleDurationSeconds 采样周期耗时分布，0.001s ~ 0.512s 指数分桶
func (f *MetricFactory) NewSamplerCycleDurationSeconds() prometheus.Histogram {
	return promauto.With(f.reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sampler_cycle_duration_seconds",
			Help:    "Duration of a sampling cycle",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)
}

func (f *MetricFactory) NewSamplerCyclesTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_cycles_total",
			Help: "Total number of sampling cycles by result",
		},
		[]string{"result"},
	)
}

func (f *MetricFactory) NewSamplerErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_errors_total",
			Help: "Total number of sampling errors by kind",
		},
		[]string{"kind"},
	)
}

func (f *MetricFactory) NewSamplerExcludedTotal() prometheus.Counter {
	return promauto.With(f.reg).NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_excluded_attributes_total",
			Help: "Total number of attribute samples skipped or failed",
		},
	)
}

func (f *MetricFactory) NewSamplerObjects() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sampler_objects",
			Help: "Number of managed objects currently tracked",
		},
	)
}

func (f *MetricFactory) NewSamplerLastMetrics() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "sampler_last_metric_count",
			Help: "Number of properties written by the last cycle",
		},
	)
}

func (f *MetricFactory) NewSamplerObjectEventsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_object_events_total",
			Help: "Managed object lifecycle events seen by the sampler",
		},
		[]string{"event"},
	)
}

// NewSamplerMetrics 一次性创建采样周期指标
func (f *MetricFactory) NewSamplerMetrics() *monitor.SamplerMetrics {
	return &monitor.SamplerMetrics{
		CycleDuration: f.NewSamplerCycleDurationSeconds(),
		Cycles:        f.NewSamplerCyclesTotal(),
		Errors:        f.NewSamplerErrorsTotal(),
		Excluded:      f.NewSamplerExcludedTotal(),
		Objects:       f.NewSamplerObjects(),
		LastMetrics:   f.NewSamplerLastMetrics(),
		ObjectEvents:  f.NewSamplerObjectEventsTotal(),
	}
}

// -------------------------- 规则指标 --------------------------

func (f *MetricFactory) NewRuleMatchesTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sampler_rule_matches_total",
			Help: "Total number of rule condition matches",
		},
		[]string{"rule"},
	)
}

func (f *MetricFactory) NewRuleMetrics() *monitor.RuleMetrics {
	return &monitor.RuleMetrics{Matches: f.NewRuleMatchesTotal()}
}

// -------------------------- 主机对象刷新指标 --------------------------

// NewAgentCollectDurationSeconds 主机对象刷新耗时，0.01s ~ 5.12s 指数分桶
func (f *MetricFactory) NewAgentCollectDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_collect_duration_seconds",
			Help:    "Duration of collector execution",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"collector"},
	)
}

func (f *MetricFactory) NewAgentCollectErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_collect_errors_total",
			Help: "Total number of collector errors",
		},
		[]string{"collector"},
	)
}

func (f *MetricFactory) NewCollectorMetrics() *monitor.CollectorMetrics {
	return &monitor.CollectorMetrics{
		Duration: f.NewAgentCollectDurationSeconds(),
		Errors:   f.NewAgentCollectErrorsTotal(),
	}
}
