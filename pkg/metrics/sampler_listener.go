package metrics

import (
	"sync/atomic"

	"github.com/attr-sampler/pkg/monitor"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

// SamplerListener 将采样生命周期转换为 Prometheus 指标
type SamplerListener struct {
	sampler.BaseListener
	m            *monitor.SamplerMetrics
	lastExcluded atomic.Int64
}

func NewSamplerListener(m *monitor.SamplerMetrics) *SamplerListener {
	return &SamplerListener{m: m}
}

func (l *SamplerListener) PreCycle(sc sampler.SampleContext, a *sampler.Activity) error {
	if a.IsNoop() {
		l.m.Cycles.WithLabelValues("noop").Inc()
	}
	return nil
}

func (l *SamplerListener) PostCycle(sc sampler.SampleContext, a *sampler.Activity) error {
	result := "sampled"
	if a.IsNoop() {
		result = "noop"
	}
	l.m.Cycles.WithLabelValues(result).Inc()
	l.m.CycleDuration.Observe(float64(sc.LastSampleUsec()) / 1e6)
	l.m.Objects.Set(float64(sc.ObjectCount()))
	l.m.LastMetrics.Set(float64(sc.LastMetricCount()))

	// 计数器被 ResetCounters 清零后从 0 重新累计
	cur := sc.ExcludedAttributeCount()
	prev := l.lastExcluded.Swap(cur)
	if cur < prev {
		prev = 0
	}
	if delta := cur - prev; delta > 0 {
		l.m.Excluded.Add(float64(delta))
	}
	return nil
}

func (l *SamplerListener) SampleError(sc sampler.SampleContext, s *sampler.AttributeSample) {
	l.m.Errors.WithLabelValues("attribute").Inc()
}

func (l *SamplerListener) Error(sc sampler.SampleContext, err error) {
	l.m.Errors.WithLabelValues("cycle").Inc()
}

func (l *SamplerListener) Register(sc sampler.SampleContext, name objectname.Name) error {
	l.m.ObjectEvents.WithLabelValues("register").Inc()
	l.m.Objects.Set(float64(sc.ObjectCount()))
	return nil
}

func (l *SamplerListener) Unregister(sc sampler.SampleContext, name objectname.Name) error {
	l.m.ObjectEvents.WithLabelValues("unregister").Inc()
	l.m.Objects.Set(float64(sc.ObjectCount()))
	return nil
}

func (l *SamplerListener) Stats(sc sampler.SampleContext, stats map[string]any) {
	stats["metrics.cycle.seconds"] = float64(sc.LastSampleUsec()) / 1e6
}
