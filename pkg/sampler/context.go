package sampler

import (
	"sync/atomic"

	"github.com/attr-sampler/pkg/mbean"
)

// 统计快照中的键
const (
	StatNoopCount        = "noop.count"
	StatSampleCount      = "sample.count"
	StatTotalErrorCount  = "total.error.count"
	StatTotalExcludeCnt  = "total.exclude.count"
	StatObjectCount      = "mbean.count"
	StatConditionCount   = "condition.count"
	StatListenerCount    = "listener.count"
	StatTotalActionCount = "total.action.count"
	StatTotalMetricCount = "total.metric.count"
	StatLastMetricCount  = "last.metric.count"
	StatSampleTimeUsec   = "sample.time.usec"
)

// SampleContext 采样统计的只读视图，可在任意 goroutine 中读取
type SampleContext interface {
	Server() mbean.Server
	SampleCount() int64
	NoopCount() int64
	TotalErrorCount() int64
	ExcludedAttributeCount() int64
	TotalActionCount() int64
	TotalMetricCount() int64
	LastMetricCount() int64
	LastSampleUsec() int64
	ObjectCount() int
	ConditionCount() int
	ListenerCount() int
	LastError() error
	Stats() Stats
}

// Stats 某一时刻的统计值
type Stats struct {
	NoopCount        int64  `json:"noop_count"`
	SampleCount      int64  `json:"sample_count"`
	TotalErrorCount  int64  `json:"total_error_count"`
	TotalExcludeCnt  int64  `json:"total_exclude_count"`
	ObjectCount      int    `json:"mbean_count"`
	ConditionCount   int    `json:"condition_count"`
	ListenerCount    int    `json:"listener_count"`
	TotalActionCount int64  `json:"total_action_count"`
	TotalMetricCount int64  `json:"total_metric_count"`
	LastMetricCount  int64  `json:"last_metric_count"`
	SampleTimeUsec   int64  `json:"sample_time_usec"`
	LastError        string `json:"last_error,omitempty"`
}

// Properties 按统计快照的固定顺序输出
func (s Stats) Properties() []Property {
	return []Property{
		{StatNoopCount, s.NoopCount},
		{StatSampleCount, s.SampleCount},
		{StatTotalErrorCount, s.TotalErrorCount},
		{StatTotalExcludeCnt, s.TotalExcludeCnt},
		{StatObjectCount, s.ObjectCount},
		{StatConditionCount, s.ConditionCount},
		{StatListenerCount, s.ListenerCount},
		{StatTotalActionCount, s.TotalActionCount},
		{StatTotalMetricCount, s.TotalMetricCount},
		{StatLastMetricCount, s.LastMetricCount},
		{StatSampleTimeUsec, s.SampleTimeUsec},
	}
}

// counters 仅在 Sampler 的周期内修改，原子类型保证外部读取无竞争
type counters struct {
	samples     atomic.Int64
	noops       atomic.Int64
	errors      atomic.Int64
	excluded    atomic.Int64
	totalMetric atomic.Int64
	lastMetric  atomic.Int64
	lastUsec    atomic.Int64
}

func (c *counters) reset() {
	c.samples.Store(0)
	c.noops.Store(0)
	c.errors.Store(0)
	c.excluded.Store(0)
	c.totalMetric.Store(0)
	c.lastMetric.Store(0)
	c.lastUsec.Store(0)
}

// sampleContext Sampler 的 SampleContext 实现
type sampleContext struct {
	s *Sampler
}

func (c sampleContext) Server() mbean.Server          { return c.s.server }
func (c sampleContext) SampleCount() int64            { return c.s.counters.samples.Load() }
func (c sampleContext) NoopCount() int64              { return c.s.counters.noops.Load() }
func (c sampleContext) TotalErrorCount() int64        { return c.s.counters.errors.Load() }
func (c sampleContext) ExcludedAttributeCount() int64 { return c.s.counters.excluded.Load() }
func (c sampleContext) TotalActionCount() int64       { return c.s.rules.Fired() }
func (c sampleContext) TotalMetricCount() int64       { return c.s.counters.totalMetric.Load() }
func (c sampleContext) LastMetricCount() int64        { return c.s.counters.lastMetric.Load() }
func (c sampleContext) LastSampleUsec() int64         { return c.s.counters.lastUsec.Load() }
func (c sampleContext) ObjectCount() int              { return c.s.registry.Len() }
func (c sampleContext) ConditionCount() int           { return c.s.rules.Len() }
func (c sampleContext) ListenerCount() int            { return c.s.listeners.len() }
func (c sampleContext) LastError() error              { return c.s.lastError() }

func (c sampleContext) Stats() Stats {
	st := Stats{
		NoopCount:        c.NoopCount(),
		SampleCount:      c.SampleCount(),
		TotalErrorCount:  c.TotalErrorCount(),
		TotalExcludeCnt:  c.ExcludedAttributeCount(),
		ObjectCount:      c.ObjectCount(),
		ConditionCount:   c.ConditionCount(),
		ListenerCount:    c.ListenerCount(),
		TotalActionCount: c.TotalActionCount(),
		TotalMetricCount: c.TotalMetricCount(),
		LastMetricCount:  c.LastMetricCount(),
		SampleTimeUsec:   c.LastSampleUsec(),
	}
	if err := c.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
