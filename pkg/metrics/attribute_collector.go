package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"

	"github.com/attr-sampler/pkg/sampler"
)

var attributeDesc = prometheus.NewDesc(
	"sampled_attribute_value",
	"Last sampled value of a numeric managed object attribute",
	[]string{"domain", "object", "attribute"},
	nil,
)

// AttributeCollector 将最近一次周期的快照以 Gauge 形式暴露；字符串与时间类属性不导出
type AttributeCollector struct {
	last atomic.Pointer[sampler.Activity]
}

func NewAttributeCollector() *AttributeCollector {
	return &AttributeCollector{}
}

// Publish 接收调度器完成的周期，noop 周期忽略
func (c *AttributeCollector) Publish(_ context.Context, a *sampler.Activity) error {
	if a == nil || a.IsNoop() {
		return nil
	}
	c.last.Store(a)
	return nil
}

func (c *AttributeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- attributeDesc
}

func (c *AttributeCollector) Collect(ch chan<- prometheus.Metric) {
	a := c.last.Load()
	if a == nil {
		return
	}
	for _, snap := range a.Snapshots() {
		if snap.Name == sampler.StatsSnapshotName {
			continue
		}
		for _, p := range snap.Properties() {
			v, ok := numeric(p.Value)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(attributeDesc, prometheus.GaugeValue, v, snap.Category, snap.Name, p.Key)
		}
	}
}

// numeric 布尔转 0/1，time.Duration 转秒
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case string, time.Time:
		return 0, false
	case time.Duration:
		return x.Seconds(), true
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
