package metrics

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// Registerer 返回底层注册器，供自定义 Collector 注册
func (f *MetricFactory) Registerer() Registers {
	return f.reg
}
