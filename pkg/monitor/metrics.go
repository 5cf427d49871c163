package monitor

import "github.com/prometheus/client_golang/prometheus"

// -------------------------- 采样周期指标结构体 --------------------------
type SamplerMetrics struct {
	CycleDuration prometheus.Histogram   // 周期耗时（秒）
	Cycles        *prometheus.CounterVec // 周期数，result=sampled|noop
	Errors        *prometheus.CounterVec // 错误数，kind=attribute|cycle
	Excluded      prometheus.Counter     // 被跳过的属性数（累计）
	Objects       prometheus.Gauge       // 注册表中的对象数
	LastMetrics   prometheus.Gauge       // 最近一个周期写入快照的属性数
	ObjectEvents  *prometheus.CounterVec // 对象注册/注销事件，event=register|unregister
}

// -------------------------- 规则动作指标结构体 --------------------------
type RuleMetrics struct {
	Matches *prometheus.CounterVec // 规则命中次数，rule=<name>
}

// -------------------------- 主机对象刷新指标结构体 --------------------------
type CollectorMetrics struct {
	Duration *prometheus.HistogramVec // 刷新耗时，collector=<name>
	Errors   *prometheus.CounterVec   // 刷新错误，collector=<name>
}
