package registers

import (
	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/collector"
	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/metrics"
)

type Module struct {
	Enabled bool
	Name    string
	NewFunc func() Collector
}

// RegisterCollectors 采集器注册统一入口：开关控制，新增采集器只需在 modules 列表添加一条。
// 没有启用任何采集器是合法的，此时只采样外部注册到 server 的对象。
func RegisterCollectors(agent Agent, cfg *config.SamplerConfig, server *mbean.MemoryServer, factory *metrics.MetricFactory, log *zap.Logger) []Collector {
	if log == nil {
		log = zap.NewNop()
	}
	var collectorMetrics = factory.NewCollectorMetrics()

	modules := []Module{
		{
			Enabled: cfg.Host.Enable,
			Name:    "host",
			NewFunc: func() Collector {
				return collector.NewHostCollector(&cfg.Host, server, collector.DefaultSource(), collectorMetrics, log.Named("host"))
			},
		},
	}

	var registered []Collector
	for _, m := range modules {
		if !m.Enabled {
			log.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		c := m.NewFunc()
		agent.Register(c)
		registered = append(registered, c)
		log.Debug("registered collector", zap.String("name", m.Name))
	}

	names := make([]string, 0, len(registered))
	for _, c := range registered {
		names = append(names, c.Name())
	}
	log.Debug("all enabled collectors registered", zap.Strings("enabled_collectors", names))
	return registered
}
