package registers

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/listeners"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/metrics"
	"github.com/attr-sampler/pkg/rules"
	"github.com/attr-sampler/pkg/sampler"
)

// Runtime 组装好的采样运行时
//
// Registry   Prometheus 注册器，/metrics 暴露
// Server     受管对象服务器，采集器在其中注册主机对象
// Sampler    采样周期编排器
// Agent      定时调度器
// Attributes 把最近一次采样值导出为 Prometheus 指标
type Runtime struct {
	Registry   *prometheus.Registry
	Server     *mbean.MemoryServer
	Sampler    *sampler.Sampler
	Agent      *AgentImpl
	Attributes *metrics.AttributeCollector
	Collectors []Collector
}

// TypePolicy 配置值到类型策略的映射
func TypePolicy(name string) (sampler.TypePolicy, error) {
	switch name {
	case "", "scalar":
		return sampler.ScalarTypes, nil
	case "any":
		return sampler.AnyType, nil
	}
	return nil, fmt.Errorf("unknown type policy %q", name)
}

// NewRuntime 根据配置组装运行时，不启动调度
func NewRuntime(cfg *config.Config, log *zap.Logger, enableProcess bool) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	policy, err := TypePolicy(cfg.Sampler.TypePolicy)
	if err != nil {
		return nil, err
	}

	promReg := metrics.NewRegistry(enableProcess)
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))
	server := mbean.NewMemoryServer()

	s, err := sampler.New(server, sampler.Options{
		Include:    cfg.Sampler.Include,
		Exclude:    cfg.Sampler.Exclude,
		TypePolicy: policy,
		Logger:     log.Named("sampler"),
	})
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	s.AddListener(listeners.NewLogListener(log.Named("listener"))).
		AddListener(metrics.NewSamplerListener(factory.NewSamplerMetrics()))

	built, err := rules.Build(cfg.Sampler.Rules, log.Named("rules"), factory.NewRuleMetrics())
	if err != nil {
		_ = s.Close()
		server.Close()
		return nil, fmt.Errorf("build rules: %w", err)
	}
	rules.Install(s, built)

	agent, err := NewAgent(cfg.Sampler.Name, cfg.Sampler.Interval, s, log.Named("agent"))
	if err != nil {
		_ = s.Close()
		server.Close()
		return nil, err
	}

	attrs := metrics.NewAttributeCollector()
	promReg.MustRegister(attrs)
	agent.SetDrainer(server)
	agent.AddSink(attrs)

	collectors := RegisterCollectors(agent, &cfg.Sampler, server, factory, log)

	log.Debug("runtime assembled",
		zap.String("filter", s.Filter().String()),
		zap.Int("rules", len(built)),
		zap.Int("collectors", len(collectors)))

	return &Runtime{
		Registry:   promReg,
		Server:     server,
		Sampler:    s,
		Agent:      agent,
		Attributes: attrs,
		Collectors: collectors,
	}, nil
}

// Shutdown 依次停止调度、关闭 Sampler 与对象服务器
func (r *Runtime) Shutdown(ctx context.Context) error {
	agentErr := r.Agent.Shutdown(ctx)
	samplerErr := r.Sampler.Close()
	r.Server.Close()
	return errors.Join(agentErr, samplerErr)
}
