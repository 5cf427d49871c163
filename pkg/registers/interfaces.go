package registers

import (
	"context"

	"github.com/attr-sampler/pkg/sampler"
)

// Agent 顶层调度接口（采集器刷新 + 采样周期 + 结果分发）
type Agent interface {
	Register(collector Collector)       // 注册采集器
	AddSink(sink Sink)                  // 注册周期结果接收方
	Start(ctx context.Context) error    // 启动定时循环
	Shutdown(ctx context.Context) error // 优雅停止
}

// Collector 受管对象提供者（每个周期采样前刷新）
type Collector interface {
	Name() string                      // 采集器名称（唯一标识）
	Init() error                       // 初始化（注册对象、预检查资源）
	Collect(ctx context.Context) error // 刷新数据
	Close() error                      // 关闭（注销对象）
}

// Handler 周期处理器，由 sampler.Sampler 实现
type Handler interface {
	OnCycleBegin(a *sampler.Activity)
	OnCycleEnd(a *sampler.Activity)
}

// Sink 接收每个已结束的周期
type Sink interface {
	Publish(ctx context.Context, a *sampler.Activity) error
}

// Drainer 阻塞直到已入队的对象注册/注销通知全部送达
type Drainer interface {
	Drain()
}
