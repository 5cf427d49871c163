package registers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/sampler"
)

var (
	ErrAlreadyStarted = errors.New("agent already started")
	ErrNilHandler     = errors.New("agent handler is nil")
)

// AgentImpl 实现 registers.Agent 接口：按固定间隔刷新采集器并驱动一次采样周期
type AgentImpl struct {
	name       string
	handler    Handler
	collectors []Collector
	sinks      []Sink
	drainer    Drainer
	interval   time.Duration
	log        *zap.Logger

	mu      sync.Mutex
	cycleMu sync.Mutex
	started bool
	paused  atomic.Bool
	last    atomic.Pointer[sampler.Activity]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAgent 创建调度器
func NewAgent(name string, interval time.Duration, handler Handler, log *zap.Logger) (*AgentImpl, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive (got %v)", interval)
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AgentImpl{
		name:     name,
		handler:  handler,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Register 注册采集器
func (r *AgentImpl) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, c)
}

// SetDrainer 采集完成后、周期开始前等待通知投递，使注册表反映采集器本轮的对象变更
func (r *AgentImpl) SetDrainer(d Drainer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainer = d
}

// AddSink 注册周期结果接收方
func (r *AgentImpl) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Collectors 返回已注册采集器的副本
func (r *AgentImpl) Collectors() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Collector(nil), r.collectors...)
}

// InitAll 依次初始化采集器，任一失败即返回
func (r *AgentImpl) InitAll() error {
	for _, coll := range r.Collectors() {
		if err := coll.Init(); err != nil {
			return fmt.Errorf("collector %s init failed: %w", coll.Name(), err)
		}
		r.log.Debug("collector initialized successfully", zap.String("name", coll.Name()))
	}
	return nil
}

// Start 初始化采集器并启动定时循环（非阻塞）；首个周期立即执行
func (r *AgentImpl) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	if err := r.InitAll(); err != nil {
		close(r.done)
		return err
	}

	ticker := time.NewTicker(r.interval)
	r.log.Info("agent started",
		zap.String("name", r.name),
		zap.Duration("interval", r.interval),
		zap.Int("collectors", len(r.Collectors())))

	go func() {
		defer close(r.done)
		defer ticker.Stop()

		r.RunCycle(ctx)
		for {
			select {
			case <-ticker.C:
				r.RunCycle(ctx)
			case <-ctx.Done(): // 外部上下文关闭
				r.log.Info("agent stopped by external context", zap.String("name", r.name), zap.Error(ctx.Err()))
				return
			case <-r.ctx.Done(): // Shutdown
				r.log.Info("agent stopped by shutdown", zap.String("name", r.name))
				return
			}
		}
	}()
	return nil
}

// RunCycle 执行一次完整周期并返回结果；暂停期间的周期标记为 no-op，不刷新采集器。
// 周期串行执行，可与定时循环并发调用。
func (r *AgentImpl) RunCycle(ctx context.Context) *sampler.Activity {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	a := sampler.NewActivity(r.name)
	if r.paused.Load() {
		a.SetNoop(true)
	} else if err := r.CollectAll(ctx); err != nil {
		r.log.Warn("collection failed", zap.Error(err))
	}
	r.mu.Lock()
	drainer := r.drainer
	r.mu.Unlock()
	if drainer != nil && !a.IsNoop() {
		drainer.Drain()
	}

	r.handler.OnCycleBegin(a)
	r.handler.OnCycleEnd(a)
	a.Stop()
	r.last.Store(a)

	r.mu.Lock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()
	for _, s := range sinks {
		if err := s.Publish(ctx, a); err != nil {
			r.log.Warn("publish activity failed", zap.String("activity", a.ID()), zap.Error(err))
		}
	}
	r.log.Debug("cycle finished",
		zap.String("activity", a.ID()),
		zap.Bool("noop", a.IsNoop()),
		zap.Duration("elapsed", a.Elapsed()))
	return a
}

// Last 最近一次完成的周期，尚未执行时返回 nil
func (r *AgentImpl) Last() *sampler.Activity { return r.last.Load() }

// Pause 暂停采样，周期仍按时触发但标记为 no-op
func (r *AgentImpl) Pause() { r.paused.Store(true) }

// Resume 恢复采样
func (r *AgentImpl) Resume() { r.paused.Store(false) }

// Paused 是否处于暂停状态
func (r *AgentImpl) Paused() bool { return r.paused.Load() }

// CollectAll 刷新所有采集器，单个失败不影响其余
func (r *AgentImpl) CollectAll(ctx context.Context) error {
	var errs []error
	for _, c := range r.Collectors() {
		if err := c.Collect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown 停止定时循环并关闭所有采集器；ctx 到期时不再等待循环退出
func (r *AgentImpl) Shutdown(ctx context.Context) error {
	r.log.Info("starting to shutdown agent", zap.String("name", r.name))
	r.cancel()

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		select {
		case <-r.done:
		case <-ctx.Done():
			return fmt.Errorf("wait for agent loop: %w", ctx.Err())
		}
	}
	return r.CloseAll()
}

// CloseAll 关闭所有采集器，返回最后一个错误
func (r *AgentImpl) CloseAll() error {
	var lastErr error
	for _, c := range r.Collectors() {
		r.log.Debug("closing collector", zap.String("name", c.Name()))
		if err := c.Close(); err != nil {
			r.log.Error("failed to close collector", zap.String("name", c.Name()), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
