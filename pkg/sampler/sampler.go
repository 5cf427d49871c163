// Package sampler 周期性采样受管对象属性，并将每个值依次交给规则引擎与监听器链，
// 最终汇总为带时间戳的快照。
//
// Sampler 自身不启动任何 goroutine：周期由调度方通过 OnCycleBegin / OnCycleEnd 驱动，
// 对象增删由服务端的通知投递 goroutine 异步写入注册表。
package sampler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/filter"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
)

// Options Sampler 配置
type Options struct {
	// Include 以 ';' 分隔的包含模式
	Include string
	// Exclude 以 ';' 分隔的排除模式
	Exclude string
	// TypePolicy 为空时使用 ScalarTypes
	TypePolicy TypePolicy
	Logger     *zap.Logger
}

type exclusionKey struct {
	object    string
	attribute string
}

// Sampler 采样周期编排器
type Sampler struct {
	server mbean.Server
	filter *filter.Filter
	policy TypePolicy
	log    *zap.Logger

	registry  *Registry
	rules     *RuleEngine
	listeners dispatch
	counters  counters
	ctx       sampleContext

	cycleMu sync.Mutex

	exclMu   sync.RWMutex
	excluded map[exclusionKey]struct{}

	errMu   sync.Mutex
	lastErr error

	subMu       sync.Mutex
	unsubscribe func()
	closed      bool
}

// New 创建 Sampler；过滤模式非法时返回错误
func New(server mbean.Server, opts Options) (*Sampler, error) {
	if server == nil {
		return nil, ErrNilServer
	}
	f, err := filter.New(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	policy := opts.TypePolicy
	if policy == nil {
		policy = ScalarTypes
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sampler{
		server:   server,
		filter:   f,
		policy:   policy,
		log:      log,
		registry: NewRegistry(),
		rules:    NewRuleEngine(),
		excluded: make(map[exclusionKey]struct{}),
	}
	s.ctx = sampleContext{s: s}
	return s, nil
}

// Context 返回统计视图
func (s *Sampler) Context() SampleContext { return s.ctx }

func (s *Sampler) Registry() *Registry    { return s.registry }
func (s *Sampler) Filter() *filter.Filter { return s.filter }
func (s *Sampler) Rules() *RuleEngine     { return s.rules }
func (s *Sampler) Server() mbean.Server   { return s.server }
func (s *Sampler) TypePolicy() TypePolicy { return s.policy }
func (s *Sampler) Logger() *zap.Logger    { return s.log }
func (s *Sampler) LastError() error       { return s.lastError() }
func (s *Sampler) Stats() Stats           { return s.ctx.Stats() }

func (s *Sampler) String() string { return "sampler(" + s.filter.String() + ")" }

// ObjectNames 当前注册表中的对象名
func (s *Sampler) ObjectNames() []objectname.Name { return s.registry.Names() }

// Register 注册规则，action 为 nil 时绑定 NoopAction
func (s *Sampler) Register(cond Condition, action Action) *Sampler {
	s.rules.Register(cond, action)
	return s
}

// AddListener 追加监听器
func (s *Sampler) AddListener(l Listener) *Sampler {
	s.listeners.add(l)
	return s
}

// RemoveListener 移除第一个相同的监听器
func (s *Sampler) RemoveListener(l Listener) bool {
	return s.listeners.remove(l)
}

// IsExcluded 属性是否已被永久排除；不持有周期锁，可在监听器和动作中调用
func (s *Sampler) IsExcluded(name objectname.Name, attribute string) bool {
	return s.isExcluded(exclusionKey{object: name.Canonical(), attribute: attribute})
}

func (s *Sampler) isExcluded(key exclusionKey) bool {
	s.exclMu.RLock()
	defer s.exclMu.RUnlock()
	_, ok := s.excluded[key]
	return ok
}

// OnCycleBegin 周期开始：清除上次错误、广播 pre(cycle)，注册表为空时执行发现
func (s *Sampler) OnCycleBegin(a *Activity) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.setLastError(nil)
	if err := guard(func() error { return s.listeners.preCycle(s.ctx, a) }); err != nil {
		s.doError(fmt.Errorf("%w: pre-cycle: %w", ErrListener, err))
	}
	if a.IsNoop() {
		s.counters.noops.Add(1)
		return
	}
	if s.registry.Len() == 0 {
		if err := guard(s.discover); err != nil {
			s.doError(err)
		}
	}
}

// OnCycleEnd 周期结束：采样全部对象、更新计数、广播 post(cycle) 并附加统计快照
func (s *Sampler) OnCycleEnd(a *Activity) {
	if a.IsNoop() {
		return
	}
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if err := guard(func() error { return s.endCycle(a) }); err != nil {
		s.doError(fmt.Errorf("%w: %w", ErrCycle, err))
	}
}

// ResetCounters 清零除实时数量外的全部计数
func (s *Sampler) ResetCounters() SampleContext {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.counters.reset()
	s.rules.ResetFired()
	s.setLastError(nil)
	return s.ctx
}

// HandleNotification 处理对象注册/注销通知，不持有周期锁
func (s *Sampler) HandleNotification(n mbean.Notification) {
	switch n.Type {
	case mbean.Registered:
		if !s.filter.Included(n.Name) {
			return
		}
		attrs, err := s.server.Attributes(n.Name)
		if errors.Is(err, mbean.ErrInstanceNotFound) {
			s.log.Debug("object vanished before registration was handled", zap.Stringer("object", n.Name))
			return
		}
		if err != nil {
			s.doError(fmt.Errorf("%w: attributes of %s: %w", ErrDiscovery, n.Name, err))
			return
		}
		// 发现流程已写入的对象不重复广播 register
		existed := s.registry.Contains(n.Name)
		s.registry.Put(n.Name, attrs)
		if existed {
			return
		}
		if err := guard(func() error { return s.listeners.register(s.ctx, n.Name) }); err != nil {
			s.doError(fmt.Errorf("%w: register %s: %w", ErrListener, n.Name, err))
		}
	case mbean.Unregistered:
		s.registry.Remove(n.Name)
		if err := guard(func() error { return s.listeners.unregister(s.ctx, n.Name) }); err != nil {
			s.doError(fmt.Errorf("%w: unregister %s: %w", ErrListener, n.Name, err))
		}
	}
}

// Close 取消生命周期订阅，之后不再重新订阅
func (s *Sampler) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	return nil
}

func (s *Sampler) listenForChanges() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.unsubscribe != nil || s.closed {
		return nil
	}
	unsubscribe, err := s.server.Subscribe(s.HandleNotification)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	s.unsubscribe = unsubscribe
	return nil
}

// discover 遇到第一个错误即停止，注册表仍为空时下个周期会重试
func (s *Sampler) discover() error {
	if err := s.listenForChanges(); err != nil {
		return err
	}
	s.registry.beginDiscovery()
	defer s.registry.endDiscovery()

	found := 0
	for _, pattern := range s.filter.Includes() {
		names, err := s.server.QueryNames(pattern)
		if err != nil {
			return fmt.Errorf("%w: query %s: %w", ErrDiscovery, pattern, err)
		}
		for _, name := range names {
			if s.filter.Excluded(name) || s.registry.Contains(name) {
				continue
			}
			attrs, err := s.server.Attributes(name)
			if errors.Is(err, mbean.ErrInstanceNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: attributes of %s: %w", ErrDiscovery, name, err)
			}
			if !s.registry.putDiscovered(name, attrs) {
				continue
			}
			found++
			if err := s.listeners.register(s.ctx, name); err != nil {
				return fmt.Errorf("%w: register %s: %w", ErrListener, name, err)
			}
		}
	}
	s.log.Debug("discovery finished", zap.Int("found", found), zap.Int("objects", s.registry.Len()))
	return nil
}

func (s *Sampler) endCycle(a *Activity) error {
	start := time.Now()
	s.counters.samples.Add(1)

	var metrics int64
	for _, e := range s.registry.Entries() {
		if !s.registry.Contains(e.Name) {
			continue
		}
		metrics += s.sampleObject(a, e)
	}

	s.counters.lastMetric.Store(metrics)
	s.counters.totalMetric.Add(metrics)
	s.counters.lastUsec.Store(time.Since(start).Microseconds())

	if err := s.listeners.postCycle(s.ctx, a); err != nil {
		return fmt.Errorf("%w: post-cycle: %w", ErrListener, err)
	}
	if a.IsNoop() {
		s.counters.noops.Add(1)
	}
	a.AddSnapshot(s.statsSnapshot(a))
	return nil
}

func (s *Sampler) sampleObject(a *Activity, e Entry) int64 {
	snap := NewSnapshot(e.Name.Domain(), e.Name.Canonical())
	for _, info := range e.Attributes {
		if !info.Readable {
			continue
		}
		key := exclusionKey{object: e.Name.Canonical(), attribute: info.Name}
		if s.isExcluded(key) {
			continue
		}

		sample := newAttributeSample(a, snap, s.server, e.Name, info)
		if s.sampleAttribute(sample, key) {
			// 对象已注销但通知尚未送达：移出注册表，不计错误也不排除
			s.registry.Remove(e.Name)
			s.log.Debug("object vanished during sampling", zap.Stringer("object", e.Name))
			return 0
		}
		if sample.ExcludeNext() {
			s.counters.excluded.Add(1)
		}
		_, errs := s.rules.Evaluate(s.ctx, sample)
		for _, err := range errs {
			s.doError(fmt.Errorf("%w: %s.%s: %w", ErrRule, e.Name, info.Name, err))
		}
	}
	a.AddSnapshot(snap)
	return int64(snap.Size())
}

// sampleAttribute 返回 true 表示对象已不存在
func (s *Sampler) sampleAttribute(sample *AttributeSample, key exclusionKey) bool {
	var proceed bool
	err := guard(func() error {
		var err error
		proceed, err = s.listeners.preSample(s.ctx, sample)
		return err
	})
	if err != nil {
		s.doSampleError(sample, key, fmt.Errorf("%w: pre-sample %s.%s: %w", ErrListener, key.object, key.attribute, err))
		return false
	}
	if !proceed {
		return false
	}

	if err := guard(sample.read); err != nil {
		if errors.Is(err, mbean.ErrInstanceNotFound) {
			return true
		}
		s.doSampleError(sample, key, fmt.Errorf("%w: %s.%s: %w", ErrAttribute, key.object, key.attribute, err))
		return false
	}
	if _, err := Flatten(sample.snapshot, sample.info.Name, sample.value, s.policy); err != nil {
		s.doSampleError(sample, key, fmt.Errorf("%w: %s.%s: %w", ErrAttribute, key.object, key.attribute, err))
		return false
	}
	if err := guard(func() error { return s.listeners.postSample(s.ctx, sample) }); err != nil {
		s.doSampleError(sample, key, fmt.Errorf("%w: post-sample %s.%s: %w", ErrListener, key.object, key.attribute, err))
	}
	return false
}

func (s *Sampler) statsSnapshot(a *Activity) *Snapshot {
	snap := NewSnapshot(a.Name(), StatsSnapshotName)
	for _, p := range s.ctx.Stats().Properties() {
		snap.Add(p.Key, p.Value)
	}
	custom := make(map[string]any)
	s.listeners.stats(s.ctx, custom)
	keys := make([]string, 0, len(custom))
	for k := range custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		snap.Add(k, custom[k])
	}
	return snap
}

func (s *Sampler) doSampleError(sample *AttributeSample, key exclusionKey, err error) {
	s.counters.errors.Add(1)
	sample.setError(err)
	s.setLastError(err)
	s.exclMu.Lock()
	s.excluded[key] = struct{}{}
	s.exclMu.Unlock()
	if perr := guard(func() error { s.listeners.sampleError(s.ctx, sample); return nil }); perr != nil {
		s.log.Warn("sample error listener failed", zap.Error(perr))
	}
}

func (s *Sampler) doError(err error) {
	s.counters.errors.Add(1)
	s.setLastError(err)
	if perr := guard(func() error { s.listeners.error(s.ctx, err); return nil }); perr != nil {
		s.log.Warn("error listener failed", zap.Error(perr), zap.NamedError("cause", err))
	}
}

func (s *Sampler) setLastError(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

func (s *Sampler) lastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// guard 将 fn 中的 panic 转换为 error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverError(r)
		}
	}()
	return fn()
}
