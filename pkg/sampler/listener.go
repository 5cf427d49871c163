package sampler

import (
	"sync"
	"sync/atomic"

	"github.com/attr-sampler/pkg/objectname"
)

// Listener 采样生命周期回调。
// 所有回调都在分发锁内按注册顺序执行，回调中不能调用 AddListener / RemoveListener。
type Listener interface {
	PreCycle(sc SampleContext, a *Activity) error
	PostCycle(sc SampleContext, a *Activity) error
	// PreSample 返回 false 表示本周期跳过该属性
	PreSample(sc SampleContext, s *AttributeSample) (bool, error)
	PostSample(sc SampleContext, s *AttributeSample) error
	SampleError(sc SampleContext, s *AttributeSample)
	Error(sc SampleContext, err error)
	Register(sc SampleContext, name objectname.Name) error
	Unregister(sc SampleContext, name objectname.Name) error
	// Stats 向周期统计快照追加自定义键值
	Stats(sc SampleContext, stats map[string]any)
}

// BaseListener 空实现，嵌入后只需覆盖关心的回调
type BaseListener struct{}

func (BaseListener) PreCycle(SampleContext, *Activity) error                 { return nil }
func (BaseListener) PostCycle(SampleContext, *Activity) error                { return nil }
func (BaseListener) PreSample(SampleContext, *AttributeSample) (bool, error) { return true, nil }
func (BaseListener) PostSample(SampleContext, *AttributeSample) error        { return nil }
func (BaseListener) SampleError(SampleContext, *AttributeSample)             {}
func (BaseListener) Error(SampleContext, error)                              {}
func (BaseListener) Register(SampleContext, objectname.Name) error           { return nil }
func (BaseListener) Unregister(SampleContext, objectname.Name) error         { return nil }
func (BaseListener) Stats(SampleContext, map[string]any)                     {}

// dispatch 监听器有序广播；count 单独维护，回调中读取 ListenerCount 不会重入锁
type dispatch struct {
	mu        sync.Mutex
	listeners []Listener
	count     atomic.Int32
}

func (d *dispatch) add(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
	d.count.Store(int32(len(d.listeners)))
}

func (d *dispatch) remove(l Listener) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.listeners {
		if sameValue(cur, l) {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			d.count.Store(int32(len(d.listeners)))
			return true
		}
	}
	return false
}

func (d *dispatch) len() int { return int(d.count.Load()) }

func (d *dispatch) preCycle(sc SampleContext, a *Activity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if err := l.PreCycle(sc, a); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatch) postCycle(sc SampleContext, a *Activity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if err := l.PostCycle(sc, a); err != nil {
			return err
		}
	}
	return nil
}

// preSample 所有监听器都会被调用；任一返回 false 即设置 exclude-next
func (d *dispatch) preSample(sc SampleContext, s *AttributeSample) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		ok, err := l.PreSample(sc, s)
		if err != nil {
			return false, err
		}
		if !ok {
			s.SetExcludeNext(true)
		}
	}
	return !s.ExcludeNext(), nil
}

func (d *dispatch) postSample(sc SampleContext, s *AttributeSample) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if err := l.PostSample(sc, s); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatch) sampleError(sc SampleContext, s *AttributeSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		l.SampleError(sc, s)
	}
}

func (d *dispatch) error(sc SampleContext, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		l.Error(sc, err)
	}
}

func (d *dispatch) register(sc SampleContext, name objectname.Name) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if err := l.Register(sc, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatch) unregister(sc SampleContext, name objectname.Name) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if err := l.Unregister(sc, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatch) stats(sc SampleContext, stats map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		l.Stats(sc, stats)
	}
}
