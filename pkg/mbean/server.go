package mbean

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attr-sampler/pkg/objectname"
)

// MemoryServer 进程内受管对象服务端。
// 通知按注册/注销发生的顺序投递；每个订阅者独占一个投递 goroutine，队列无界，
// 因此回调中可以安全地回访服务端。
type MemoryServer struct {
	mu      sync.RWMutex
	beans   map[objectname.Name]Bean
	subs    map[uint64]*subscription
	nextSub uint64
	seq     uint64
	closed  bool
}

func NewMemoryServer() *MemoryServer {
	return &MemoryServer{
		beans: make(map[objectname.Name]Bean),
		subs:  make(map[uint64]*subscription),
	}
}

// Register 注册受管对象
func (s *MemoryServer) Register(name objectname.Name, bean Bean) error {
	if name.IsZero() || name.IsPattern() {
		return fmt.Errorf("%w: %q", ErrPatternName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if _, ok := s.beans[name]; ok {
		return fmt.Errorf("%w: %s", ErrInstanceAlreadyExists, name)
	}
	s.beans[name] = bean
	s.publishLocked(Registered, name)
	return nil
}

// Unregister 注销受管对象
func (s *MemoryServer) Unregister(name objectname.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beans[name]; !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	delete(s.beans, name)
	s.publishLocked(Unregistered, name)
	return nil
}

// IsRegistered 对象是否存在
func (s *MemoryServer) IsRegistered(name objectname.Name) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.beans[name]
	return ok
}

// Count 已注册对象数量
func (s *MemoryServer) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.beans)
}

func (s *MemoryServer) QueryNames(pattern objectname.Name) ([]objectname.Name, error) {
	s.mu.RLock()
	out := make([]objectname.Name, 0, len(s.beans))
	for name := range s.beans {
		if pattern.IsZero() || pattern.Apply(name) {
			out = append(out, name)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical() < out[j].Canonical() })
	return out, nil
}

func (s *MemoryServer) Attributes(name objectname.Name) ([]AttributeInfo, error) {
	bean, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	infos := bean.Attributes()
	for i := range infos {
		infos[i].Owner = name
	}
	return infos, nil
}

func (s *MemoryServer) GetAttribute(name objectname.Name, attribute string) (any, error) {
	bean, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	found := false
	for _, info := range bean.Attributes() {
		if info.Name != attribute {
			continue
		}
		if !info.Readable {
			return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotReadable, name, attribute)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, name, attribute)
	}
	return bean.GetAttribute(attribute)
}

func (s *MemoryServer) lookup(name objectname.Name) (Bean, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bean, ok := s.beans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	return bean, nil
}

func (s *MemoryServer) Subscribe(handler NotificationHandler) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("mbean: nil notification handler")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	id := s.nextSub
	s.nextSub++
	sub := newSubscription(handler)
	s.subs[id] = sub
	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}, nil
}

// Drain 阻塞直到所有已入队的通知都已投递完毕
func (s *MemoryServer) Drain() {
	s.mu.RLock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()
	for _, sub := range subs {
		sub.waitIdle()
	}
}

// Close 停止所有投递 goroutine，之后的 Register/Subscribe 返回 ErrServerClosed。
// 不可在通知回调中调用。
func (s *MemoryServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[uint64]*subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
		<-sub.done
	}
}

func (s *MemoryServer) publishLocked(typ NotificationType, name objectname.Name) {
	s.seq++
	n := Notification{Type: typ, Name: name, Sequence: s.seq, Time: time.Now()}
	for _, sub := range s.subs {
		sub.push(n)
	}
}

type subscription struct {
	handler NotificationHandler
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Notification
	busy    bool
	closed  bool
	done    chan struct{}
}

func newSubscription(handler NotificationHandler) *subscription {
	sub := &subscription{handler: handler, done: make(chan struct{})}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (sub *subscription) push(n Notification) {
	sub.mu.Lock()
	if !sub.closed {
		sub.queue = append(sub.queue, n)
		sub.cond.Broadcast()
	}
	sub.mu.Unlock()
}

func (sub *subscription) run() {
	defer close(sub.done)
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.cond.Wait()
		}
		if sub.closed {
			sub.queue = nil
			sub.cond.Broadcast()
			sub.mu.Unlock()
			return
		}
		n := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.busy = true
		sub.mu.Unlock()

		sub.deliver(n)

		sub.mu.Lock()
		sub.busy = false
		sub.cond.Broadcast()
		sub.mu.Unlock()
	}
}

func (sub *subscription) deliver(n Notification) {
	// 回调 panic 不能终止投递 goroutine
	defer func() { _ = recover() }()
	sub.handler(n)
}

func (sub *subscription) stop() {
	sub.mu.Lock()
	sub.closed = true
	sub.cond.Broadcast()
	sub.mu.Unlock()
}

func (sub *subscription) waitIdle() {
	sub.mu.Lock()
	for (len(sub.queue) > 0 || sub.busy) && !sub.closed {
		sub.cond.Wait()
	}
	sub.mu.Unlock()
}
