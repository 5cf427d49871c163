package sampler

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Activity 一次采样周期的跟踪对象，由调度方创建并依次传给 OnCycleBegin / OnCycleEnd
type Activity struct {
	id      string
	name    string
	started time.Time
	noop    atomic.Bool

	mu        sync.Mutex
	stopped   time.Time
	snapshots []*Snapshot
}

func NewActivity(name string) *Activity {
	return &Activity{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
	}
}

func (a *Activity) ID() string           { return a.id }
func (a *Activity) Name() string         { return a.name }
func (a *Activity) StartTime() time.Time { return a.started }

// IsNoop 空转周期不读取任何属性
func (a *Activity) IsNoop() bool { return a.noop.Load() }

func (a *Activity) SetNoop(noop bool) { a.noop.Store(noop) }

// AddSnapshot 追加快照；空快照忽略
func (a *Activity) AddSnapshot(s *Snapshot) {
	if s == nil || s.Size() == 0 {
		return
	}
	a.mu.Lock()
	a.snapshots = append(a.snapshots, s)
	a.mu.Unlock()
}

// Snapshots 返回快照副本，顺序与添加顺序一致
func (a *Activity) Snapshots() []*Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Snapshot(nil), a.snapshots...)
}

// Snapshot 按名称查找快照
func (a *Activity) Snapshot(name string) *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.snapshots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Stop 记录结束时间，重复调用以第一次为准
func (a *Activity) Stop() {
	a.mu.Lock()
	if a.stopped.IsZero() {
		a.stopped = time.Now()
	}
	a.mu.Unlock()
}

// Elapsed 周期耗时；未结束时返回到当前时刻的耗时
func (a *Activity) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped.IsZero() {
		return time.Since(a.started)
	}
	return a.stopped.Sub(a.started)
}

type activityJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Noop        bool        `json:"noop"`
	Start       time.Time   `json:"start"`
	ElapsedUsec int64       `json:"elapsed_usec"`
	Snapshots   []*Snapshot `json:"snapshots"`
}

func (a *Activity) MarshalJSON() ([]byte, error) {
	return json.Marshal(activityJSON{
		ID:          a.id,
		Name:        a.name,
		Noop:        a.IsNoop(),
		Start:       a.started,
		ElapsedUsec: a.Elapsed().Microseconds(),
		Snapshots:   a.Snapshots(),
	})
}
