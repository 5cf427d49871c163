package sampler

import (
	"sort"
	"sync"

	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
)

// Entry 注册表条目
type Entry struct {
	Name       objectname.Name
	Attributes []mbean.AttributeInfo
}

// Registry 对象名 → 属性元数据缓存，由发现流程与生命周期通知并发更新。
// 发现期间被注销的对象记录为墓碑，防止发现流程把已注销的对象重新写入。
type Registry struct {
	mu          sync.RWMutex
	entries     map[objectname.Name][]mbean.AttributeInfo
	discovering bool
	tombstones  map[objectname.Name]struct{}
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[objectname.Name][]mbean.AttributeInfo)}
}

// Put 写入或替换条目
func (r *Registry) Put(name objectname.Name, attrs []mbean.AttributeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = append([]mbean.AttributeInfo(nil), attrs...)
	delete(r.tombstones, name)
}

// Remove 删除条目，返回是否存在
func (r *Registry) Remove(name objectname.Name) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	if r.discovering {
		r.tombstones[name] = struct{}{}
	}
	return ok
}

func (r *Registry) Get(name objectname.Name) ([]mbean.AttributeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attrs, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return append([]mbean.AttributeInfo(nil), attrs...), true
}

func (r *Registry) Contains(name objectname.Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names 按规范名排序
func (r *Registry) Names() []objectname.Name {
	r.mu.RLock()
	out := make([]objectname.Name, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sortNames(out)
	return out
}

// Entries 拷贝当前全部条目，按规范名排序
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for name, attrs := range r.entries {
		out = append(out, Entry{Name: name, Attributes: append([]mbean.AttributeInfo(nil), attrs...)})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name.Canonical() < out[j].Name.Canonical() })
	return out
}

func (r *Registry) beginDiscovery() {
	r.mu.Lock()
	r.discovering = true
	r.tombstones = make(map[objectname.Name]struct{})
	r.mu.Unlock()
}

func (r *Registry) endDiscovery() {
	r.mu.Lock()
	r.discovering = false
	r.tombstones = nil
	r.mu.Unlock()
}

// putDiscovered 发现流程写入；本轮发现期间已注销、或已由通知写入的对象不再写入
func (r *Registry) putDiscovered(name objectname.Name, attrs []mbean.AttributeInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dead := r.tombstones[name]; dead {
		return false
	}
	if _, ok := r.entries[name]; ok {
		return false
	}
	r.entries[name] = append([]mbean.AttributeInfo(nil), attrs...)
	return true
}

func sortNames(names []objectname.Name) {
	sort.Slice(names, func(i, j int) bool { return names[i].Canonical() < names[j].Canonical() })
}
