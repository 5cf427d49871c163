package sampler

import (
	"encoding/json"
	"time"
)

// StatsSnapshotName 每个周期结束时统计快照的保留名称
const StatsSnapshotName = "SampleContext"

// Property 快照中的一个键值
type Property struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Snapshot 有序属性集合，Category 为对象域或活动名，Name 为规范对象名或 StatsSnapshotName。
// 周期内由采样 goroutine 独占写入，周期结束后只读。
type Snapshot struct {
	Category string
	Name     string
	Time     time.Time

	props []Property
	index map[string]int
}

func NewSnapshot(category, name string) *Snapshot {
	return &Snapshot{
		Category: category,
		Name:     name,
		Time:     time.Now(),
		index:    make(map[string]int),
	}
}

// Add 追加属性；key 已存在时原位覆盖
func (s *Snapshot) Add(key string, value any) {
	if i, ok := s.index[key]; ok {
		s.props[i].Value = value
		return
	}
	s.index[key] = len(s.props)
	s.props = append(s.props, Property{Key: key, Value: value})
}

func (s *Snapshot) Get(key string) (any, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.props[i].Value, true
}

func (s *Snapshot) Size() int { return len(s.props) }

// Properties 返回属性副本
func (s *Snapshot) Properties() []Property {
	return append([]Property(nil), s.props...)
}

type snapshotJSON struct {
	Category   string     `json:"category"`
	Name       string     `json:"name"`
	Time       time.Time  `json:"time"`
	Properties []Property `json:"properties"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Category:   s.Category,
		Name:       s.Name,
		Time:       s.Time,
		Properties: s.props,
	})
}
