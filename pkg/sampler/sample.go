package sampler

import (
	"time"

	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
)

// AttributeSample 单个周期内对单个属性的一次采样
type AttributeSample struct {
	activity *Activity
	snapshot *Snapshot
	server   mbean.Server
	name     objectname.Name
	info     mbean.AttributeInfo

	value       any
	err         error
	sampled     bool
	excludeNext bool
	duration    time.Duration
}

func newAttributeSample(a *Activity, snap *Snapshot, server mbean.Server, name objectname.Name, info mbean.AttributeInfo) *AttributeSample {
	return &AttributeSample{
		activity: a,
		snapshot: snap,
		server:   server,
		name:     name,
		info:     info,
	}
}

func (s *AttributeSample) Activity() *Activity                { return s.activity }
func (s *AttributeSample) Snapshot() *Snapshot                { return s.snapshot }
func (s *AttributeSample) ObjectName() objectname.Name        { return s.name }
func (s *AttributeSample) AttributeInfo() mbean.AttributeInfo { return s.info }
func (s *AttributeSample) Attribute() string                  { return s.info.Name }

// Value 读取到的原始值，未读取或失败时为 nil
func (s *AttributeSample) Value() any { return s.value }

// Err 采样失败原因
func (s *AttributeSample) Err() error { return s.err }

// Sampled 本周期是否已成功读取
func (s *AttributeSample) Sampled() bool { return s.sampled }

// Duration 读取耗时
func (s *AttributeSample) Duration() time.Duration { return s.duration }

// ExcludeNext 本周期跳过读取；失败时同时表示后续周期不再采样
func (s *AttributeSample) ExcludeNext() bool { return s.excludeNext }

func (s *AttributeSample) SetExcludeNext(exclude bool) { s.excludeNext = exclude }

func (s *AttributeSample) read() error {
	start := time.Now()
	v, err := s.server.GetAttribute(s.name, s.info.Name)
	s.duration = time.Since(start)
	if err != nil {
		return err
	}
	s.value = v
	s.sampled = true
	return nil
}

func (s *AttributeSample) setError(err error) {
	s.err = err
	s.excludeNext = true
}
