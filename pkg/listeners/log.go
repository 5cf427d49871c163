// Package listeners 常用的 Sampler 监听器。
package listeners

import (
	"time"

	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

// LogListener 把采样生命周期写入 zap 日志
type LogListener struct {
	sampler.BaseListener
	log *zap.Logger
	// SummaryLevel 周期摘要的日志级别，默认 debug
	SummaryLevel zap.AtomicLevel
}

func NewLogListener(log *zap.Logger) *LogListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogListener{log: log, SummaryLevel: zap.NewAtomicLevelAt(zap.DebugLevel)}
}

func (l *LogListener) PostCycle(sc sampler.SampleContext, a *sampler.Activity) error {
	if ce := l.log.Check(l.SummaryLevel.Level(), "sample cycle finished"); ce != nil {
		ce.Write(
			zap.String("activity", a.ID()),
			zap.Bool("noop", a.IsNoop()),
			zap.Int64("metrics", sc.LastMetricCount()),
			zap.Int("objects", sc.ObjectCount()),
			zap.Int64("errors", sc.TotalErrorCount()),
			zap.Duration("elapsed", time.Duration(sc.LastSampleUsec())*time.Microsecond),
		)
	}
	return nil
}

func (l *LogListener) SampleError(_ sampler.SampleContext, s *sampler.AttributeSample) {
	l.log.Warn("attribute sample failed",
		zap.Stringer("object", s.ObjectName()),
		zap.String("attribute", s.Attribute()),
		zap.Bool("exclude_next", s.ExcludeNext()),
		zap.Error(s.Err()),
	)
}

func (l *LogListener) Error(_ sampler.SampleContext, err error) {
	l.log.Error("sampler error", zap.Error(err))
}

func (l *LogListener) Register(_ sampler.SampleContext, name objectname.Name) error {
	l.log.Info("managed object registered", zap.Stringer("object", name))
	return nil
}

func (l *LogListener) Unregister(_ sampler.SampleContext, name objectname.Name) error {
	l.log.Info("managed object unregistered", zap.Stringer("object", name))
	return nil
}
