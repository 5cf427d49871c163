// Package rules 由配置构造的条件与动作。
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/monitor"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

// Op 比较运算符
type Op string

const (
	GT      Op = ">"
	GE      Op = ">="
	LT      Op = "<"
	LE      Op = "<="
	EQ      Op = "=="
	NE      Op = "!="
	OpError Op = "error"
)

var (
	ErrUnknownOp     = errors.New("unknown rule operator")
	ErrUnknownAction = errors.New("unknown rule action")
)

// target 对象模式 + 属性名；属性名可用 '\' 指向结构化值内部
type target struct {
	object    objectname.Name
	attribute string
}

func (t target) matches(s *sampler.AttributeSample) bool {
	if !t.object.Apply(s.ObjectName()) {
		return false
	}
	if t.attribute == "" {
		return true
	}
	head, _, _ := strings.Cut(t.attribute, sampler.PropertySeparator)
	return head == s.Attribute()
}

// value 取出属性名指向的值，结构化值逐级展开
func (t target) value(s *sampler.AttributeSample) (any, bool) {
	v := s.Value()
	if t.attribute == "" {
		return v, v != nil
	}
	parts := strings.Split(t.attribute, sampler.PropertySeparator)
	for _, key := range parts[1:] {
		cd, ok := v.(mbean.CompositeData)
		if !ok {
			return nil, false
		}
		v = cd.Get(key)
	}
	return v, v != nil
}

// ThresholdCondition 数值比较；== 与 != 在任一侧非数值时按字符串比较
type ThresholdCondition struct {
	target
	Name  string
	Op    Op
	raw   string
	num   float64
	isNum bool
}

// NewThreshold 创建阈值条件
func NewThreshold(name string, object objectname.Name, attribute string, op Op, value string) (*ThresholdCondition, error) {
	switch op {
	case GT, GE, LT, LE, EQ, NE:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	c := &ThresholdCondition{
		target: target{object: object, attribute: attribute},
		Name:   name,
		Op:     op,
		raw:    value,
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		c.num, c.isNum = f, true
	} else if op != EQ && op != NE {
		return nil, fmt.Errorf("rule %s: op %s requires a numeric value, got %q", name, op, value)
	}
	return c, nil
}

func (c *ThresholdCondition) Evaluate(s *sampler.AttributeSample) bool {
	if s.Err() != nil || !s.Sampled() || !c.matches(s) {
		return false
	}
	v, ok := c.value(s)
	if !ok {
		return false
	}
	if c.isNum {
		if f, err := cast.ToFloat64E(v); err == nil {
			return compare(c.Op, f, c.num)
		}
	}
	switch c.Op {
	case EQ:
		return cast.ToString(v) == c.raw
	case NE:
		return cast.ToString(v) != c.raw
	}
	return false
}

func (c *ThresholdCondition) String() string {
	return fmt.Sprintf("%s: %s.%s %s %s", c.Name, c.object, c.attribute, c.Op, c.raw)
}

func compare(op Op, a, b float64) bool {
	switch op {
	case GT:
		return a > b
	case GE:
		return a >= b
	case LT:
		return a < b
	case LE:
		return a <= b
	case EQ:
		return a == b
	case NE:
		return a != b
	}
	return false
}

// ErrorCondition 属性采样失败时成立
type ErrorCondition struct {
	target
	Name string
}

func NewErrorCondition(name string, object objectname.Name, attribute string) *ErrorCondition {
	return &ErrorCondition{target: target{object: object, attribute: attribute}, Name: name}
}

func (c *ErrorCondition) Evaluate(s *sampler.AttributeSample) bool {
	return s.Err() != nil && c.matches(s)
}

func (c *ErrorCondition) String() string {
	return fmt.Sprintf("%s: %s.%s error", c.Name, c.object, c.attribute)
}

// LogAction 以 warn 级别记录命中的样本
type LogAction struct {
	Rule string
	log  *zap.Logger
}

func NewLogAction(rule string, log *zap.Logger) *LogAction {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogAction{Rule: rule, log: log}
}

func (a *LogAction) Apply(sc sampler.SampleContext, cond sampler.Condition, s *sampler.AttributeSample) {
	fields := []zap.Field{
		zap.String("rule", a.Rule),
		zap.Stringer("object", s.ObjectName()),
		zap.String("attribute", s.Attribute()),
		zap.Any("value", s.Value()),
		zap.Int64("cycle", sc.SampleCount()),
	}
	if s.Activity() != nil {
		fields = append(fields, zap.String("activity", s.Activity().ID()))
	}
	if err := s.Err(); err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.log.Warn("rule matched", fields...)
}

// MetricAction 命中时累加 sampler_rule_matches_total{rule}
type MetricAction struct {
	Rule string
	m    *monitor.RuleMetrics
}

func NewMetricAction(rule string, m *monitor.RuleMetrics) *MetricAction {
	return &MetricAction{Rule: rule, m: m}
}

func (a *MetricAction) Apply(sampler.SampleContext, sampler.Condition, *sampler.AttributeSample) {
	a.m.Matches.WithLabelValues(a.Rule).Inc()
}

// Rule 一条已构造的规则
type Rule struct {
	Name      string
	Condition sampler.Condition
	Action    sampler.Action
}

// Build 按配置顺序构造规则；metric 动作需要非空的 RuleMetrics
func Build(cfgs []config.RuleConfig, log *zap.Logger, m *monitor.RuleMetrics) ([]Rule, error) {
	out := make([]Rule, 0, len(cfgs))
	for _, rc := range cfgs {
		object, err := objectname.Parse(rc.Object)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}

		var cond sampler.Condition
		if Op(rc.Op) == OpError {
			cond = NewErrorCondition(rc.Name, object, rc.Attribute)
		} else {
			cond, err = NewThreshold(rc.Name, object, rc.Attribute, Op(rc.Op), rc.Value)
			if err != nil {
				return nil, err
			}
		}

		var action sampler.Action
		switch rc.Action {
		case "log":
			action = NewLogAction(rc.Name, log)
		case "metric":
			if m == nil {
				return nil, fmt.Errorf("rule %s: metric action without rule metrics", rc.Name)
			}
			action = NewMetricAction(rc.Name, m)
		default:
			return nil, fmt.Errorf("%w: %q in rule %s", ErrUnknownAction, rc.Action, rc.Name)
		}
		out = append(out, Rule{Name: rc.Name, Condition: cond, Action: action})
	}
	return out, nil
}

// Install 按顺序注册到 Sampler
func Install(s *sampler.Sampler, rules []Rule) {
	for _, r := range rules {
		s.Register(r.Condition, r.Action)
	}
}
