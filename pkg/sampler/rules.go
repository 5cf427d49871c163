package sampler

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Condition 采样条件
type Condition interface {
	Evaluate(sample *AttributeSample) bool
}

// Action 条件成立时执行的动作
type Action interface {
	Apply(sc SampleContext, cond Condition, sample *AttributeSample)
}

// ConditionFunc 函数适配器
type ConditionFunc func(sample *AttributeSample) bool

func (f ConditionFunc) Evaluate(sample *AttributeSample) bool { return f(sample) }

// ActionFunc 函数适配器
type ActionFunc func(sc SampleContext, cond Condition, sample *AttributeSample)

func (f ActionFunc) Apply(sc SampleContext, cond Condition, sample *AttributeSample) {
	f(sc, cond, sample)
}

type noopAction struct{}

func (noopAction) Apply(SampleContext, Condition, *AttributeSample) {}

// NoopAction 注册时 action 为 nil 会绑定到该单例
var NoopAction Action = noopAction{}

type rule struct {
	cond   Condition
	action Action
}

// RuleEngine 有序的 条件→动作 表，按注册顺序求值，不短路
type RuleEngine struct {
	mu    sync.RWMutex
	rules []rule
	fired atomic.Int64
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Register 注册规则；同一个可比较的条件再次注册时原位替换动作
func (e *RuleEngine) Register(cond Condition, action Action) *RuleEngine {
	if cond == nil {
		panic("sampler: nil condition")
	}
	if action == nil {
		action = NoopAction
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if sameValue(e.rules[i].cond, cond) {
			e.rules[i].action = action
			return e
		}
	}
	e.rules = append(e.rules, rule{cond: cond, action: action})
	return e
}

// Len 规则数量
func (e *RuleEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Fired 累计动作执行次数
func (e *RuleEngine) Fired() int64 { return e.fired.Load() }

// ResetFired 清零动作计数
func (e *RuleEngine) ResetFired() { e.fired.Store(0) }

// Evaluate 对样本依次求值所有规则，返回本次触发的动作数和各规则的失败。
// 条件或动作的 panic 只影响当前规则，后续规则照常求值。
// 规则表在求值前拷贝，动作中可以安全地读取 SampleContext 或注册新规则。
func (e *RuleEngine) Evaluate(sc SampleContext, sample *AttributeSample) (int, []error) {
	e.mu.RLock()
	rules := append([]rule(nil), e.rules...)
	e.mu.RUnlock()

	n := 0
	var errs []error
	for i, r := range rules {
		var matched bool
		if err := guard(func() error { matched = r.cond.Evaluate(sample); return nil }); err != nil {
			errs = append(errs, fmt.Errorf("rule %d condition: %w", i, err))
			continue
		}
		if !matched {
			continue
		}
		e.fired.Add(1)
		n++
		if err := guard(func() error { r.action.Apply(sc, r.cond, sample); return nil }); err != nil {
			errs = append(errs, fmt.Errorf("rule %d action: %w", i, err))
		}
	}
	return n, errs
}

// sameValue 仅当两者动态类型可比较时才比较，避免函数类型比较时 panic
func sameValue(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
