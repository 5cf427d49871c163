package sampler

import (
	"reflect"
	"time"

	"github.com/attr-sampler/pkg/mbean"
)

// PropertySeparator 结构化值展开后父子属性名之间的分隔符
const PropertySeparator = `\`

// TypePolicy 决定标量值能否写入快照
type TypePolicy interface {
	Supported(value any) bool
}

// TypePolicyFunc 函数适配器
type TypePolicyFunc func(value any) bool

func (f TypePolicyFunc) Supported(value any) bool { return f(value) }

var (
	// ScalarTypes 布尔、字符串、各类整数与浮点、time.Duration、time.Time
	ScalarTypes TypePolicy = TypePolicyFunc(isScalar)
	// AnyType 接受任何非空、非数组的值
	AnyType TypePolicy = TypePolicyFunc(func(any) bool { return true })
)

func isScalar(v any) bool {
	switch v.(type) {
	case bool, string, time.Duration, time.Time:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Flatten 将属性值展开写入快照。
// nil 与数组/切片直接丢弃；CompositeData 按 key 递归展开为 prop\key；
// 其余值须通过 policy，否则返回 *UnsupportedAttributeError。
// 写入是原子的：只有整个值展开成功才会提交到快照，返回写入的属性个数。
func Flatten(snap *Snapshot, prop string, value any, policy TypePolicy) (int, error) {
	if policy == nil {
		policy = ScalarTypes
	}
	var props []Property
	if err := flatten(&props, prop, value, policy); err != nil {
		return 0, err
	}
	for _, p := range props {
		snap.Add(p.Key, p.Value)
	}
	return len(props), nil
}

func flatten(props *[]Property, prop string, value any, policy TypePolicy) error {
	if isNil(value) {
		return nil
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Array, reflect.Slice:
		return nil
	}
	if cd, ok := value.(mbean.CompositeData); ok {
		for _, key := range cd.Keys() {
			if err := flatten(props, prop+PropertySeparator+key, cd.Get(key), policy); err != nil {
				return err
			}
		}
		return nil
	}
	if !policy.Supported(value) {
		return &UnsupportedAttributeError{Property: prop, Value: value}
	}
	*props = append(*props, Property{Key: prop, Value: value})
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
