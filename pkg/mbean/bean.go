package mbean

import (
	"fmt"
	"sync"
)

// StaticBean 值由外部 Set 写入的受管对象，适合定期刷新的统计数据
type StaticBean struct {
	mu     sync.RWMutex
	infos  []AttributeInfo
	values map[string]any
}

func NewStaticBean() *StaticBean {
	return &StaticBean{values: make(map[string]any)}
}

// Set 写入可读属性；首次写入时登记元数据
func (b *StaticBean) Set(name string, value any) *StaticBean {
	return b.SetInfo(AttributeInfo{Name: name, Type: TypeOf(value), Readable: true}, value)
}

// SetInfo 写入属性并覆盖元数据
func (b *StaticBean) SetInfo(info AttributeInfo, value any) *StaticBean {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.values[info.Name]; !ok {
		b.infos = append(b.infos, info)
	} else {
		for i := range b.infos {
			if b.infos[i].Name == info.Name {
				b.infos[i] = info
			}
		}
	}
	b.values[info.Name] = value
	return b
}

func (b *StaticBean) Attributes() []AttributeInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]AttributeInfo(nil), b.infos...)
}

func (b *StaticBean) GetAttribute(name string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}
	return v, nil
}

// Getter 属性读取函数
type Getter func() (any, error)

// FuncAttribute 由函数提供值的属性
type FuncAttribute struct {
	Info AttributeInfo
	Get  Getter
}

// FuncBean 每次读取都调用 Getter 的受管对象
type FuncBean struct {
	attrs []FuncAttribute
	index map[string]int
}

func NewFuncBean(attrs ...FuncAttribute) *FuncBean {
	b := &FuncBean{index: make(map[string]int, len(attrs))}
	for _, a := range attrs {
		if i, ok := b.index[a.Info.Name]; ok {
			b.attrs[i] = a
			continue
		}
		b.index[a.Info.Name] = len(b.attrs)
		b.attrs = append(b.attrs, a)
	}
	return b
}

// Func 便捷构造一个可读的函数属性
func Func(name, typeName string, get Getter) FuncAttribute {
	return FuncAttribute{Info: AttributeInfo{Name: name, Type: typeName, Readable: true}, Get: get}
}

func (b *FuncBean) Attributes() []AttributeInfo {
	out := make([]AttributeInfo, 0, len(b.attrs))
	for _, a := range b.attrs {
		out = append(out, a.Info)
	}
	return out
}

func (b *FuncBean) GetAttribute(name string) (any, error) {
	i, ok := b.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}
	a := b.attrs[i]
	if a.Get == nil {
		return nil, nil
	}
	return a.Get()
}

// TypeOf 属性值的类型标签
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case CompositeData:
		return "composite"
	default:
		return fmt.Sprintf("%T", v)
	}
}
