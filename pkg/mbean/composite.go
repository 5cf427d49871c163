package mbean

import (
	"encoding/json"
	"sort"
)

// CompositeData 结构化属性值，采样时按 key 展开
type CompositeData interface {
	Keys() []string
	Get(key string) any
}

// Composite CompositeData 的默认实现，key 按字典序排列
type Composite struct {
	typeName string
	keys     []string
	values   map[string]any
}

// NewComposite 创建结构化值
func NewComposite(typeName string, items map[string]any) *Composite {
	c := &Composite{
		typeName: typeName,
		keys:     make([]string, 0, len(items)),
		values:   make(map[string]any, len(items)),
	}
	for k, v := range items {
		c.keys = append(c.keys, k)
		c.values[k] = v
	}
	sort.Strings(c.keys)
	return c
}

// TypeName 结构类型名
func (c *Composite) TypeName() string { return c.typeName }

// Keys 返回排序后的 key 副本
func (c *Composite) Keys() []string { return append([]string(nil), c.keys...) }

// Get 返回 key 对应的值，不存在时返回 nil
func (c *Composite) Get(key string) any { return c.values[key] }

// Len key 数量
func (c *Composite) Len() int { return len(c.keys) }

func (c *Composite) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.values)
}
