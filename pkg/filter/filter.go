package filter

import (
	"fmt"
	"strings"

	"github.com/attr-sampler/pkg/objectname"
)

// Separator 多个模式之间的分隔符
const Separator = ";"

// Filter 对象名过滤器：先匹配排除模式，再匹配包含模式
type Filter struct {
	includes []objectname.Name
	excludes []objectname.Name
}

// New 解析 include / exclude 模式串，任一模式非法即返回错误
func New(include, exclude string) (*Filter, error) {
	inc, err := Tokenize(include)
	if err != nil {
		return nil, fmt.Errorf("include filter: %w", err)
	}
	exc, err := Tokenize(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude filter: %w", err)
	}
	return &Filter{includes: inc, excludes: exc}, nil
}

// Tokenize 按 ';' 切分并解析模式，空 token 跳过
func Tokenize(s string) ([]objectname.Name, error) {
	var out []objectname.Name
	for _, tok := range strings.Split(s, Separator) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := objectname.Parse(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Included 排除优先；未命中排除时，命中任一包含模式即返回 true
func (f *Filter) Included(name objectname.Name) bool {
	if f.Excluded(name) {
		return false
	}
	for _, p := range f.includes {
		if p.Apply(name) {
			return true
		}
	}
	return false
}

// Excluded 是否命中任一排除模式
func (f *Filter) Excluded(name objectname.Name) bool {
	for _, p := range f.excludes {
		if p.Apply(name) {
			return true
		}
	}
	return false
}

// Includes 返回包含模式副本
func (f *Filter) Includes() []objectname.Name {
	return append([]objectname.Name(nil), f.includes...)
}

// Excludes 返回排除模式副本
func (f *Filter) Excludes() []objectname.Name {
	return append([]objectname.Name(nil), f.excludes...)
}

func (f *Filter) String() string {
	return fmt.Sprintf("include=%s exclude=%s", join(f.includes), join(f.excludes))
}

func join(names []objectname.Name) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n.Canonical())
	}
	return strings.Join(parts, Separator)
}
