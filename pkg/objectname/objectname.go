// Package objectname 实现受管对象标识（domain:key=value,...）的解析、规范化与模式匹配。
//
// 模式语法：
//   - domain 中可使用 '*'（任意串）和 '?'（单字符）
//   - 属性值中同样可使用 '*' 和 '?'
//   - 属性列表末尾的 '*' 表示允许目标对象携带额外属性，例如 "app:type=Cache,*"
//   - "*:*" 匹配所有对象
package objectname

import (
	"fmt"
	"sort"
	"strings"
)

// Name 受管对象标识，值类型、可比较、可作为 map key。
// 属性按 key 排序后保存，因此同一对象的不同书写顺序得到相等的 Name。
type Name struct {
	domain        string
	props         string // 规范化后的 "k1=v1,k2=v2"
	listPattern   bool
	domainPattern bool
	valuePattern  bool
}

// SyntaxError 对象名格式非法
type SyntaxError struct {
	Input  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed object name %q: %s", e.Input, e.Reason)
}

type property struct {
	key   string
	value string
}

// Parse 解析对象名或对象名模式
func Parse(s string) (Name, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Name{}, &SyntaxError{Input: s, Reason: "missing domain separator ':'"}
	}
	domain, rest := s[:idx], s[idx+1:]
	if strings.ContainsAny(domain, "\n") {
		return Name{}, &SyntaxError{Input: s, Reason: "domain contains newline"}
	}
	n := Name{
		domain:        domain,
		domainPattern: strings.ContainsAny(domain, "*?"),
	}
	if rest == "" {
		return Name{}, &SyntaxError{Input: s, Reason: "empty key property list"}
	}

	seen := make(map[string]struct{})
	var props []property
	for _, tok := range strings.Split(rest, ",") {
		if tok == "*" {
			if n.listPattern {
				return Name{}, &SyntaxError{Input: s, Reason: "duplicate property list wildcard"}
			}
			n.listPattern = true
			continue
		}
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 {
			return Name{}, &SyntaxError{Input: s, Reason: fmt.Sprintf("key property %q must be key=value", tok)}
		}
		key, value := tok[:eq], tok[eq+1:]
		if strings.ContainsAny(key, "*?:=\n") {
			return Name{}, &SyntaxError{Input: s, Reason: fmt.Sprintf("invalid key %q", key)}
		}
		if value == "" {
			return Name{}, &SyntaxError{Input: s, Reason: fmt.Sprintf("empty value for key %q", key)}
		}
		if strings.ContainsAny(value, ":=\n") {
			return Name{}, &SyntaxError{Input: s, Reason: fmt.Sprintf("invalid value %q for key %q", value, key)}
		}
		if _, dup := seen[key]; dup {
			return Name{}, &SyntaxError{Input: s, Reason: fmt.Sprintf("duplicate key %q", key)}
		}
		seen[key] = struct{}{}
		if strings.ContainsAny(value, "*?") {
			n.valuePattern = true
		}
		props = append(props, property{key: key, value: value})
	}

	sort.Slice(props, func(i, j int) bool { return props[i].key < props[j].key })
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, p.key+"="+p.value)
	}
	n.props = strings.Join(parts, ",")
	return n, nil
}

// MustParse 解析失败时 panic，仅用于常量对象名
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Domain 返回域名部分
func (n Name) Domain() string { return n.domain }

// Canonical 返回规范化字符串（属性按 key 排序）
func (n Name) Canonical() string {
	switch {
	case n.listPattern && n.props == "":
		return n.domain + ":*"
	case n.listPattern:
		return n.domain + ":" + n.props + ",*"
	default:
		return n.domain + ":" + n.props
	}
}

// CanonicalKeyProperties 返回规范化的属性列表部分
func (n Name) CanonicalKeyProperties() string { return n.props }

func (n Name) String() string { return n.Canonical() }

// IsZero 是否为未初始化的零值
func (n Name) IsZero() bool { return n == Name{} }

// IsPattern 是否包含任意通配符
func (n Name) IsPattern() bool { return n.listPattern || n.domainPattern || n.valuePattern }

// IsPropertyListPattern 属性列表是否以 '*' 结尾
func (n Name) IsPropertyListPattern() bool { return n.listPattern }

// KeyProperty 返回指定 key 的属性值，不存在时返回空串
func (n Name) KeyProperty(key string) string {
	for _, p := range n.properties() {
		if p.key == key {
			return p.value
		}
	}
	return ""
}

// KeyProperties 返回属性副本
func (n Name) KeyProperties() map[string]string {
	props := n.properties()
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.key] = p.value
	}
	return out
}

// Apply 判断本模式是否匹配给定对象名；目标为模式或零值时始终返回 false。
// 非模式 Name 的 Apply 等价于相等比较。
func (n Name) Apply(target Name) bool {
	if target.IsZero() || target.IsPattern() {
		return false
	}
	if !matchWildcard(n.domain, target.domain) {
		return false
	}
	want := n.properties()
	have := target.KeyProperties()
	for _, p := range want {
		v, ok := have[p.key]
		if !ok || !matchWildcard(p.value, v) {
			return false
		}
	}
	if !n.listPattern && len(want) != len(have) {
		return false
	}
	return true
}

func (n Name) properties() []property {
	if n.props == "" {
		return nil
	}
	parts := strings.Split(n.props, ",")
	out := make([]property, 0, len(parts))
	for _, part := range parts {
		k, v, _ := strings.Cut(part, "=")
		out = append(out, property{key: k, value: v})
	}
	return out
}

// matchWildcard '*' 匹配任意串（含空串），'?' 匹配单个字符
func matchWildcard(pattern, s string) bool {
	p, str := []rune(pattern), []rune(s)
	pi, si := 0, 0
	starPi, starSi := -1, 0
	for si < len(str) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == str[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			starPi, starSi = pi, si
			pi++
		case starPi >= 0:
			starSi++
			pi, si = starPi+1, starSi
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
