package config

import (
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"time"

	"github.com/attr-sampler/pkg/filter"
	"github.com/attr-sampler/pkg/objectname"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 采样配置校验
//
//	字段	额外业务校验
//	Interval	1s ~ 3600s
//	Include/Exclude	能构造出 filter.Filter，且 include 至少一个模式
//	Host	忽略网卡列表无空串、无重复
//	Rules	规则名唯一，对象模式可解析，比较值非空
func (s *SamplerConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}
	if s.Interval < time.Second || s.Interval > 3600*time.Second {
		return fmt.Errorf("sampler.interval must be between 1 and 3600 seconds, got %s", s.Interval)
	}
	f, err := filter.New(s.Include, s.Exclude)
	if err != nil {
		return fmt.Errorf("sampler filter invalid: %w", err)
	}
	if len(f.Includes()) == 0 {
		return fmt.Errorf("sampler.include must contain at least one pattern, got %q", s.Include)
	}
	if err := s.Host.Validate(); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, r := range s.Rules {
		if seen[r.Name] {
			return fmt.Errorf("sampler.rules[%d]: duplicate rule name %q", i, r.Name)
		}
		seen[r.Name] = true
		if _, err := objectname.Parse(r.Object); err != nil {
			return fmt.Errorf("sampler.rules[%d] %s: %w", i, r.Name, err)
		}
		if r.Op != "error" && strings.TrimSpace(r.Value) == "" {
			return fmt.Errorf("sampler.rules[%d] %s: op %q requires a value", i, r.Name, r.Op)
		}
	}
	return nil
}

// Validate 忽略网卡列表不能包含空字符串、空白字符、路径分隔符、非法通配符或重复项；未启用时不校验
func (h *HostConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	if !h.Enable {
		return nil
	}
	seenIface := map[string]bool{}
	for _, iface := range h.IgnoreNetworks {
		if strings.TrimSpace(iface) == "" {
			return fmt.Errorf("sampler.host.ignore_networks cannot contain empty string")
		}
		if strings.ContainsAny(iface, " \t\r\n") {
			return fmt.Errorf("sampler.host.ignore_networks: interface %q contains whitespace", iface)
		}
		if strings.ContainsAny(iface, "/\\") {
			return fmt.Errorf("sampler.host.ignore_networks: interface %q must not contain '/' or '\\'", iface)
		}
		if _, err := path.Match(iface, ""); err != nil {
			return fmt.Errorf("sampler.host.ignore_networks: invalid pattern %q: %w", iface, err)
		}
		if seenIface[iface] {
			return fmt.Errorf("sampler.host.ignore_networks duplicated entry: %q", iface)
		}
		seenIface[iface] = true
	}
	return nil
}
