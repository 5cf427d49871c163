package agent

import (
	"github.com/spf13/cobra"
)

func initSamplerFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	samplerPrefix := "sampler."

	f.String(samplerPrefix+"name", defaultCfg.Sampler.Name, "-> Activity name of each cycle | 采样活动名称")
	f.Duration(samplerPrefix+"interval", defaultCfg.Sampler.Interval, "-> Sample interval | 采样间隔")
	f.String(samplerPrefix+"include", defaultCfg.Sampler.Include, "-> Include patterns separated by ';' | 包含模式，';' 分隔")
	f.String(samplerPrefix+"exclude", defaultCfg.Sampler.Exclude, "-> Exclude patterns separated by ';' | 排除模式，';' 分隔")
	f.String(samplerPrefix+"type_policy", defaultCfg.Sampler.TypePolicy, "-> Attribute type policy [scalar,any] | 属性值类型策略 [scalar,any]")

	hostPrefix := samplerPrefix + "host."
	f.Bool(hostPrefix+"enable", defaultCfg.Sampler.Host.Enable, "-> Register host managed objects | 注册主机受管对象")
	f.Bool(hostPrefix+"collect_per_core", defaultCfg.Sampler.Host.CollectPerCore, "-> Register one object per CPU core | 按核心注册 CPU 对象")
	f.StringSlice(hostPrefix+"ignore_networks", defaultCfg.Sampler.Host.IgnoreNetworks, "-> Ignored network interfaces (glob) | 忽略的网卡（支持通配）")
	f.Duration(hostPrefix+"refresh", defaultCfg.Sampler.Host.Refresh, "-> Network object refresh interval, 0 = every cycle | 网卡对象刷新间隔，0 表示每个周期")
}
