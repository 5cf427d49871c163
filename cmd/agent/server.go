package agent

import (
	"github.com/spf13/cobra"

	"github.com/attr-sampler/pkg/config"
)

var defaultCfg = config.NewDefaultConfig()

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	serverPrefix := "server."

	f.String(serverPrefix+"addr", defaultCfg.Server.Addr, "-> HTTP listening address | HTTP监听地址")
	f.Duration(serverPrefix+"read_timeout", defaultCfg.Server.ReadTimeout, "-> Read timeout duration | 读取超时时间")
	f.Duration(serverPrefix+"write_timeout", defaultCfg.Server.WriteTimeout, "-> Write timeout duration | 写入超时时间")
	f.Duration(serverPrefix+"idle_timeout", defaultCfg.Server.IdleTimeout, "-> Idle connection timeout duration | 空闲连接超时时间")
}
