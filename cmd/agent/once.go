package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/logger"
	"github.com/attr-sampler/pkg/registers"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single sample cycle and print the activity as JSON | 执行一次采样并输出 JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			return err
		}
		pretty, _ := cmd.Flags().GetBool("pretty")
		return runOnce(cmd.Context(), cfg, cmd.OutOrStdout(), pretty)
	},
}

func init() {
	onceCmd.Flags().Bool("pretty", true, "-> Indent JSON output | 格式化输出")
}

// runOnce 组装运行时、执行一个周期并把结果写入 w；日志只走 stderr 与日志文件
func runOnce(ctx context.Context, cfg *config.Config, w io.Writer, pretty bool) error {
	log, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	rt, err := registers.NewRuntime(cfg, log, false)
	if err != nil {
		return fmt.Errorf("init runtime failed: %w", err)
	}
	defer func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			log.Warn("runtime shutdown failed", zap.Error(err))
		}
	}()

	if err := rt.Agent.InitAll(); err != nil {
		return err
	}
	a := rt.Agent.RunCycle(ctx)

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	if last := rt.Sampler.LastError(); last != nil {
		log.Warn("cycle finished with errors", zap.Error(last))
	}
	return nil
}
