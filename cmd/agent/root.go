package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attr-sampler/cmd/server"
	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/logger"
	"github.com/attr-sampler/pkg/registers"
	"github.com/attr-sampler/pkg/signal"
	"github.com/attr-sampler/pkg/util"
)

const (
	projectName = "attr-sampler"
	// 进程与 Go 运行时指标
	enableProcess = true
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          projectName,
	Short:        "Managed-object attribute sampler with Prometheus exposition",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "-> Config file path | 配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initSamplerFlags(rootCmd)
	initLogFlags(rootCmd)
	rootCmd.AddCommand(onceCmd)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	util.PrintBanner(os.Stderr, projectName, "cyan", "managed-object attribute sampler")
	logger.SetDefaultComponent("main")
	logger.Info("log initialization successful",
		zap.String("path", cfg.Log.Path),
		zap.String("level", cfg.Log.Level),
		zap.String("format", cfg.Log.Format))

	rt, err := registers.NewRuntime(cfg, log, enableProcess)
	if err != nil {
		return fmt.Errorf("init runtime failed: %w", err)
	}

	httpServer := server.NewHTTPServer(&cfg.Server, log.Named("http"), rt.Registry, rt.Sampler.Context())
	rt.Agent.AddSink(httpServer)
	if err := httpServer.Start(); err != nil {
		_ = rt.Shutdown(context.Background())
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	if err := rt.Agent.Start(ctx); err != nil {
		_ = httpServer.Shutdown(context.Background())
		_ = rt.Shutdown(context.Background())
		return fmt.Errorf("start agent failed: %w", err)
	}
	logger.Info("sampler started",
		zap.String("addr", httpServer.Addr()),
		zap.Duration("interval", cfg.Sampler.Interval),
		zap.String("include", cfg.Sampler.Include),
		zap.String("exclude", cfg.Sampler.Exclude))

	// 关闭顺序：HTTP服务 → 调度器/采集器 → Sampler
	signal.WaitForShutdown(ctx, log, signal.DefaultShutdownTimeout, func(ctx context.Context) error {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown HTTP server failed: %w", err)
		}
		if err := rt.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown runtime failed: %w", err)
		}
		logger.Info("all services shutdown successfully")
		return nil
	})
	return nil
}
