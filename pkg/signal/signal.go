package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout 优雅关闭的最长等待时间
const DefaultShutdownTimeout = 10 * time.Second

// WaitForShutdown 监听退出信号（SIGINT/SIGTERM）或 ctx 取消，执行优雅关闭
func WaitForShutdown(ctx context.Context, logger *zap.Logger, timeout time.Duration, shutdownFunc func(ctx context.Context) error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("service running, waiting for SIGINT/SIGTERM...")
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down", zap.Error(ctx.Err()))
	}

	Shutdown(logger, timeout, shutdownFunc)
}

// Shutdown 在超时内执行关闭函数；超时后直接返回
func Shutdown(logger *zap.Logger, timeout time.Duration, shutdownFunc func(ctx context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := shutdownFunc(ctx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown completed")
	case <-ctx.Done():
		logger.Warn("shutdown timeout exceeded", zap.Duration("timeout", timeout))
	}
}
