package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWaitForShutdownOnContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	WaitForShutdown(ctx, zap.New(core), time.Second, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, called)
	assert.Equal(t, 1, logs.FilterMessage("shutdown completed").Len())
}

func TestShutdownTimeoutAndError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	Shutdown(log, 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	assert.Equal(t, 1, logs.FilterMessage("shutdown timeout exceeded").Len())

	Shutdown(log, time.Second, func(context.Context) error { return errors.New("boom") })
	assert.Equal(t, 1, logs.FilterMessage("shutdown failed").Len())
}
