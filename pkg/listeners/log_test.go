package listeners_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/attr-sampler/pkg/listeners"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

type failingPreCycle struct{ sampler.BaseListener }

func (failingPreCycle) PreCycle(sampler.SampleContext, *sampler.Activity) error {
	return errors.New("boom")
}

func TestLogListener(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := listeners.NewLogListener(zap.New(core))

	srv := mbean.NewMemoryServer()
	defer srv.Close()
	require.NoError(t, srv.Register(objectname.MustParse("app:type=Queue"), mbean.NewFuncBean(
		mbean.Func("Depth", "int", func() (any, error) { return 7, nil }),
		mbean.Func("Lag", "int", func() (any, error) { return nil, errors.New("timeout") }),
	)))

	s, err := sampler.New(srv, sampler.Options{Include: "app:*"})
	require.NoError(t, err)
	defer s.Close()
	s.AddListener(l)

	a := sampler.NewActivity("log")
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)

	reg := logs.FilterMessage("managed object registered").All()
	require.Len(t, reg, 1)
	assert.Equal(t, "app:type=Queue", reg[0].ContextMap()["object"])

	failed := logs.FilterMessage("attribute sample failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "Lag", failed[0].ContextMap()["attribute"])
	assert.Equal(t, true, failed[0].ContextMap()["exclude_next"])

	summary := logs.FilterMessage("sample cycle finished").All()
	require.Len(t, summary, 1)
	assert.Equal(t, zapcore.DebugLevel, summary[0].Level)
	assert.Equal(t, int64(1), summary[0].ContextMap()["metrics"])
	assert.Equal(t, a.ID(), summary[0].ContextMap()["activity"])

	// 属性失败走 SampleError，不会触发 Error
	assert.Zero(t, logs.FilterMessage("sampler error").Len())

	s.AddListener(failingPreCycle{})
	a = sampler.NewActivity("fail")
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)
	errs := logs.FilterMessage("sampler error").All()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].ContextMap()["error"], "pre-cycle")

	require.NoError(t, srv.Unregister(objectname.MustParse("app:type=Queue")))
	srv.Drain()
	assert.Equal(t, 1, logs.FilterMessage("managed object unregistered").Len())
}

func TestLogListenerSummaryLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := listeners.NewLogListener(zap.New(core))

	srv := mbean.NewMemoryServer()
	defer srv.Close()
	s, err := sampler.New(srv, sampler.Options{Include: "app:*"})
	require.NoError(t, err)
	defer s.Close()
	s.AddListener(l)

	a := sampler.NewActivity("quiet")
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)
	assert.Zero(t, logs.FilterMessage("sample cycle finished").Len())

	l.SummaryLevel.SetLevel(zapcore.InfoLevel)
	a = sampler.NewActivity("loud")
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)
	assert.Equal(t, 1, logs.FilterMessage("sample cycle finished").Len())
}
