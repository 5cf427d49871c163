package rules_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/metrics"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/rules"
	"github.com/attr-sampler/pkg/sampler"
)

func newSampler(t *testing.T) *sampler.Sampler {
	t.Helper()
	srv := mbean.NewMemoryServer()
	t.Cleanup(srv.Close)
	require.NoError(t, srv.Register(objectname.MustParse("app:type=Pool,name=db"), mbean.NewStaticBean().
		Set("Active", 42).
		Set("State", "RUNNING").
		Set("Usage", mbean.NewComposite("Usage", map[string]any{"used": int64(900), "max": int64(1000)}))))
	require.NoError(t, srv.Register(objectname.MustParse("app:type=Pool,name=cache"), mbean.NewFuncBean(
		mbean.Func("Active", "int", func() (any, error) { return nil, errors.New("closed") }),
	)))

	s, err := sampler.New(srv, sampler.Options{Include: "app:*"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func cycle(s *sampler.Sampler) {
	a := sampler.NewActivity("rules")
	s.OnCycleBegin(a)
	s.OnCycleEnd(a)
}

func TestThresholdOperators(t *testing.T) {
	tests := []struct {
		op    rules.Op
		value string
		want  bool
	}{
		{rules.GT, "41", true},
		{rules.GT, "42", false},
		{rules.GE, "42", true},
		{rules.LT, "43", true},
		{rules.LE, "41", false},
		{rules.EQ, "42", true},
		{rules.NE, "42", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op)+tt.value, func(t *testing.T) {
			s := newSampler(t)
			var hits int
			c, err := rules.NewThreshold("r", objectname.MustParse("app:type=Pool,*"), "Active", tt.op, tt.value)
			require.NoError(t, err)
			s.Register(c, sampler.ActionFunc(func(sampler.SampleContext, sampler.Condition, *sampler.AttributeSample) { hits++ }))
			cycle(s)
			if tt.want {
				assert.Equal(t, 1, hits)
			} else {
				assert.Zero(t, hits)
			}
		})
	}
}

func TestThresholdStringAndComposite(t *testing.T) {
	s := newSampler(t)
	var got []string
	record := sampler.ActionFunc(func(_ sampler.SampleContext, _ sampler.Condition, sample *sampler.AttributeSample) {
		got = append(got, sample.Attribute())
	})

	state, err := rules.NewThreshold("state", objectname.MustParse("app:*"), "State", rules.EQ, "RUNNING")
	require.NoError(t, err)
	usage, err := rules.NewThreshold("usage", objectname.MustParse("app:name=db,*"), `Usage\used`, rules.GE, "900")
	require.NoError(t, err)
	missing, err := rules.NewThreshold("missing", objectname.MustParse("app:*"), `Usage\free`, rules.GT, "0")
	require.NoError(t, err)

	s.Register(state, record).Register(usage, record).Register(missing, record)
	cycle(s)
	assert.Equal(t, []string{"State", "Usage"}, got)
}

func TestThresholdRejectsBadInput(t *testing.T) {
	_, err := rules.NewThreshold("r", objectname.MustParse("app:*"), "Active", rules.GT, "high")
	require.Error(t, err)

	_, err = rules.NewThreshold("r", objectname.MustParse("app:*"), "Active", rules.Op("~"), "1")
	require.ErrorIs(t, err, rules.ErrUnknownOp)
}

func TestErrorConditionWithLogAction(t *testing.T) {
	s := newSampler(t)
	core, logs := observer.New(zap.WarnLevel)

	s.Register(rules.NewErrorCondition("down", objectname.MustParse("app:type=Pool,*"), ""),
		rules.NewLogAction("down", zap.New(core)))
	cycle(s)

	entries := logs.FilterMessage("rule matched").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "down", fields["rule"])
	assert.Equal(t, "app:name=cache,type=Pool", fields["object"])
	assert.Equal(t, "Active", fields["attribute"])
	assert.Contains(t, fields["error"], "closed")
}

func TestBuildFromConfig(t *testing.T) {
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
	rm := factory.NewRuleMetrics()

	built, err := rules.Build([]config.RuleConfig{
		{Name: "busy", Object: "app:type=Pool,*", Attribute: "Active", Op: ">", Value: "10", Action: "metric"},
		{Name: "broken", Object: "app:*", Op: "error", Action: "log"},
	}, zap.NewNop(), rm)
	require.NoError(t, err)
	require.Len(t, built, 2)
	assert.IsType(t, &rules.ThresholdCondition{}, built[0].Condition)
	assert.IsType(t, &rules.ErrorCondition{}, built[1].Condition)

	s := newSampler(t)
	rules.Install(s, built)
	assert.Equal(t, 2, s.Context().ConditionCount())

	cycle(s)
	cycle(s)
	assert.Equal(t, 2.0, testutil.ToFloat64(rm.Matches.WithLabelValues("busy")))
	// 失败的属性只采样一次，之后被排除
	assert.Equal(t, int64(3), s.Context().TotalActionCount())
}

func TestBuildErrors(t *testing.T) {
	_, err := rules.Build([]config.RuleConfig{{Name: "x", Object: "bad", Op: ">", Value: "1", Action: "log"}}, nil, nil)
	require.Error(t, err)

	_, err = rules.Build([]config.RuleConfig{{Name: "x", Object: "a:*", Op: ">", Value: "1", Action: "page"}}, nil, nil)
	require.ErrorIs(t, err, rules.ErrUnknownAction)

	_, err = rules.Build([]config.RuleConfig{{Name: "x", Object: "a:*", Op: ">", Value: "1", Action: "metric"}}, nil, nil)
	require.Error(t, err)
}
