package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attr-sampler/pkg/collector"
	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/metrics"
	"github.com/attr-sampler/pkg/monitor"
	"github.com/attr-sampler/pkg/objectname"
)

type fakeHost struct {
	mu      sync.Mutex
	nics    []string
	netErr  error
	percent []float64
}

func (f *fakeHost) setNICs(nics ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nics = nics
}

func (f *fakeHost) source() collector.Source {
	return collector.Source{
		CPUCounts: func(bool) (int, error) { return 2, nil },
		CPUPercent: func(_ time.Duration, percpu bool) ([]float64, error) {
			if percpu {
				return f.percent, nil
			}
			return []float64{50}, nil
		},
		LoadAvg: func() (*load.AvgStat, error) { return &load.AvgStat{Load1: 1.5, Load5: 1, Load15: 0.5}, nil },
		VirtualMemory: func() (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 1000, Available: 400, Used: 600, Free: 300, UsedPercent: 60}, nil
		},
		IOCounters: func(bool) ([]gnet.IOCountersStat, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.netErr != nil {
				return nil, f.netErr
			}
			out := make([]gnet.IOCountersStat, 0, len(f.nics))
			for i, nic := range f.nics {
				out = append(out, gnet.IOCountersStat{Name: nic, BytesSent: uint64(100 * (i + 1)), BytesRecv: 7})
			}
			return out, nil
		},
	}
}

func newMetrics() *monitor.CollectorMetrics {
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
	return factory.NewCollectorMetrics()
}

func nicName(t *testing.T, nic string) objectname.Name {
	t.Helper()
	n, err := collector.NetworkName(nic)
	require.NoError(t, err)
	return n
}

func TestHostObjects(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	f := &fakeHost{nics: []string{"eth0"}}
	cfg := &config.HostConfig{Enable: true}
	c := collector.NewHostCollector(cfg, srv, f.source(), newMetrics(), nil)

	require.NoError(t, c.Init())
	assert.Equal(t, "host-collector", c.Name())
	assert.True(t, srv.IsRegistered(collector.OperatingSystemName))
	assert.True(t, srv.IsRegistered(collector.MemoryName))
	assert.True(t, srv.IsRegistered(collector.RuntimeName))
	assert.False(t, srv.IsRegistered(collector.CPUName(0)))

	require.NoError(t, c.Collect(context.Background()))

	v, err := srv.GetAttribute(collector.OperatingSystemName, "AvailableProcessors")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	v, err = srv.GetAttribute(collector.OperatingSystemName, "CpuUsage")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)
	v, err = srv.GetAttribute(collector.OperatingSystemName, "LoadAverage")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.(mbean.CompositeData).Get("load5"))

	v, err = srv.GetAttribute(collector.MemoryName, "Physical")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), v.(mbean.CompositeData).Get("used"))

	v, err = srv.GetAttribute(nicName(t, "eth0"), "BytesSent")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v)

	v, err = srv.GetAttribute(collector.RuntimeName, "Goroutines")
	require.NoError(t, err)
	assert.Positive(t, v)

	require.NoError(t, c.Close())
	assert.Zero(t, srv.Count())
}

func TestPerCoreObjects(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	f := &fakeHost{percent: []float64{20, 60}}
	c := collector.NewHostCollector(&config.HostConfig{Enable: true, CollectPerCore: true}, srv, f.source(), newMetrics(), nil)
	require.NoError(t, c.Init())
	require.NoError(t, c.Collect(context.Background()))

	v, err := srv.GetAttribute(collector.CPUName(1), "Usage")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v, 1e-9)
	v, err = srv.GetAttribute(collector.OperatingSystemName, "CpuUsage")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, v, 1e-9)
}

func TestNetworkChurn(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	f := &fakeHost{nics: []string{"eth0", "lo", "veth1a2b"}}
	cfg := &config.HostConfig{Enable: true, IgnoreNetworks: []string{"lo", "veth*"}}
	c := collector.NewHostCollector(cfg, srv, f.source(), newMetrics(), nil)
	require.NoError(t, c.Init())
	require.NoError(t, c.Collect(context.Background()))

	names, err := srv.QueryNames(objectname.MustParse("os:type=Network,*"))
	require.NoError(t, err)
	assert.Equal(t, []objectname.Name{nicName(t, "eth0")}, names)

	f.setNICs("eth1")
	require.NoError(t, c.Collect(context.Background()))
	assert.False(t, srv.IsRegistered(nicName(t, "eth0")))
	assert.True(t, srv.IsRegistered(nicName(t, "eth1")))
}

func TestNetworkRefreshInterval(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	f := &fakeHost{nics: []string{"eth0"}}
	cfg := &config.HostConfig{Enable: true, Refresh: time.Hour}
	c := collector.NewHostCollector(cfg, srv, f.source(), newMetrics(), nil)
	require.NoError(t, c.Init())
	require.NoError(t, c.Collect(context.Background()))

	f.setNICs("eth1")
	require.NoError(t, c.Collect(context.Background()))
	// 未到刷新间隔，对象不变，消失网卡的值为 nil
	assert.True(t, srv.IsRegistered(nicName(t, "eth0")))
	assert.False(t, srv.IsRegistered(nicName(t, "eth1")))
	v, err := srv.GetAttribute(nicName(t, "eth0"), "BytesRecv")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCollectErrors(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	f := &fakeHost{netErr: errors.New("no netlink")}
	m := newMetrics()
	c := collector.NewHostCollector(&config.HostConfig{Enable: true}, srv, f.source(), m, nil)
	require.NoError(t, c.Init())

	err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("host-collector")))

	v, err := srv.GetAttribute(collector.MemoryName, "UsedPercent")
	require.NoError(t, err)
	assert.Equal(t, 60.0, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, c.Collect(ctx), context.Canceled)
}

func TestInitFailure(t *testing.T) {
	srv := mbean.NewMemoryServer()
	defer srv.Close()
	src := (&fakeHost{}).source()
	src.CPUCounts = func(bool) (int, error) { return 0, errors.New("denied") }
	c := collector.NewHostCollector(&config.HostConfig{Enable: true}, srv, src, newMetrics(), nil)
	require.Error(t, c.Init())
	assert.Zero(t, srv.Count())
}
