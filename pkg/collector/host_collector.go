package collector

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/attr-sampler/pkg/config"
	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/monitor"
	"github.com/attr-sampler/pkg/objectname"
)

// 主机对象名
var (
	OperatingSystemName = objectname.MustParse("os:type=OperatingSystem")
	MemoryName          = objectname.MustParse("os:type=Memory")
	RuntimeName         = objectname.MustParse("runtime:type=Go")
)

// CPUName 单核对象名 os:type=CPU,core=N
func CPUName(core int) objectname.Name {
	return objectname.MustParse("os:type=CPU,core=" + strconv.Itoa(core))
}

// NetworkName 网卡对象名 os:type=Network,name=<nic>
func NetworkName(nic string) (objectname.Name, error) {
	return objectname.Parse("os:type=Network,name=" + nic)
}

// Source 主机数据来源，测试中可替换
type Source struct {
	CPUCounts     func(logical bool) (int, error)
	CPUPercent    func(interval time.Duration, percpu bool) ([]float64, error)
	LoadAvg       func() (*load.AvgStat, error)
	VirtualMemory func() (*mem.VirtualMemoryStat, error)
	IOCounters    func(pernic bool) ([]gnet.IOCountersStat, error)
}

// DefaultSource 基于 gopsutil 的数据来源
func DefaultSource() Source {
	return Source{
		CPUCounts:     cpu.Counts,
		CPUPercent:    cpu.Percent,
		LoadAvg:       load.Avg,
		VirtualMemory: mem.VirtualMemory,
		IOCounters:    gnet.IOCounters,
	}
}

// hostState 最近一次刷新的主机数据，bean 的 getter 只读这里
type hostState struct {
	mu      sync.RWMutex
	logical int
	usage   float64
	perCore []float64
	load    load.AvgStat
	memory  mem.VirtualMemoryStat
	nics    map[string]gnet.IOCountersStat
}

// HostCollector 把主机指标注册为受管对象（实现 registers.Collector 接口）。
// Collect 刷新缓存数据并同步网卡对象：新网卡注册，消失的网卡注销。
type HostCollector struct {
	name    string
	cfg     *config.HostConfig
	server  *mbean.MemoryServer
	src     Source
	metrics *monitor.CollectorMetrics
	log     *zap.Logger

	state       hostState
	registered  []objectname.Name
	nicNames    map[string]objectname.Name
	lastRefresh time.Time
}

// NewHostCollector 创建主机采集器
func NewHostCollector(cfg *config.HostConfig, server *mbean.MemoryServer, src Source, m *monitor.CollectorMetrics, log *zap.Logger) *HostCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &HostCollector{
		name:     "host-collector",
		cfg:      cfg,
		server:   server,
		src:      src,
		metrics:  m,
		log:      log,
		nicNames: make(map[string]objectname.Name),
		state:    hostState{nics: make(map[string]gnet.IOCountersStat)},
	}
}

// Name 返回采集器名称
func (c *HostCollector) Name() string { return c.name }

// Init 预检查 CPU 可用性并注册静态主机对象
func (c *HostCollector) Init() error {
	logical, err := c.src.CPUCounts(true)
	if err != nil {
		return fmt.Errorf("get cpu counts: %w", err)
	}
	c.state.logical = logical
	// cpu.Percent(0) 首次调用只记录基准
	if _, err := c.src.CPUPercent(0, c.cfg.CollectPerCore); err != nil {
		c.log.Warn("prime cpu usage failed", zap.Error(err))
	}

	beans := map[objectname.Name]mbean.Bean{
		OperatingSystemName: c.operatingSystemBean(),
		MemoryName:          c.memoryBean(),
		RuntimeName:         runtimeBean(),
	}
	if c.cfg.CollectPerCore {
		c.state.perCore = make([]float64, logical)
		for i := 0; i < logical; i++ {
			beans[CPUName(i)] = c.coreBean(i)
		}
	}
	for name, bean := range beans {
		if err := c.register(name, bean); err != nil {
			return err
		}
	}
	c.log.Info("host objects registered", zap.Int("objects", len(c.registered)), zap.Int("logical_cores", logical))
	return nil
}

// Collect 刷新主机数据；单项失败只记录，不影响其余项
func (c *HostCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.metrics.Duration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	var firstErr error
	fail := func(what string, err error) {
		c.metrics.Errors.WithLabelValues(c.name).Inc()
		c.log.Warn("host refresh failed", zap.String("item", what), zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", what, err)
		}
	}

	if usage, err := c.src.CPUPercent(0, c.cfg.CollectPerCore); err != nil {
		fail("cpu", err)
	} else {
		c.setUsage(usage)
	}
	if avg, err := c.src.LoadAvg(); err != nil {
		fail("load", err)
	} else {
		c.state.mu.Lock()
		c.state.load = *avg
		c.state.mu.Unlock()
	}
	if vm, err := c.src.VirtualMemory(); err != nil {
		fail("memory", err)
	} else {
		c.state.mu.Lock()
		c.state.memory = *vm
		c.state.mu.Unlock()
	}
	if err := c.refreshNetworks(start); err != nil {
		fail("network", err)
	}
	return firstErr
}

// Close 注销本采集器注册的所有对象
func (c *HostCollector) Close() error {
	var lastErr error
	for _, name := range c.registered {
		if err := c.server.Unregister(name); err != nil {
			lastErr = err
		}
	}
	for _, name := range c.nicNames {
		if err := c.server.Unregister(name); err != nil {
			lastErr = err
		}
	}
	c.registered = nil
	c.nicNames = make(map[string]objectname.Name)
	return lastErr
}

func (c *HostCollector) register(name objectname.Name, bean mbean.Bean) error {
	if err := c.server.Register(name, bean); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	c.registered = append(c.registered, name)
	return nil
}

func (c *HostCollector) setUsage(usage []float64) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if !c.cfg.CollectPerCore {
		if len(usage) > 0 {
			c.state.usage = usage[0] / 100
		}
		return
	}
	var total float64
	for i, u := range usage {
		if i < len(c.state.perCore) {
			c.state.perCore[i] = u / 100
		}
		total += u
	}
	if len(usage) > 0 {
		c.state.usage = total / float64(len(usage)) / 100
	}
}

// refreshNetworks 更新网卡计数，并在刷新间隔到达时同步网卡对象
func (c *HostCollector) refreshNetworks(now time.Time) error {
	counters, err := c.src.IOCounters(true)
	if err != nil {
		return err
	}
	current := make(map[string]gnet.IOCountersStat, len(counters))
	for _, stat := range counters {
		if c.ignored(stat.Name) {
			continue
		}
		current[stat.Name] = stat
	}
	c.state.mu.Lock()
	c.state.nics = current
	c.state.mu.Unlock()

	if !c.lastRefresh.IsZero() && c.cfg.Refresh > 0 && now.Sub(c.lastRefresh) < c.cfg.Refresh {
		return nil
	}
	c.lastRefresh = now

	for nic, name := range c.nicNames {
		if _, ok := current[nic]; ok {
			continue
		}
		delete(c.nicNames, nic)
		if err := c.server.Unregister(name); err != nil {
			c.log.Warn("unregister network object failed", zap.String("nic", nic), zap.Error(err))
			continue
		}
		c.log.Info("network object removed", zap.String("nic", nic))
	}
	for nic := range current {
		if _, ok := c.nicNames[nic]; ok {
			continue
		}
		name, err := NetworkName(nic)
		if err != nil {
			c.log.Warn("skip network interface", zap.String("nic", nic), zap.Error(err))
			continue
		}
		if err := c.server.Register(name, c.networkBean(nic)); err != nil {
			c.log.Warn("register network object failed", zap.String("nic", nic), zap.Error(err))
			continue
		}
		c.nicNames[nic] = name
		c.log.Info("network object added", zap.String("nic", nic))
	}
	return nil
}

func (c *HostCollector) ignored(nic string) bool {
	for _, pattern := range c.cfg.IgnoreNetworks {
		// 模式已在配置校验中检查
		if ok, _ := path.Match(pattern, nic); ok {
			return true
		}
	}
	return false
}

func (c *HostCollector) read(fn func(s *hostState) any) mbean.Getter {
	return func() (any, error) {
		c.state.mu.RLock()
		defer c.state.mu.RUnlock()
		return fn(&c.state), nil
	}
}

func (c *HostCollector) operatingSystemBean() mbean.Bean {
	return mbean.NewFuncBean(
		mbean.Func("Name", "string", func() (any, error) { return runtime.GOOS, nil }),
		mbean.Func("Arch", "string", func() (any, error) { return runtime.GOARCH, nil }),
		mbean.Func("AvailableProcessors", "int", c.read(func(s *hostState) any { return s.logical })),
		mbean.Func("CpuUsage", "float64", c.read(func(s *hostState) any { return s.usage })),
		mbean.Func("SystemLoadAverage", "float64", c.read(func(s *hostState) any { return s.load.Load1 })),
		mbean.Func("LoadAverage", "composite", c.read(func(s *hostState) any {
			return mbean.NewComposite("LoadAverage", map[string]any{
				"load1":  s.load.Load1,
				"load5":  s.load.Load5,
				"load15": s.load.Load15,
			})
		})),
	)
}

func (c *HostCollector) memoryBean() mbean.Bean {
	return mbean.NewFuncBean(
		mbean.Func("UsedPercent", "float64", c.read(func(s *hostState) any { return s.memory.UsedPercent })),
		mbean.Func("Physical", "composite", c.read(func(s *hostState) any {
			return mbean.NewComposite("Physical", map[string]any{
				"total":     s.memory.Total,
				"available": s.memory.Available,
				"used":      s.memory.Used,
				"free":      s.memory.Free,
			})
		})),
	)
}

func (c *HostCollector) coreBean(core int) mbean.Bean {
	return mbean.NewFuncBean(
		mbean.Func("Usage", "float64", c.read(func(s *hostState) any {
			if core < len(s.perCore) {
				return s.perCore[core]
			}
			return nil
		})),
	)
}

// networkBean 网卡在两次刷新之间消失时 getter 返回 nil，不计入快照
func (c *HostCollector) networkBean(nic string) mbean.Bean {
	get := func(field func(gnet.IOCountersStat) uint64) mbean.Getter {
		return c.read(func(s *hostState) any {
			stat, ok := s.nics[nic]
			if !ok {
				return nil
			}
			return field(stat)
		})
	}
	return mbean.NewFuncBean(
		mbean.Func("BytesSent", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.BytesSent })),
		mbean.Func("BytesRecv", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.BytesRecv })),
		mbean.Func("PacketsSent", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.PacketsSent })),
		mbean.Func("PacketsRecv", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.PacketsRecv })),
		mbean.Func("Errin", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.Errin })),
		mbean.Func("Errout", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.Errout })),
		mbean.Func("Dropin", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.Dropin })),
		mbean.Func("Dropout", "uint64", get(func(s gnet.IOCountersStat) uint64 { return s.Dropout })),
	)
}

func runtimeBean() mbean.Bean {
	memStats := func() any {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return mbean.NewComposite("MemStats", map[string]any{
			"heap_alloc": ms.HeapAlloc,
			"heap_inuse": ms.HeapInuse,
			"sys":        ms.Sys,
			"num_gc":     ms.NumGC,
		})
	}
	return mbean.NewFuncBean(
		mbean.Func("Version", "string", func() (any, error) { return runtime.Version(), nil }),
		mbean.Func("Goroutines", "int", func() (any, error) { return runtime.NumGoroutine(), nil }),
		mbean.Func("Memory", "composite", func() (any, error) { return memStats(), nil }),
	)
}
