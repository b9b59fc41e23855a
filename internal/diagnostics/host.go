package diagnostics

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot is a point-in-time view of host and process resources.
type HostSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname,omitempty"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	GoVersion string    `json:"go_version"`

	// CPU
	CPUModel   string  `json:"cpu_model,omitempty"`
	CPUCores   int     `json:"cpu_cores"`
	CPUThreads int     `json:"cpu_threads"`
	CPUPercent float64 `json:"cpu_percent"`

	// Memory (in MB)
	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	// Disk (in GB)
	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	// Load Average (Unix)
	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	// Process
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	ProcessUptime string  `json:"process_uptime"`

	Notes []string `json:"notes,omitempty"`
}

// Collector gathers host snapshots. Hardware facts are read once and
// cached; CPU usage is the delta between consecutive collections.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	diskDir string

	infoCollected bool
	cpuModel      string
	cpuCores      int
	cpuThreads    int

	lastCPUTotal float64
	lastCPUIdle  float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithDiskPath sets the filesystem whose usage is reported.
func WithDiskPath(path string) CollectorOption {
	return func(c *Collector) { c.diskDir = path }
}

// NewCollector creates a collector. Process uptime counts from this call.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{started: time.Now(), diskDir: rootDiskPath()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers the current snapshot. It returns early with what it has
// when ctx is done.
func (c *Collector) Collect(ctx context.Context) HostSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := HostSnapshot{
		Timestamp: time.Now().UTC(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
	if host, err := os.Hostname(); err == nil {
		s.Hostname = host
	}

	c.collectProcess(&s)
	collectors := []func(context.Context, *HostSnapshot){
		c.collectHardwareInfo,
		c.collectCPUUsage,
		c.collectMemory,
		c.collectDisk,
		c.collectLoad,
	}
	for _, collect := range collectors {
		if ctx.Err() != nil {
			s.Notes = append(s.Notes, "collection interrupted: "+ctx.Err().Error())
			break
		}
		collect(ctx, &s)
	}
	return s
}

func (c *Collector) collectProcess(s *HostSnapshot) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	s.NumGC = ms.NumGC
	s.ProcessUptime = time.Since(c.started).Round(time.Second).String()
}

func (c *Collector) collectHardwareInfo(ctx context.Context, s *HostSnapshot) {
	if !c.infoCollected {
		if info, err := ghw.CPU(); err == nil && info != nil {
			if len(info.Processors) > 0 {
				c.cpuModel = strings.TrimSpace(info.Processors[0].Model)
			}
			c.cpuCores = int(info.TotalCores)
		}
		if c.cpuModel == "" {
			if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
				c.cpuModel = strings.TrimSpace(infos[0].ModelName)
			}
		}
		if c.cpuCores == 0 {
			if cores, err := cpu.CountsWithContext(ctx, false); err == nil {
				c.cpuCores = cores
			}
		}
		if c.cpuThreads == 0 {
			if threads, err := cpu.CountsWithContext(ctx, true); err == nil {
				c.cpuThreads = threads
			}
		}
		c.infoCollected = true
	}
	s.CPUModel = c.cpuModel
	s.CPUCores = c.cpuCores
	s.CPUThreads = c.cpuThreads
}

func (c *Collector) collectCPUUsage(ctx context.Context, s *HostSnapshot) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		s.Notes = append(s.Notes, "cpu usage unavailable")
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait
	if c.lastCPUTotal > 0 {
		if totalDelta := total - c.lastCPUTotal; totalDelta > 0 {
			s.CPUPercent = (1 - (idle-c.lastCPUIdle)/totalDelta) * 100
		}
	}
	c.lastCPUTotal = total
	c.lastCPUIdle = idle
}

func (c *Collector) collectMemory(ctx context.Context, s *HostSnapshot) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.Notes = append(s.Notes, "memory unavailable")
		return
	}
	s.MemTotalMB = float64(vm.Total) / 1024 / 1024
	s.MemUsedMB = float64(vm.Used) / 1024 / 1024
	s.MemPercent = vm.UsedPercent
}

func (c *Collector) collectDisk(ctx context.Context, s *HostSnapshot) {
	usage, err := disk.UsageWithContext(ctx, c.diskDir)
	if err != nil {
		s.Notes = append(s.Notes, "disk usage unavailable for "+c.diskDir)
		return
	}
	s.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	s.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	s.DiskPercent = usage.UsedPercent
}

func (c *Collector) collectLoad(ctx context.Context, s *HostSnapshot) {
	if runtime.GOOS == "windows" {
		return
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		s.Notes = append(s.Notes, "load average unavailable")
		return
	}
	s.LoadAvg1 = avg.Load1
	s.LoadAvg5 = avg.Load5
	s.LoadAvg15 = avg.Load15
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}
