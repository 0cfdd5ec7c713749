package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// naiveISO is the timestamp layout of feed records: local time, no zone.
const naiveISO = "2006-01-02T15:04:05.000000"

var (
	logLevels   = []string{"INFO", "WARNING", "ERROR", "DEBUG"}
	logServices = []string{"auth-service", "user-service", "order-service", "payment-service"}
)

// logEntry is one record of the log feed.
type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func newLogEntry(i int, now time.Time) logEntry {
	return logEntry{
		Timestamp: now.Format(naiveISO),
		Level:     logLevels[rand.IntN(len(logLevels))],
		Service:   logServices[rand.IntN(len(logServices))],
		Message:   fmt.Sprintf("Log message %d", i),
		RequestID: fmt.Sprintf("req-%d", 1000+rand.IntN(9000)),
	}
}

// metricEntry is one record of the monitoring feed.
type metricEntry struct {
	Timestamp         string  `json:"timestamp"`
	CPU               float64 `json:"cpu_usage"`
	Memory            float64 `json:"memory_usage"`
	Disk              float64 `json:"disk_usage"`
	ActiveConnections int     `json:"active_connections"`
	RequestsPerMinute int     `json:"requests_per_minute"`
}

// HostUsage is a utilisation snapshot in percent.
type HostUsage struct {
	CPU    float64
	Memory float64
	Disk   float64
}

// HostSampler reads host utilisation.
type HostSampler interface {
	Sample(ctx context.Context) (HostUsage, error)
}

// HostSamplerFunc adapts a function to HostSampler.
type HostSamplerFunc func(ctx context.Context) (HostUsage, error)

func (f HostSamplerFunc) Sample(ctx context.Context) (HostUsage, error) { return f(ctx) }

// systemSampler reads the real host through gopsutil.
type systemSampler struct {
	diskPath string
}

// NewSystemSampler samples this host; disk usage is that of diskPath.
func NewSystemSampler(diskPath string) HostSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return systemSampler{diskPath: diskPath}
}

func (s systemSampler) Sample(ctx context.Context) (HostUsage, error) {
	var u HostUsage
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return u, fmt.Errorf("cpu: %w", err)
	}
	if len(pct) > 0 {
		u.CPU = pct[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("memory: %w", err)
	}
	u.Memory = vm.UsedPercent
	du, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return u, fmt.Errorf("disk: %w", err)
	}
	u.Disk = du.UsedPercent
	return u, nil
}

// requestMeter counts requests over a sliding minute.
type requestMeter struct {
	mu    sync.Mutex
	times []time.Time
	now   func() time.Time
}

func newRequestMeter() *requestMeter {
	return &requestMeter{now: time.Now}
}

func (m *requestMeter) Mark() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times = append(m.times, m.now())
	m.pruneLocked()
}

// PerMinute returns the number of requests seen in the last minute.
func (m *requestMeter) PerMinute() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	return len(m.times)
}

func (m *requestMeter) pruneLocked() {
	cutoff := m.now().Add(-time.Minute)
	i := 0
	for i < len(m.times) && !m.times[i].After(cutoff) {
		i++
	}
	m.times = m.times[i:]
}

// streamEvents writes count "data: <json>" blocks, one every interval,
// flushing each. It stops early when the client goes away.
func streamEvents(w http.ResponseWriter, r *http.Request, count int, interval time.Duration, next func(i int) (any, error)) (int, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return 0, fmt.Errorf("response writer cannot flush")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		case <-timer.C:
		}

		v, err := next(i)
		if err != nil {
			return i, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return i, err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return i, err
		}
		flusher.Flush()
		timer.Reset(interval)
	}
	return count, nil
}
