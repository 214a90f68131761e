// Package observability aggregates runtime counters for the debug
// endpoint. Counters are atomics; nothing here sits on a hot path lock.
package observability

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/mem"
)

// Monitor tracks connection and delivery activity since process start.
type Monitor struct {
	startedAt time.Time

	activeConnections atomic.Int64
	messagesSent      atomic.Uint64
	eventsDelivered   atomic.Uint64
	deliveryFailures  atomic.Uint64
	rejectedConnects  atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{startedAt: time.Now().UTC()}
}

func (m *Monitor) ConnectionOpened()   { m.activeConnections.Add(1) }
func (m *Monitor) ConnectionClosed()   { m.activeConnections.Add(-1) }
func (m *Monitor) ConnectionRejected() { m.rejectedConnects.Add(1) }
func (m *Monitor) MessageSent()        { m.messagesSent.Add(1) }
func (m *Monitor) EventDelivered()     { m.eventsDelivered.Add(1) }
func (m *Monitor) DeliveryFailed()     { m.deliveryFailures.Add(1) }

// Snapshot returns the current counters plus process and host memory
// figures. Host stats are best-effort; a probe failure only omits them.
func (m *Monitor) Snapshot() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := map[string]any{
		"uptime":             time.Since(m.startedAt).Round(time.Second).String(),
		"active_connections": m.activeConnections.Load(),
		"rejected_connects":  m.rejectedConnects.Load(),
		"messages_sent":      m.messagesSent.Load(),
		"events_delivered":   m.eventsDelivered.Load(),
		"delivery_failures":  m.deliveryFailures.Load(),
		"alloc_mem_mb":       memStats.Alloc / 1024 / 1024,
		"num_gc":             memStats.NumGC,
		"goroutines":         runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["host_mem_used_percent"] = vm.UsedPercent
		stats["host_mem_total_mb"] = vm.Total / 1024 / 1024
	}
	return stats
}
