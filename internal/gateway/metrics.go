package gateway

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ersinkoc/DistributedWebSocket/internal/metrics"
)

type channelCounters struct {
	broadcasts    int64
	bytesSent     int64
	lastBroadcast time.Time
}

// Aggregator keeps the gateway's lifetime counters, the rolling one-minute
// window, and per-channel broadcast stats. Counters are the local source
// of truth; a failed registry push never touches them.
type Aggregator struct {
	nodeID string
	start  time.Time

	mu                      sync.Mutex
	totalBroadcasts         int64
	broadcastsLastMinute    int64
	totalBytesSent          int64
	totalSubscriptions      int64
	subscriptionsLastMinute int64
	channelStats            map[string]*channelCounters
	lastReset               time.Time
	system                  metrics.SystemStats

	proc *process.Process

	// now is swapped in tests to drive the rolling window.
	now func() time.Time
}

// NewAggregator builds an Aggregator for this node.
func NewAggregator(nodeID string) *Aggregator {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	now := time.Now()
	return &Aggregator{
		nodeID:       nodeID,
		start:        now,
		channelStats: make(map[string]*channelCounters),
		lastReset:    now,
		proc:         proc,
		now:          time.Now,
	}
}

// RecordBroadcast counts one delivered broadcast of the given byte length.
func (a *Aggregator) RecordBroadcast(channel string, bytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalBroadcasts++
	a.broadcastsLastMinute++
	a.totalBytesSent += int64(bytes)

	cs, ok := a.channelStats[channel]
	if !ok {
		cs = &channelCounters{}
		a.channelStats[channel] = cs
	}
	cs.broadcasts++
	cs.bytesSent += int64(bytes)
	cs.lastBroadcast = a.now()
}

// RecordSubscription counts one accepted subscription.
func (a *Aggregator) RecordSubscription(channel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSubscriptions++
	a.subscriptionsLastMinute++
}

// RotateWindow resets the per-minute counters once a minute has elapsed.
// Called from the metrics tick.
func (a *Aggregator) RotateWindow() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if now.Sub(a.lastReset) >= time.Minute {
		a.broadcastsLastMinute = 0
		a.subscriptionsLastMinute = 0
		a.lastReset = now
	}
}

// SampleSystem refreshes the host and process resource figures. Sampling
// failures leave the previous figures in place.
func (a *Aggregator) SampleSystem() {
	var sys metrics.SystemStats
	if vm, err := mem.VirtualMemory(); err == nil {
		sys.MemoryUsedPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		sys.CPUPercent = percents[0]
	}
	if a.proc != nil {
		if mi, err := a.proc.MemoryInfo(); err == nil && mi != nil {
			sys.ProcessRSSBytes = mi.RSS
		}
		if load, err := a.proc.CPUPercent(); err == nil {
			sys.Load = load
		}
	}
	a.mu.Lock()
	a.system = sys
	a.mu.Unlock()
}

// Snapshot assembles the full node snapshot from the counters plus the
// caller-supplied live figures (connected clients, per-channel subscriber
// counts, known peers).
func (a *Aggregator) Snapshot(clients int, subscribers map[string]int, peers []string) metrics.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	channels := make(map[string]metrics.ChannelStats, len(a.channelStats)+len(subscribers))
	for name, cs := range a.channelStats {
		stats := metrics.ChannelStats{
			Broadcasts:  cs.broadcasts,
			BytesSent:   cs.bytesSent,
			Subscribers: subscribers[name],
		}
		if !cs.lastBroadcast.IsZero() {
			t := cs.lastBroadcast
			stats.LastBroadcast = &t
		}
		channels[name] = stats
	}
	// Channels with subscribers but no broadcasts yet still show up.
	for name, count := range subscribers {
		if _, ok := channels[name]; !ok {
			channels[name] = metrics.ChannelStats{Subscribers: count}
		}
	}
	if peers == nil {
		peers = []string{}
	}

	return metrics.Snapshot{
		NodeID:        a.nodeID,
		UptimeSeconds: now.Sub(a.start).Seconds(),
		Timestamp:     now,
		Metrics: metrics.Body{
			Broadcasts: metrics.BroadcastStats{
				Total:      a.totalBroadcasts,
				LastMinute: a.broadcastsLastMinute,
				BytesSent:  a.totalBytesSent,
			},
			Clients: metrics.ClientStats{
				Total:                   clients,
				TotalSubscriptions:      a.totalSubscriptions,
				SubscriptionsLastMinute: a.subscriptionsLastMinute,
			},
			Channels: channels,
			System:   a.system,
			Network:  metrics.NetworkStats{ConnectedNodes: peers},
		},
	}
}
