package metrics

import "time"

// Snapshot is a point-in-time view of one gateway's counters.
type Snapshot struct {
	NodeID string `json:"nodeId"`
	// UptimeSeconds counts seconds since the gateway process started.
	UptimeSeconds float64   `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
	Metrics       Body      `json:"metrics"`
}

// Body groups the snapshot's counter sections.
type Body struct {
	Broadcasts BroadcastStats          `json:"broadcasts"`
	Clients    ClientStats             `json:"clients"`
	Channels   map[string]ChannelStats `json:"channels"`
	System     SystemStats             `json:"system"`
	Network    NetworkStats            `json:"network"`
}

// BroadcastStats counts delivered broadcasts.
type BroadcastStats struct {
	Total      int64 `json:"total"`
	LastMinute int64 `json:"lastMinute"`
	BytesSent  int64 `json:"bytesSent"`
}

// ClientStats counts connected clients and subscriptions.
type ClientStats struct {
	Total                   int   `json:"total"`
	TotalSubscriptions      int64 `json:"totalSubscriptions"`
	SubscriptionsLastMinute int64 `json:"subscriptionsLastMinute"`
}

// ChannelStats carries per-channel broadcast and subscriber figures.
type ChannelStats struct {
	Broadcasts    int64      `json:"broadcasts"`
	BytesSent     int64      `json:"bytesSent"`
	LastBroadcast *time.Time `json:"lastBroadcast"`
	Subscribers   int        `json:"subscribers"`
}

// SystemStats carries process and host resource figures.
type SystemStats struct {
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
	ProcessRSSBytes   uint64  `json:"processRssBytes"`
	CPUPercent        float64 `json:"cpuPercent"`
	// Load is the process's own CPU share.
	Load float64 `json:"load"`
}

// NetworkStats lists the peer gateways currently known to this node.
type NetworkStats struct {
	ConnectedNodes []string `json:"connectedNodes"`
}
