package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/metrics"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// ErrValidation marks malformed directory input (missing id, url, or name).
var ErrValidation = errors.New("registry: validation")

// NodeInfo is the directory entry returned to gateways.
type NodeInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ClusterMetrics is the on-demand cluster-wide aggregate.
type ClusterMetrics struct {
	Timestamp  time.Time                  `json:"timestamp"`
	TotalNodes int                        `json:"totalNodes"`
	Nodes      map[string]json.RawMessage `json:"nodes"`
	Summary    ClusterSummary             `json:"summary"`
}

// ClusterSummary folds per-node snapshots into cluster totals.
type ClusterSummary struct {
	TotalClients int                        `json:"totalClients"`
	Channels     map[string]*ChannelSummary `json:"channels"`
}

// ChannelSummary sums a channel's figures across responding nodes.
type ChannelSummary struct {
	TotalSubscribers int `json:"totalSubscribers"`
	NodesServing     int `json:"nodesServing"`
}

// Service exposes the directory and metrics operations over the Store.
type Service struct {
	store  *Store
	logger logpkg.Logger

	livenessWindow time.Duration
	pullTimeout    time.Duration
	apiKey         string
	httpc          *http.Client

	// now is swapped in tests to drive the liveness window.
	now func() time.Time
}

// NewService builds a Service from the store and config.
func NewService(store *Store, cfg config.Config, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{
		store:          store,
		logger:         logger.With(logpkg.Component("registry")),
		livenessWindow: cfg.LivenessWindow.Std(),
		pullTimeout:    cfg.PullTimeout.Std(),
		apiKey:         cfg.APIKey,
		httpc:          &http.Client{},
		now:            time.Now,
	}
}

// Announce upserts a node record and refreshes its last_seen. Idempotent:
// re-announcing the same node only advances the timestamp.
func (s *Service) Announce(id, url, status string) error {
	if id == "" || url == "" {
		return fmt.Errorf("%w: id and url are required", ErrValidation)
	}
	if status == "" {
		status = StatusActive
	}
	if status != StatusActive && status != StatusInactive {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	n := Node{ID: id, URL: url, Status: status, LastSeen: s.now()}
	if err := s.store.PutNode(n); err != nil {
		return err
	}
	s.logger.Debug("node announced", logpkg.Str("node_id", id), logpkg.Str("url", url))
	return nil
}

// live reports whether a node counts as live right now. Computed from the
// stored record, never cached.
func (s *Service) live(n Node, now time.Time) bool {
	return n.Status == StatusActive && now.Sub(n.LastSeen) < s.livenessWindow
}

// ListActiveNodes returns nodes whose last_seen falls inside the liveness
// window. The registry is identity-agnostic: callers filter out their own
// id themselves.
func (s *Service) ListActiveNodes() ([]NodeInfo, error) {
	nodes, err := s.store.ListNodes()
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		if s.live(n, now) {
			out = append(out, NodeInfo{ID: n.ID, URL: n.URL})
		}
	}
	return out, nil
}

// ListChannels returns the names of every channel whose ACL is the
// wildcard or includes nodeID.
func (s *Service) ListChannels(nodeID string) ([]string, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrValidation)
	}
	channels, err := s.store.ListChannels()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		if c.Allows(nodeID) {
			out = append(out, c.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// UpsertChannel creates or replaces a channel's ACL.
func (s *Service) UpsertChannel(name string, allowedNodes []string) error {
	if name == "" || len(allowedNodes) == 0 {
		return fmt.Errorf("%w: name and allowed_nodes are required", ErrValidation)
	}
	return s.store.PutChannel(Channel{Name: name, AllowedNodes: allowedNodes})
}

// IngestMetrics stores the latest snapshot for a node, overwriting the
// previous one. A push also counts as a heartbeat: the node's last_seen
// is refreshed when the node is known.
func (s *Service) IngestMetrics(nodeID string, snapshot json.RawMessage) error {
	if nodeID == "" {
		return fmt.Errorf("%w: node id is required", ErrValidation)
	}
	if err := s.store.PutNodeMetrics(nodeID, snapshot); err != nil {
		return err
	}
	n, err := s.store.GetNode(nodeID)
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return nil
		}
		return err
	}
	n.LastSeen = s.now()
	return s.store.PutNode(n)
}

// ClusterMetrics pulls each active node's /metrics endpoint directly and
// folds the responses into a cluster aggregate. A node that fails to
// respond within the pull timeout contributes an error entry instead of
// aborting the aggregation.
func (s *Service) ClusterMetrics(ctx context.Context) (ClusterMetrics, error) {
	active, err := s.ListActiveNodes()
	if err != nil {
		return ClusterMetrics{}, err
	}

	out := ClusterMetrics{
		Timestamp:  s.now(),
		TotalNodes: len(active),
		Nodes:      make(map[string]json.RawMessage, len(active)),
		Summary: ClusterSummary{
			Channels: make(map[string]*ChannelSummary),
		},
	}

	type pulled struct {
		id   string
		raw  json.RawMessage
		snap *metrics.Snapshot
		err  error
	}
	results := make(chan pulled, len(active))
	var wg sync.WaitGroup
	for _, n := range active {
		wg.Add(1)
		go func(n NodeInfo) {
			defer wg.Done()
			raw, snap, err := s.pullNodeMetrics(ctx, n)
			results <- pulled{id: n.ID, raw: raw, snap: snap, err: err}
		}(n)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			s.logger.Warn("metrics pull failed", logpkg.Str("node_id", r.id), logpkg.Err(r.err))
			entry, _ := json.Marshal(map[string]string{"error": r.err.Error(), "status": "error"})
			out.Nodes[r.id] = entry
			continue
		}
		out.Nodes[r.id] = r.raw
		out.Summary.TotalClients += r.snap.Metrics.Clients.Total
		for name, stats := range r.snap.Metrics.Channels {
			cs, ok := out.Summary.Channels[name]
			if !ok {
				cs = &ChannelSummary{}
				out.Summary.Channels[name] = cs
			}
			cs.TotalSubscribers += stats.Subscribers
			cs.NodesServing++
		}
	}
	return out, nil
}

func (s *Service) pullNodeMetrics(ctx context.Context, n NodeInfo) (json.RawMessage, *metrics.Snapshot, error) {
	cctx, cancel := context.WithTimeout(ctx, s.pullTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, n.URL+"/metrics", nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-API-Key", s.apiKey)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("registry: node %s returned %s", n.ID, resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil, err
	}
	return raw, &snap, nil
}
