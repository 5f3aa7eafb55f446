package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/metrics"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = "key"
	cfg.PullTimeout = config.Duration(2 * time.Second)
	return NewService(newTestStore(t), cfg, nil)
}

func TestAnnounceValidation(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Announce("", "http://a", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing id: %v", err)
	}
	if err := svc.Announce("n1", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing url: %v", err)
	}
	if err := svc.Announce("n1", "http://a", "zombie"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: %v", err)
	}
}

func TestAnnounceIdempotentAdvancesLastSeen(t *testing.T) {
	svc := newTestService(t)
	base := time.Now()
	clock := base
	svc.now = func() time.Time { return clock }

	if err := svc.Announce("n1", "http://a", ""); err != nil {
		t.Fatal(err)
	}
	first, err := svc.store.GetNode("n1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != StatusActive {
		t.Fatalf("empty status must default to active, got %q", first.Status)
	}

	clock = base.Add(10 * time.Second)
	if err := svc.Announce("n1", "http://a", "active"); err != nil {
		t.Fatal(err)
	}
	second, err := svc.store.GetNode("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !second.LastSeen.After(first.LastSeen) {
		t.Fatal("re-announce must advance last_seen")
	}

	nodes, err := svc.ListActiveNodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("re-announce must not duplicate: %v", nodes)
	}
}

func TestListActiveNodesLivenessWindow(t *testing.T) {
	svc := newTestService(t)
	base := time.Now()
	clock := base
	svc.now = func() time.Time { return clock }

	_ = svc.Announce("fresh", "http://a", "")
	_ = svc.Announce("stale", "http://b", "")
	_ = svc.Announce("off", "http://c", "inactive")

	// Push only the fresh node past the boundary minus a second.
	clock = base.Add(5*time.Minute - time.Second)
	_ = svc.Announce("fresh", "http://a", "")

	clock = base.Add(5 * time.Minute)
	nodes, err := svc.ListActiveNodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].ID != "fresh" {
		t.Fatalf("active = %v, want only fresh", nodes)
	}

	// Exactly at the window boundary a node is no longer live.
	clock = base.Add(10 * time.Minute)
	nodes, err = svc.ListActiveNodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Fatalf("active = %v, want none", nodes)
	}
}

func TestListChannelsACL(t *testing.T) {
	svc := newTestService(t)
	if err := svc.UpsertChannel("news", []string{Wildcard}); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpsertChannel("ops", []string{"n1"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpsertChannel("audit", []string{"n2"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListChannels("n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "news" || got[1] != "ops" {
		t.Fatalf("channels for n1 = %v", got)
	}

	got, err = svc.ListChannels("n3")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "news" {
		t.Fatalf("channels for n3 = %v", got)
	}

	if _, err := svc.ListChannels(""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty node id: %v", err)
	}
}

func TestUpsertChannelValidation(t *testing.T) {
	svc := newTestService(t)
	if err := svc.UpsertChannel("", []string{"n1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty name: %v", err)
	}
	if err := svc.UpsertChannel("news", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty ACL: %v", err)
	}
}

func TestIngestMetricsHeartbeat(t *testing.T) {
	svc := newTestService(t)
	base := time.Now()
	clock := base
	svc.now = func() time.Time { return clock }

	_ = svc.Announce("n1", "http://a", "")

	clock = base.Add(time.Minute)
	if err := svc.IngestMetrics("n1", json.RawMessage(`{"nodeId":"n1"}`)); err != nil {
		t.Fatal(err)
	}
	n, err := svc.store.GetNode("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !n.LastSeen.Equal(clock) {
		t.Fatalf("metrics push must refresh last_seen, got %v", n.LastSeen)
	}
}

func TestIngestMetricsUnknownNode(t *testing.T) {
	svc := newTestService(t)
	if err := svc.IngestMetrics("ghost", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unknown node must not error: %v", err)
	}
	if _, err := svc.store.GetNode("ghost"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatal("a metrics push must not create a node record")
	}
	raw, err := svc.store.GetNodeMetrics("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if raw == nil {
		t.Fatal("snapshot must still be stored")
	}
}

func metricsHandler(t *testing.T, snap metrics.Snapshot) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
}

func TestClusterMetricsAggregation(t *testing.T) {
	svc := newTestService(t)

	snapA := metrics.Snapshot{
		NodeID: "a",
		Metrics: metrics.Body{
			Clients:  metrics.ClientStats{Total: 3},
			Channels: map[string]metrics.ChannelStats{"news": {Subscribers: 2}},
		},
	}
	snapB := metrics.Snapshot{
		NodeID: "b",
		Metrics: metrics.Body{
			Clients: metrics.ClientStats{Total: 2},
			Channels: map[string]metrics.ChannelStats{
				"news": {Subscribers: 1},
				"ops":  {Subscribers: 4},
			},
		},
	}

	srvA := httptest.NewServer(metricsHandler(t, snapA))
	defer srvA.Close()
	srvB := httptest.NewServer(metricsHandler(t, snapB))
	defer srvB.Close()
	// A third node that is registered but unreachable.
	srvC := httptest.NewServer(http.NotFoundHandler())
	deadURL := srvC.URL
	srvC.Close()

	_ = svc.Announce("a", srvA.URL, "")
	_ = svc.Announce("b", srvB.URL, "")
	_ = svc.Announce("c", deadURL, "")

	agg, err := svc.ClusterMetrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalNodes != 3 {
		t.Fatalf("totalNodes = %d, want 3", agg.TotalNodes)
	}
	if len(agg.Nodes) != 3 {
		t.Fatalf("nodes = %v", agg.Nodes)
	}

	// The unreachable node contributes an error entry, not an abort.
	var entry map[string]string
	if err := json.Unmarshal(agg.Nodes["c"], &entry); err != nil {
		t.Fatal(err)
	}
	if entry["status"] != "error" || entry["error"] == "" {
		t.Fatalf("error entry = %v", entry)
	}

	// Summaries cover responding nodes only.
	if agg.Summary.TotalClients != 5 {
		t.Fatalf("totalClients = %d, want 5", agg.Summary.TotalClients)
	}
	news := agg.Summary.Channels["news"]
	if news == nil || news.TotalSubscribers != 3 || news.NodesServing != 2 {
		t.Fatalf("news summary = %+v", news)
	}
	ops := agg.Summary.Channels["ops"]
	if ops == nil || ops.TotalSubscribers != 4 || ops.NodesServing != 1 {
		t.Fatalf("ops summary = %+v", ops)
	}
}
