package regclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/registry"
)

func newRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := registry.OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.Default()
	cfg.APIKey = "key"
	svc := registry.NewService(store, cfg, nil)
	srv := httptest.NewServer(registry.NewServer(svc, "key", nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundtrip(t *testing.T) {
	srv := newRegistry(t)
	c := New(srv.URL+"/", "key") // trailing slash is trimmed
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Announce(ctx, "n1", "http://a:8080", "active"); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertChannel(ctx, "news", []string{"*"}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertChannel(ctx, "ops", []string{"n2"}); err != nil {
		t.Fatal(err)
	}

	nodes, err := c.ActiveNodes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].ID != "n1" {
		t.Fatalf("nodes = %v", nodes)
	}

	channels, err := c.Channels(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 1 || channels[0] != "news" {
		t.Fatalf("channels = %v", channels)
	}

	if err := c.PushMetrics(ctx, "n1", map[string]string{"nodeId": "n1"}); err != nil {
		t.Fatal(err)
	}
}

func TestClientRejectedKey(t *testing.T) {
	srv := newRegistry(t)
	c := New(srv.URL, "wrong")
	ctx := context.Background()

	err := c.Announce(ctx, "n1", "http://a", "active")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if _, err := c.ActiveNodes(ctx); err == nil {
		t.Fatal("expected error with wrong key")
	}
}
