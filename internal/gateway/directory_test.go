package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
)

// stubRegistry serves the two read endpoints a directory refresh hits.
type stubRegistry struct {
	nodes    atomic.Value // []regclient.NodeInfo
	channels atomic.Value // []string
	failing  atomic.Bool
}

func newStubRegistry(t *testing.T) (*stubRegistry, *httptest.Server) {
	t.Helper()
	st := &stubRegistry{}
	st.nodes.Store([]regclient.NodeInfo{})
	st.channels.Store([]string{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /nodes", func(w http.ResponseWriter, r *http.Request) {
		if st.failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(st.nodes.Load())
	})
	mux.HandleFunc("GET /channels/{nodeId}", func(w http.ResponseWriter, r *http.Request) {
		if st.failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(st.channels.Load())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return st, srv
}

func TestDirectoryGraceBeforeFirstRefresh(t *testing.T) {
	_, srv := newStubRegistry(t)
	d := NewDirectory("n1", regclient.New(srv.URL, "k"), nil)

	if err := d.Allowed("news"); !errors.Is(err, ErrChannelsNotLoaded) {
		t.Fatalf("expected ErrChannelsNotLoaded, got %v", err)
	}
	if got := d.Peers(); len(got) != 0 {
		t.Fatalf("peers before refresh = %v", got)
	}
}

func TestDirectoryRefreshExcludesSelf(t *testing.T) {
	st, srv := newStubRegistry(t)
	st.nodes.Store([]regclient.NodeInfo{
		{ID: "n1", URL: "http://a"},
		{ID: "n2", URL: "http://b"},
		{ID: "n3", URL: "http://c"},
	})
	st.channels.Store([]string{"news"})

	d := NewDirectory("n1", regclient.New(srv.URL, "k"), nil)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	peers := d.PeerIDs()
	if len(peers) != 2 {
		t.Fatalf("peers = %v, want n2 and n3", peers)
	}
	for _, id := range peers {
		if id == "n1" {
			t.Fatal("directory must never include its own node")
		}
	}
	if err := d.Allowed("news"); err != nil {
		t.Fatalf("news should be allowed: %v", err)
	}
	if err := d.Allowed("secrets"); !errors.Is(err, ErrChannelNotAllowed) {
		t.Fatalf("expected ErrChannelNotAllowed, got %v", err)
	}
}

func TestDirectoryFailedRefreshKeepsSnapshot(t *testing.T) {
	st, srv := newStubRegistry(t)
	st.nodes.Store([]regclient.NodeInfo{{ID: "n2", URL: "http://b"}})
	st.channels.Store([]string{"news"})

	d := NewDirectory("n1", regclient.New(srv.URL, "k"), nil)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	st.failing.Store(true)
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	// The previous snapshot stays in force.
	if err := d.Allowed("news"); err != nil {
		t.Fatalf("news should still be allowed: %v", err)
	}
	if got := d.PeerIDs(); len(got) != 1 || got[0] != "n2" {
		t.Fatalf("peers = %v, want [n2]", got)
	}
}
