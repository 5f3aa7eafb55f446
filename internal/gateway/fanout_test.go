package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
)

// recordingPeer captures the forward envelopes another gateway posts to it.
type recordingPeer struct {
	mu       sync.Mutex
	received []forwardRequest
	fail     bool
	srv      *httptest.Server
}

func newRecordingPeer(t *testing.T) *recordingPeer {
	t.Helper()
	p := &recordingPeer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /broadcast", func(w http.ResponseWriter, r *http.Request) {
		var req forwardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		fail := p.fail
		if !fail {
			p.received = append(p.received, req)
		}
		p.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *recordingPeer) envelopes() []forwardRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]forwardRequest(nil), p.received...)
}

func newTestEngine(t *testing.T, table *SubscriptionTable, peers ...*recordingPeer) *Engine {
	t.Helper()
	st, reg := newStubRegistry(t)
	infos := make([]regclient.NodeInfo, 0, len(peers)+1)
	infos = append(infos, regclient.NodeInfo{ID: "n1", URL: "http://self"})
	for i, p := range peers {
		infos = append(infos, regclient.NodeInfo{ID: fmt.Sprintf("n%d", i+2), URL: p.srv.URL})
	}
	st.nodes.Store(infos)
	st.channels.Store([]string{"news"})

	dir := NewDirectory("n1", regclient.New(reg.URL, "key"), nil)
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewEngine("n1", "key", table, dir, NewAggregator("n1"), 2*time.Second, nil)
}

func TestPublishForwardsOnceToEveryPeer(t *testing.T) {
	p1 := newRecordingPeer(t)
	p2 := newRecordingPeer(t)
	tbl := NewSubscriptionTable()
	local := &fakeConn{}
	tbl.AddClient("c1", local)
	_ = tbl.Subscribe("c1", "news", msgFilter{})

	e := newTestEngine(t, tbl, p1, p2)
	res, err := e.Publish(context.Background(), "news", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Forwarded != 2 || res.ForwardFailures != 0 {
		t.Fatalf("forwarded=%d failures=%d, want 2/0", res.Forwarded, res.ForwardFailures)
	}
	if res.Delivered != 1 || res.Total != 1 {
		t.Fatalf("delivered=%d total=%d, want 1/1", res.Delivered, res.Total)
	}
	for _, p := range []*recordingPeer{p1, p2} {
		got := p.envelopes()
		if len(got) != 1 {
			t.Fatalf("peer received %d envelopes, want exactly 1", len(got))
		}
		if got[0].Origin != "n1" {
			t.Fatalf("origin = %q, want n1", got[0].Origin)
		}
		if got[0].Channel != "news" || got[0].Message != "hello" {
			t.Fatalf("envelope = %+v", got[0])
		}
	}
}

func TestPublishWithOriginNeverForwards(t *testing.T) {
	p1 := newRecordingPeer(t)
	tbl := NewSubscriptionTable()
	local := &fakeConn{}
	tbl.AddClient("c1", local)
	_ = tbl.Subscribe("c1", "news", msgFilter{})

	e := newTestEngine(t, tbl, p1)
	res, err := e.Publish(context.Background(), "news", "relayed", "n2")
	if err != nil {
		t.Fatal(err)
	}
	if res.Forwarded != 0 || res.ForwardFailures != 0 {
		t.Fatalf("relayed publish must not forward: %+v", res)
	}
	if res.Delivered != 1 {
		t.Fatalf("delivered = %d, want 1", res.Delivered)
	}
	if got := p1.envelopes(); len(got) != 0 {
		t.Fatalf("peer received %d envelopes, want 0", len(got))
	}
}

func TestPublishToleratesPeerFailure(t *testing.T) {
	p1 := newRecordingPeer(t)
	p2 := newRecordingPeer(t)
	p2.fail = true
	tbl := NewSubscriptionTable()
	local := &fakeConn{}
	tbl.AddClient("c1", local)
	_ = tbl.Subscribe("c1", "news", msgFilter{})

	e := newTestEngine(t, tbl, p1, p2)
	res, err := e.Publish(context.Background(), "news", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Forwarded != 1 || res.ForwardFailures != 1 {
		t.Fatalf("forwarded=%d failures=%d, want 1/1", res.Forwarded, res.ForwardFailures)
	}
	if res.Delivered != 1 {
		t.Fatal("peer failure must not block local delivery")
	}
}

func TestPublishedPayloadShape(t *testing.T) {
	tbl := NewSubscriptionTable()
	local := &fakeConn{}
	tbl.AddClient("c1", local)
	_ = tbl.Subscribe("c1", "news", msgFilter{})

	e := newTestEngine(t, tbl)
	if _, err := e.Publish(context.Background(), "news", "hello", ""); err != nil {
		t.Fatal(err)
	}

	local.mu.Lock()
	defer local.mu.Unlock()
	if len(local.msgs) != 1 {
		t.Fatalf("local client received %d messages", len(local.msgs))
	}
	var got broadcastPayload
	if err := json.Unmarshal(local.msgs[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "broadcast" || got.Channel != "news" || got.Message != "hello" || got.NodeID != "n1" {
		t.Fatalf("payload = %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", got.Timestamp, err)
	}
}
