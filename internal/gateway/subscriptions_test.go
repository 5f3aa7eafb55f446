package gateway

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu   sync.Mutex
	msgs [][]byte
	fail bool
}

func (c *fakeConn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("closed")
	}
	c.msgs = append(c.msgs, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestSubscribeUnknownClient(t *testing.T) {
	tbl := NewSubscriptionTable()
	if err := tbl.Subscribe("nobody", "news", msgFilter{}); !errors.Is(err, ErrClientUnknown) {
		t.Fatalf("expected ErrClientUnknown, got %v", err)
	}
}

func TestDeliverCountsAndSkipsClosed(t *testing.T) {
	tbl := NewSubscriptionTable()
	a := &fakeConn{}
	b := &fakeConn{fail: true}
	tbl.AddClient("a", a)
	tbl.AddClient("b", b)
	if err := tbl.Subscribe("a", "news", msgFilter{}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Subscribe("b", "news", msgFilter{}); err != nil {
		t.Fatal(err)
	}

	delivered, total := tbl.Deliver("news", []byte(`{"x":1}`), FilterInput{Channel: "news"})
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	if a.count() != 1 {
		t.Fatalf("conn a received %d messages, want 1", a.count())
	}
}

func TestDeliverUnsubscribedChannel(t *testing.T) {
	tbl := NewSubscriptionTable()
	delivered, total := tbl.Deliver("ghost", []byte("x"), FilterInput{Channel: "ghost"})
	if delivered != 0 || total != 0 {
		t.Fatalf("delivered=%d total=%d, want 0/0", delivered, total)
	}
}

func TestRemoveClientPrunesEmptyChannels(t *testing.T) {
	tbl := NewSubscriptionTable()
	a := &fakeConn{}
	b := &fakeConn{}
	tbl.AddClient("a", a)
	tbl.AddClient("b", b)
	_ = tbl.Subscribe("a", "news", msgFilter{})
	_ = tbl.Subscribe("a", "alerts", msgFilter{})
	_ = tbl.Subscribe("b", "news", msgFilter{})

	tbl.RemoveClient("a")

	if got := tbl.Subscribers("news"); got != 1 {
		t.Fatalf("news subscribers = %d, want 1", got)
	}
	// alerts had only client a; the empty set must be pruned.
	if got := len(tbl.Channels()); got != 1 {
		t.Fatalf("channels = %v, want only news", tbl.Channels())
	}
	if got := tbl.ClientCount(); got != 1 {
		t.Fatalf("clients = %d, want 1", got)
	}

	// Removing an unknown client is a no-op.
	tbl.RemoveClient("ghost")
	if got := tbl.ClientCount(); got != 1 {
		t.Fatalf("clients after ghost remove = %d, want 1", got)
	}
}

func TestResubscribeIsIdempotent(t *testing.T) {
	tbl := NewSubscriptionTable()
	tbl.AddClient("a", &fakeConn{})
	_ = tbl.Subscribe("a", "news", msgFilter{})
	_ = tbl.Subscribe("a", "news", msgFilter{})
	if got := tbl.Subscribers("news"); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}
}

func TestSubscribersByChannel(t *testing.T) {
	tbl := NewSubscriptionTable()
	tbl.AddClient("a", &fakeConn{})
	tbl.AddClient("b", &fakeConn{})
	_ = tbl.Subscribe("a", "news", msgFilter{})
	_ = tbl.Subscribe("b", "news", msgFilter{})
	_ = tbl.Subscribe("b", "alerts", msgFilter{})

	got := tbl.SubscribersByChannel()
	if got["news"] != 2 || got["alerts"] != 1 {
		t.Fatalf("counts = %v", got)
	}
}
