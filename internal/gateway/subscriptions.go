package gateway

import (
	"errors"
	"sync"
)

// ErrClientUnknown is returned when subscribing on behalf of a client id
// with no open connection.
var ErrClientUnknown = errors.New("gateway: unknown client")

// ClientConn is the connection handle the table delivers through. Send
// returns an error when the connection has closed; delivery skips such
// subscribers instead of failing the broadcast.
type ClientConn interface {
	Send(payload []byte) error
}

type subscription struct {
	filter msgFilter
}

// SubscriptionTable is the gateway-local mapping from channel name to the
// set of connected subscriber ids, and from client id to its connection.
// All compound mutations happen under one lock so that
// create-set-if-absent-then-insert cannot race with itself.
type SubscriptionTable struct {
	mu       sync.RWMutex
	clients  map[string]ClientConn
	channels map[string]map[string]*subscription
}

// NewSubscriptionTable returns an empty table.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{
		clients:  make(map[string]ClientConn),
		channels: make(map[string]map[string]*subscription),
	}
}

// AddClient registers a connected client.
func (t *SubscriptionTable) AddClient(clientID string, conn ClientConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[clientID] = conn
}

// Subscribe adds the client to the channel's subscriber set, creating the
// set if absent. The caller performs the ACL check first.
func (t *SubscriptionTable) Subscribe(clientID, channel string, filter msgFilter) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[clientID]; !ok {
		return ErrClientUnknown
	}
	subs, ok := t.channels[channel]
	if !ok {
		subs = make(map[string]*subscription)
		t.channels[channel] = subs
	}
	subs[clientID] = &subscription{filter: filter}
	return nil
}

// RemoveClient drops the client's connection and removes it from every
// channel's subscriber set, pruning sets that become empty. Called exactly
// once, when the connection closes.
func (t *SubscriptionTable) RemoveClient(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, clientID)
	for channel, subs := range t.channels {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(t.channels, channel)
		}
	}
}

// Deliver sends payload to every subscriber of channel whose connection is
// still open and whose filter matches, and returns how many receives
// succeeded along with the channel's subscriber count. Subscribers whose
// connection has closed are skipped, not errored on.
func (t *SubscriptionTable) Deliver(channel string, payload []byte, in FilterInput) (delivered, total int) {
	t.mu.RLock()
	subs := t.channels[channel]
	total = len(subs)
	type target struct {
		conn ClientConn
		sub  *subscription
	}
	targets := make([]target, 0, total)
	for clientID, sub := range subs {
		if conn, ok := t.clients[clientID]; ok {
			targets = append(targets, target{conn: conn, sub: sub})
		}
	}
	t.mu.RUnlock()

	for _, tg := range targets {
		if !tg.sub.filter.Eval(in) {
			continue
		}
		if err := tg.conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered, total
}

// Subscribers returns the subscriber count for one channel.
func (t *SubscriptionTable) Subscribers(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.channels[channel])
}

// SubscribersByChannel returns a snapshot of subscriber counts per channel.
func (t *SubscriptionTable) SubscribersByChannel() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.channels))
	for channel, subs := range t.channels {
		out[channel] = len(subs)
	}
	return out
}

// ClientCount returns the number of open connections.
func (t *SubscriptionTable) ClientCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Channels returns the channels that currently have subscribers.
func (t *SubscriptionTable) Channels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.channels))
	for channel := range t.channels {
		out = append(out, channel)
	}
	return out
}
