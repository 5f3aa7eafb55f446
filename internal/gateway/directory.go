package gateway

import (
	"context"
	"errors"
	"sync"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// Directory errors surfaced to subscribing clients.
var (
	// ErrChannelsNotLoaded marks the startup grace window before the first
	// successful refresh: the ACL is unknown, so subscribes are rejected
	// explicitly instead of guessed at.
	ErrChannelsNotLoaded = errors.New("gateway: channel list not loaded")
	// ErrChannelNotAllowed means the registry does not permit this node to
	// serve the channel.
	ErrChannelNotAllowed = errors.New("gateway: invalid channel")
)

// Directory is the gateway's cached view of other live gateways and the
// channels this node may serve. A refresh atomically replaces the whole
// snapshot; a failed refresh keeps the previous one.
type Directory struct {
	selfID string
	rc     *regclient.Client
	logger logpkg.Logger

	mu       sync.RWMutex
	peers    []regclient.NodeInfo
	channels map[string]struct{}
	loaded   bool
}

// NewDirectory builds a Directory for the given node id.
func NewDirectory(selfID string, rc *regclient.Client, logger logpkg.Logger) *Directory {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Directory{
		selfID: selfID,
		rc:     rc,
		logger: logger.With(logpkg.Component("directory")),
	}
}

// Refresh fetches the active-node list and this node's permitted channels
// from the registry and atomically replaces the snapshot. On failure the
// previous snapshot is retained and the error returned.
func (d *Directory) Refresh(ctx context.Context) error {
	nodes, err := d.rc.ActiveNodes(ctx)
	if err != nil {
		d.logger.Warn("node list refresh failed", logpkg.Err(err))
		return err
	}
	channels, err := d.rc.Channels(ctx, d.selfID)
	if err != nil {
		d.logger.Warn("channel list refresh failed", logpkg.Err(err))
		return err
	}

	// The directory never includes this node's own id.
	peers := make([]regclient.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		if n.ID != d.selfID {
			peers = append(peers, n)
		}
	}
	set := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		set[c] = struct{}{}
	}

	d.mu.Lock()
	d.peers = peers
	d.channels = set
	d.loaded = true
	d.mu.Unlock()

	d.logger.Debug("directory refreshed",
		logpkg.Int("peers", len(peers)),
		logpkg.Int("channels", len(channels)),
	)
	return nil
}

// Allowed reports whether this node may serve the channel. Before the
// first successful refresh it returns ErrChannelsNotLoaded.
func (d *Directory) Allowed(channel string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		return ErrChannelsNotLoaded
	}
	if _, ok := d.channels[channel]; !ok {
		return ErrChannelNotAllowed
	}
	return nil
}

// Peers returns a copy of the current peer list, self excluded.
func (d *Directory) Peers() []regclient.NodeInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]regclient.NodeInfo(nil), d.peers...)
}

// PeerIDs returns the ids of the current peers.
func (d *Directory) PeerIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p.ID)
	}
	return out
}
