package registry

import (
	"encoding/json"
	"errors"
	"time"

	pebblestore "github.com/ersinkoc/DistributedWebSocket/internal/storage/pebble"
)

// Wildcard marks a channel as servable by every node.
const Wildcard = "*"

// Node statuses. Liveness is derived from LastSeen at query time; the
// stored status only records what the node last announced.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Node is a registered gateway.
type Node struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Channel is a named channel with its ACL. AllowedNodes is either the
// single Wildcard entry or an explicit set of node ids.
type Channel struct {
	Name         string   `json:"name"`
	AllowedNodes []string `json:"allowed_nodes"`
}

// Allows reports whether the ACL permits nodeID.
func (c Channel) Allows(nodeID string) bool {
	for _, n := range c.AllowedNodes {
		if n == Wildcard || n == nodeID {
			return true
		}
	}
	return false
}

// ErrNodeNotFound is returned when a node id has never been announced.
var ErrNodeNotFound = errors.New("registry: node not found")

var (
	nodePrefix        = []byte("node/")
	channelPrefix     = []byte("channel/")
	nodeMetricsPrefix = []byte("nodemetrics/")
)

// Store is the registry's durable data layer over Pebble. It holds the
// node table, the channel table, and the latest metrics snapshot per node.
type Store struct {
	db *pebblestore.DB
}

// OpenStore opens the registry store in dataDir.
func OpenStore(dataDir string) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: dataDir,
		Fsync:   pebblestore.FsyncModeInterval,
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-open DB. Used by tests.
func NewStoreWithDB(db *pebblestore.DB) *Store { return &Store{db: db} }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CheckHealth verifies the underlying database is usable.
func (s *Store) CheckHealth() error { return s.db.CheckHealth() }

func nodeKey(id string) []byte      { return append(append([]byte(nil), nodePrefix...), id...) }
func channelKey(name string) []byte { return append(append([]byte(nil), channelPrefix...), name...) }

func nodeMetricsKey(id string) []byte {
	return append(append([]byte(nil), nodeMetricsPrefix...), id...)
}

// PutNode upserts a node record.
func (s *Store) PutNode(n Node) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.db.Set(nodeKey(n.ID), b)
}

// GetNode fetches a node record by id.
func (s *Store) GetNode(id string) (Node, error) {
	b, err := s.db.Get(nodeKey(id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Node{}, ErrNodeNotFound
		}
		return Node{}, err
	}
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return Node{}, err
	}
	return n, nil
}

// ListNodes returns every stored node record.
func (s *Store) ListNodes() ([]Node, error) {
	var nodes []Node
	err := s.db.ScanPrefix(nodePrefix, func(_, v []byte) error {
		var n Node
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		nodes = append(nodes, n)
		return nil
	})
	return nodes, err
}

// PutChannel upserts a channel's ACL.
func (s *Store) PutChannel(c Channel) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Set(channelKey(c.Name), b)
}

// ListChannels returns every stored channel.
func (s *Store) ListChannels() ([]Channel, error) {
	var channels []Channel
	err := s.db.ScanPrefix(channelPrefix, func(_, v []byte) error {
		var c Channel
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		channels = append(channels, c)
		return nil
	})
	return channels, err
}

// PutNodeMetrics overwrites the latest snapshot for a node. No history is
// retained.
func (s *Store) PutNodeMetrics(id string, snapshot json.RawMessage) error {
	return s.db.Set(nodeMetricsKey(id), snapshot)
}

// GetNodeMetrics returns the latest stored snapshot for a node, or nil
// when none has been pushed yet.
func (s *Store) GetNodeMetrics(id string) (json.RawMessage, error) {
	b, err := s.db.Get(nodeMetricsKey(id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
