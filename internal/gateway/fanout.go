package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// broadcastPayload is the message delivered to local subscribers.
type broadcastPayload struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	NodeID    string `json:"nodeId"`
}

// forwardRequest is the envelope posted to a peer gateway's /broadcast.
// Origin carries this node's id so the peer delivers locally only and
// never forwards again.
type forwardRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
	APIKey  string `json:"apiKey"`
	Origin  string `json:"origin"`
}

// PublishResult reports the local outcome of a publish. Remote gateways'
// subscriber counts are not visible to the origin; only the forward tally
// is.
type PublishResult struct {
	Delivered       int
	Total           int
	Forwarded       int
	ForwardFailures int
}

// Engine propagates publishes: one hop to every peer in the directory for
// fresh publishes, local delivery always.
type Engine struct {
	nodeID         string
	apiKey         string
	table          *SubscriptionTable
	dir            *Directory
	agg            *Aggregator
	logger         logpkg.Logger
	httpc          *http.Client
	forwardTimeout time.Duration
}

// NewEngine builds the fan-out engine.
func NewEngine(nodeID, apiKey string, table *SubscriptionTable, dir *Directory, agg *Aggregator, forwardTimeout time.Duration, logger logpkg.Logger) *Engine {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Engine{
		nodeID:         nodeID,
		apiKey:         apiKey,
		table:          table,
		dir:            dir,
		agg:            agg,
		logger:         logger.With(logpkg.Component("fanout")),
		httpc:          &http.Client{},
		forwardTimeout: forwardTimeout,
	}
}

// Publish fans a message out. When origin is empty the publish is fresh:
// it is first forwarded, stamped with this node's id, to every peer in the
// directory, then delivered locally. When origin is set the message
// arrived from another gateway and is delivered locally only. Peer
// forwarding failures are tolerated per peer and never block local
// delivery.
func (e *Engine) Publish(ctx context.Context, channel, message, origin string) (PublishResult, error) {
	var res PublishResult
	if origin == "" {
		res.Forwarded, res.ForwardFailures = e.forwardToPeers(ctx, channel, message)
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(broadcastPayload{
		Type:      "broadcast",
		Channel:   channel,
		Message:   message,
		Timestamp: now.Format(time.RFC3339),
		NodeID:    e.nodeID,
	})
	if err != nil {
		return res, err
	}

	in := FilterInput{Channel: channel, Text: message, TsMs: now.UnixMilli()}
	res.Delivered, res.Total = e.table.Deliver(channel, payload, in)
	if res.Total > 0 {
		e.agg.RecordBroadcast(channel, len(payload))
	}

	e.logger.Info("broadcast delivered",
		logpkg.Str("channel", channel),
		logpkg.Int("delivered", res.Delivered),
		logpkg.Int("subscribers", res.Total),
		logpkg.Int("forwarded", res.Forwarded),
		logpkg.Int("forward_failures", res.ForwardFailures),
	)
	return res, nil
}

// forwardToPeers posts the envelope to every peer concurrently with an
// independent per-peer timeout and waits for all attempts to settle. It
// never short-circuits on the first failure.
func (e *Engine) forwardToPeers(ctx context.Context, channel, message string) (forwarded, failures int) {
	peers := e.dir.Peers()
	if len(peers) == 0 {
		return 0, 0
	}

	body, err := json.Marshal(forwardRequest{
		Channel: channel,
		Message: message,
		APIKey:  e.apiKey,
		Origin:  e.nodeID,
	})
	if err != nil {
		return 0, len(peers)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, peer := range peers {
		wg.Add(1)
		go func(peer regclient.NodeInfo) {
			defer wg.Done()
			err := e.forwardToPeer(ctx, peer, body)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				e.logger.Warn("forward failed",
					logpkg.Str("peer_id", peer.ID),
					logpkg.Str("channel", channel),
					logpkg.Err(err),
				)
				return
			}
			forwarded++
		}(peer)
	}
	wg.Wait()

	e.logger.Info("message forwarded",
		logpkg.Str("channel", channel),
		logpkg.Int("ok", forwarded),
		logpkg.Int("peers", len(peers)),
	)
	return forwarded, failures
}

func (e *Engine) forwardToPeer(ctx context.Context, peer regclient.NodeInfo, body []byte) error {
	cctx, cancel := context.WithTimeout(ctx, e.forwardTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, peer.URL+"/broadcast", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: peer returned %s", resp.Status)
	}
	return nil
}
