package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ersinkoc/DistributedWebSocket/internal/config"
	"github.com/ersinkoc/DistributedWebSocket/internal/metrics"
	regclient "github.com/ersinkoc/DistributedWebSocket/internal/registry/client"
	"github.com/ersinkoc/DistributedWebSocket/pkg/id"
	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// Gateway wires the subscription table, directory cache, fan-out engine,
// and metrics aggregator into one node process.
type Gateway struct {
	cfg       config.Config
	nodeID    string
	publicURL string
	logger    logpkg.Logger

	table  *SubscriptionTable
	dir    *Directory
	agg    *Aggregator
	engine *Engine
	rc     *regclient.Client
	ids    *id.Generator
	server *Server
}

// New builds a Gateway from config. Missing registry URL or API key is a
// fatal configuration error.
func New(cfg config.Config, logger logpkg.Logger) (*Gateway, error) {
	if err := cfg.ValidateGateway(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	ids := id.NewGenerator()
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = ids.Next().String()
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = defaultPublicURL(cfg.GatewayAddr)
	}

	g := &Gateway{
		cfg:       cfg,
		nodeID:    nodeID,
		publicURL: publicURL,
		logger:    logger.With(logpkg.Component("gateway"), logpkg.Str("node_id", nodeID)),
		table:     NewSubscriptionTable(),
		agg:       NewAggregator(nodeID),
		rc:        regclient.New(cfg.RegistryURL, cfg.APIKey),
		ids:       ids,
	}
	g.dir = NewDirectory(nodeID, g.rc, g.logger)
	g.engine = NewEngine(nodeID, cfg.APIKey, g.table, g.dir, g.agg, cfg.ForwardTimeout.Std(), g.logger)
	g.server = NewServer(g)
	return g, nil
}

// NodeID returns this gateway's id.
func (g *Gateway) NodeID() string { return g.nodeID }

func defaultPublicURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// Run announces the node, performs the initial directory refresh, and
// serves until ctx is cancelled. The initial refresh is attempted before
// the gateway accepts traffic; when it fails the gateway starts anyway in
// an explicit ACL-unknown grace mode and keeps retrying on the refresh
// interval.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("gateway starting",
		logpkg.Str("addr", g.cfg.GatewayAddr),
		logpkg.Str("public_url", g.publicURL),
		logpkg.Str("registry_url", g.cfg.RegistryURL),
	)

	g.announce(ctx)
	if err := g.dir.Refresh(ctx); err != nil {
		g.logger.Warn("starting without channel list; subscriptions rejected until first refresh", logpkg.Err(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.directoryLoop(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.metricsLoop(ctx)
	}()

	err := g.server.ListenAndServe(ctx, g.cfg.GatewayAddr)
	wg.Wait()
	return err
}

func (g *Gateway) announce(ctx context.Context) {
	if err := g.rc.Announce(ctx, g.nodeID, g.publicURL, "active"); err != nil {
		g.logger.Warn("announce failed", logpkg.Err(err))
	}
}

// directoryLoop re-announces this node and refreshes the directory cache
// on a fixed interval. Failures keep the previous snapshot.
func (g *Gateway) directoryLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.RefreshInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.announce(ctx)
			_ = g.dir.Refresh(ctx)
		}
	}
}

// metricsLoop samples system figures, rotates the one-minute window, and
// pushes the snapshot to the registry. Push failures are logged; local
// counters are authoritative regardless.
func (g *Gateway) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.MetricsInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.agg.SampleSystem()
			g.agg.RotateWindow()
			if err := g.rc.PushMetrics(ctx, g.nodeID, g.snapshot()); err != nil {
				g.logger.Warn("metrics push failed", logpkg.Err(err))
			}
		}
	}
}

// snapshot assembles the node's current metrics snapshot.
func (g *Gateway) snapshot() metrics.Snapshot {
	return g.agg.Snapshot(g.table.ClientCount(), g.table.SubscribersByChannel(), g.dir.PeerIDs())
}
