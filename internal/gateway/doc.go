// Package gateway implements a fan-out node: it holds live websocket
// client connections, tracks per-channel subscriber sets, and propagates
// each externally originated publish to every other live gateway exactly
// once.
//
// The pieces fit together as follows. The SubscriptionTable owns the
// channel -> subscriber mapping and local delivery. The Directory is the
// periodically refreshed snapshot of other live gateways and the channels
// this node may serve. The Engine performs the one-hop, origin-stamped
// fan-out: a fresh publish is forwarded to every peer in the directory
// concurrently and then delivered locally; a forwarded publish is only
// delivered locally, never re-forwarded. The Aggregator keeps the node's
// lifetime and rolling-window counters and the Gateway pushes its
// snapshot to the registry on a fixed interval.
//
// Example:
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { /* fatal: bad config */ }
//	_ = gw.Run(ctx)
package gateway
