// Package registry implements the coordination service gateways register
// with: a durable directory of nodes and channel ACLs plus cluster-wide
// metrics aggregation.
//
// Liveness is computed at query time from last_seen, never stored: a node
// counts as live only while its status is active and its last heartbeat is
// inside the liveness window. Announce, heartbeat, and channel upsert are
// idempotent; a metrics push doubles as a heartbeat.
//
// Example:
//
//	store, _ := registry.OpenStore(dataDir)
//	svc := registry.NewService(store, cfg, logger)
//	srv := registry.NewServer(svc, cfg.APIKey, logger)
//	_ = srv.ListenAndServe(ctx, cfg.RegistryAddr)
package registry
