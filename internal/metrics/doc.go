// Package metrics defines the node metrics snapshot exchanged between
// gateways and the registry. Gateways build and push snapshots; the
// registry stores the latest per node and folds pulled snapshots into a
// cluster-wide summary.
package metrics
