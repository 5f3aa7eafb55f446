// Package client contains Cobra CLI commands for operating a cluster:
// node listing, channel ACL management, broadcasting, and cluster-wide
// metrics. Commands talk to the registry and gateways over their HTTP
// APIs using the shared API key.
package client
