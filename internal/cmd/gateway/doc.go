// Package gatewayrun wires configuration, logging, and signal handling
// around a gateway node process.
package gatewayrun
