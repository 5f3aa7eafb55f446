// Package registryrun wires configuration, logging, storage, and signal
// handling around a registry process.
package registryrun
