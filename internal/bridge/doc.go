// Package bridge dispatches the call surface exposed to script
// contexts. Each broker subsystem registers a provider under a service
// prefix; the transport hands inbound calls here by dotted method id.
package bridge
