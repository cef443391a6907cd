// Package server assembles the broker: scheduling wheel, correlation
// registry, context directory, routing, ports, storage, alarms and the
// HTTP/WebSocket surface, wired from configuration.
package server
