// Package ws attaches script contexts to the broker over WebSocket.
// Each connection performs an attach handshake, then exchanges JSON
// envelopes: calls in, results and deliveries out, replies back in.
package ws
