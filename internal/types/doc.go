// Package types defines shared data structures for the bridge: the wire
// envelope exchanged with script contexts, service and method definitions
// for the call surface, and the broker error taxonomy.
package types
