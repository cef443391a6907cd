// Package providers implements the broker's service surface: runtime
// messaging, port management, extension storage, and alarms. Each
// provider translates wire-level method calls into operations on the
// underlying engines and normalizes results and errors into the shared
// Result shape.
package providers
