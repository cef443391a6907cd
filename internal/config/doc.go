// Package config loads bridge configuration from environment variables
// with sane defaults: server address, messaging timeouts, the storage
// quota and backend, logging, and rate limits.
package config
