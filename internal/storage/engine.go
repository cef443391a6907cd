package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/types"
	"go.uber.org/zap"
)

// DefaultQuota is the fixed maximum serialized size of one extension's
// mapping, shared across extensions.
const DefaultQuota = 10 << 20

// Change describes one key's transition in a mutation
type Change struct {
	OldValue interface{} `json:"oldValue,omitempty"`
	NewValue interface{} `json:"newValue,omitempty"`
}

// Listener receives the change-set emitted after a successful mutation
type Listener func(extensionID string, changes map[string]Change)

// Engine is the quota-enforced per-extension key/value store. Mutations
// for a single extension are serialized, and a mutation that would push
// the serialized mapping past the quota is rejected in full, leaving the
// durable mapping untouched.
type Engine struct {
	mu        sync.Mutex
	store     Store
	quota     int
	cache     map[string]map[string]interface{}
	listeners []Listener
	logger    *logging.Logger
}

// NewEngine creates an engine over the given durable store
func NewEngine(store Store, quota int, logger *logging.Logger) *Engine {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Engine{
		store:  store,
		quota:  quota,
		cache:  make(map[string]map[string]interface{}),
		logger: logger.Component("storage"),
	}
}

// Subscribe registers a change-set listener. Listeners run after the
// mutation has been persisted.
func (e *Engine) Subscribe(fn Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Get returns the values for keys, or the whole mapping when keys is nil.
// Absent keys are omitted from the result.
func (e *Engine) Get(extensionID string, keys []string) (map[string]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mapping, err := e.loadLocked(extensionID)
	if err != nil {
		return nil, err
	}

	if keys == nil {
		out := make(map[string]interface{}, len(mapping))
		for k, v := range mapping {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := mapping[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Set writes items into the mapping. Every written key appears in the
// change-set, including same-value overwrites.
func (e *Engine) Set(extensionID string, items map[string]interface{}) error {
	return e.mutate(extensionID, func(mapping map[string]interface{}) map[string]Change {
		changes := make(map[string]Change, len(items))
		for k, v := range items {
			changes[k] = Change{OldValue: mapping[k], NewValue: v}
			mapping[k] = v
		}
		return changes
	})
}

// Remove deletes keys from the mapping. Absent keys are ignored.
func (e *Engine) Remove(extensionID string, keys []string) error {
	return e.mutate(extensionID, func(mapping map[string]interface{}) map[string]Change {
		changes := make(map[string]Change)
		for _, k := range keys {
			if old, ok := mapping[k]; ok {
				changes[k] = Change{OldValue: old}
				delete(mapping, k)
			}
		}
		return changes
	})
}

// Clear removes the entire mapping
func (e *Engine) Clear(extensionID string) error {
	return e.mutate(extensionID, func(mapping map[string]interface{}) map[string]Change {
		changes := make(map[string]Change, len(mapping))
		for k, v := range mapping {
			changes[k] = Change{OldValue: v}
			delete(mapping, k)
		}
		return changes
	})
}

// GetBytesInUse returns the serialized size of the given keys' entries,
// or of the whole mapping when keys is nil.
func (e *Engine) GetBytesInUse(extensionID string, keys []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mapping, err := e.loadLocked(extensionID)
	if err != nil {
		return 0, err
	}

	if keys == nil {
		data, err := json.Marshal(mapping)
		if err != nil {
			return 0, fmt.Errorf("failed to measure mapping: %w", err)
		}
		return len(data), nil
	}

	total := 0
	for _, k := range keys {
		v, ok := mapping[k]
		if !ok {
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return 0, fmt.Errorf("failed to measure value: %w", err)
		}
		// Key-name overhead counts toward usage
		total += len(k) + len(data)
	}
	return total, nil
}

// mutate runs the load / apply / measure / persist / notify sequence.
// The candidate mapping is discarded wholesale on quota rejection.
func (e *Engine) mutate(extensionID string, apply func(map[string]interface{}) map[string]Change) error {
	e.mu.Lock()

	current, err := e.loadLocked(extensionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	candidate := make(map[string]interface{}, len(current))
	for k, v := range current {
		candidate[k] = v
	}

	changes := apply(candidate)
	if len(changes) == 0 {
		e.mu.Unlock()
		return nil
	}

	data, err := json.Marshal(candidate)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to serialize mapping: %w", err)
	}
	if len(data) > e.quota {
		e.mu.Unlock()
		e.logger.Warn("mutation rejected over quota",
			zap.String("extension_id", extensionID),
			zap.Int("candidate_bytes", len(data)),
			zap.Int("quota", e.quota))
		return types.ErrQuotaExceeded
	}

	if len(candidate) == 0 {
		err = e.store.Delete(extensionID)
	} else {
		err = e.store.Save(extensionID, data)
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}

	e.cache[extensionID] = candidate
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(extensionID, changes)
	}
	return nil
}

// loadLocked returns the cached mapping, reading through to the store on
// first access. Caller holds e.mu.
func (e *Engine) loadLocked(extensionID string) (map[string]interface{}, error) {
	if mapping, ok := e.cache[extensionID]; ok {
		return mapping, nil
	}

	mapping := make(map[string]interface{})
	data, ok, err := e.store.Load(extensionID)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := json.Unmarshal(data, &mapping); err != nil {
			return nil, fmt.Errorf("corrupt mapping for %s: %w", extensionID, err)
		}
	}
	e.cache[extensionID] = mapping
	return mapping, nil
}
