package correlation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/timewheel"
	"github.com/webextkit/bridge/internal/types"
	"go.uber.org/zap"
)

// State tracks the lifecycle of a pending entry
type State int

const (
	StatePending State = iota
	StateResolved
	StateRejected
	StateTimedOut
	StateCancelled
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed-out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Registry maps correlation ids to pending completions. Every registered
// id is settled exactly once: resolve, reject, timeout and cancel are
// mutually exclusive, and settlement removes the entry.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	timedOut atomic.Int64
	wheel    *timewheel.Wheel
	logger   *logging.Logger
}

type entry struct {
	id        string
	owner     string
	createdAt time.Time
	state     State
	onResolve func(value interface{})
	onReject  func(err error)
	timer     *timewheel.Timer
}

// NewRegistry creates a registry armed on the given wheel
func NewRegistry(wheel *timewheel.Wheel, logger *logging.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		wheel:   wheel,
		logger:  logger,
	}
}

// Register adds a pending entry. A zero deadline means the entry never
// times out; otherwise the wheel rejects it with ErrTimeout when the
// deadline elapses without a resolution.
func (r *Registry) Register(id string, deadline time.Duration, onResolve func(interface{}), onReject func(error)) {
	e := &entry{
		id:        id,
		createdAt: time.Now(),
		state:     StatePending,
		onResolve: onResolve,
		onReject:  onReject,
	}

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	if deadline > 0 {
		e.timer = r.wheel.Schedule(deadline, func() { r.timeout(id) })
	}
}

// RegisterFuture registers an entry whose settlement completes the
// returned future.
func (r *Registry) RegisterFuture(id string, deadline time.Duration) *Future {
	f := NewFuture()
	r.Register(id, deadline, f.Complete, f.Fail)
	return f
}

// Resolve settles the entry successfully. Returns false if the id is
// unknown or already settled.
func (r *Registry) Resolve(id string, value interface{}) bool {
	e, ok := r.take(id, StateResolved)
	if !ok {
		return false
	}
	e.onResolve(value)
	return true
}

// Reject settles the entry with an error. Returns false if the id is
// unknown or already settled.
func (r *Registry) Reject(id string, err error) bool {
	e, ok := r.take(id, StateRejected)
	if !ok {
		return false
	}
	e.onReject(err)
	return true
}

// Cancel removes a pending entry without invoking either callback. Used
// when the caller itself goes away before a reply or timeout.
func (r *Registry) Cancel(id string) {
	r.take(id, StateCancelled)
}

// Own tags a pending entry with the context waiting on it, so the entry
// can be dropped in bulk when that context detaches.
func (r *Registry) Own(id, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok && e.state == StatePending {
		e.owner = owner
	}
}

// CancelOwned cancels every pending entry owned by owner. Returns the
// number of entries dropped.
func (r *Registry) CancelOwned(owner string) int {
	if owner == "" {
		return 0
	}

	r.mu.Lock()
	var ids []string
	for id, e := range r.entries {
		if e.owner == owner {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Cancel(id)
	}
	return len(ids)
}

// Pending returns the number of unsettled entries
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// TimedOut returns the number of entries ever settled by timeout
func (r *Registry) TimedOut() int64 {
	return r.timedOut.Load()
}

// take atomically claims an entry for settlement and disarms its timer,
// so a late wheel firing can never produce a duplicate settlement.
func (r *Registry) take(id string, next State) (*entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.state != StatePending {
		r.mu.Unlock()
		return nil, false
	}
	e.state = next
	delete(r.entries, id)
	r.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	return e, true
}

func (r *Registry) timeout(id string) {
	e, ok := r.take(id, StateTimedOut)
	if !ok {
		// Settled before the wheel fired
		return
	}
	r.timedOut.Add(1)

	r.logger.Debug("correlation entry timed out",
		zap.String("correlation_id", id),
		zap.Duration("age", time.Since(e.createdAt)))
	e.onReject(types.ErrTimeout)
}
