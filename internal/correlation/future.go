package correlation

import (
	"context"
	"sync"
)

// Future is a promise-like completion for a cross-context call. It settles
// exactly once; later completions are no-ops.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

// NewFuture creates an unsettled future
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved creates a future already settled with value
func Resolved(value interface{}) *Future {
	f := NewFuture()
	f.Complete(value)
	return f
}

// Failed creates a future already settled with err
func Failed(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// Complete settles the future successfully
func (f *Future) Complete(value interface{}) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

// Fail settles the future with an error
func (f *Future) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future settles
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value or error. Only valid after Done is closed.
func (f *Future) Result() (interface{}, error) {
	return f.value, f.err
}

// Await blocks until the future settles or ctx is cancelled
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
