package timewheel

import (
	"container/heap"
	"sync"
	"time"
)

// Wheel tracks armed deadlines and fires callbacks when they elapse. All
// deadlines in the process share one scheduler goroutine backed by a
// min-heap, rather than one OS timer per pending call or alarm.
type Wheel struct {
	mu     sync.Mutex
	heap   entryHeap
	seq    uint64
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// Timer is a handle to an armed deadline
type Timer struct {
	wheel *Wheel
	entry *entry
}

type entry struct {
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// New creates a wheel and starts its scheduler goroutine
func New() *Wheel {
	w := &Wheel{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Schedule arms fn to fire after delay. Negative delays clamp to zero.
func (w *Wheel) Schedule(delay time.Duration, fn func()) *Timer {
	if delay < 0 {
		delay = 0
	}
	return w.ScheduleAt(time.Now().Add(delay), fn)
}

// ScheduleAt arms fn to fire at an absolute deadline. Deadlines in the
// past fire on the next scheduler pass.
func (w *Wheel) ScheduleAt(at time.Time, fn func()) *Timer {
	w.mu.Lock()
	w.seq++
	e := &entry{at: at, seq: w.seq, fn: fn}
	heap.Push(&w.heap, e)
	w.mu.Unlock()

	w.kick()
	return &Timer{wheel: w, entry: e}
}

// Stop disarms the timer. Returns true if it prevented the fire; false
// if the timer already fired or was already stopped.
func (t *Timer) Stop() bool {
	t.wheel.mu.Lock()
	defer t.wheel.mu.Unlock()

	if t.entry.fired || t.entry.stopped {
		return false
	}
	t.entry.stopped = true
	return true
}

// Close stops the scheduler goroutine. Armed entries never fire.
func (w *Wheel) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
}

// Len returns the number of armed (unstopped) entries
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, e := range w.heap {
		if !e.stopped {
			n++
		}
	}
	return n
}

func (w *Wheel) kick() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Wheel) run() {
	for {
		due, next, ok := w.collect()

		// Callbacks run outside the lock; a callback may schedule or
		// stop other timers on this wheel.
		for _, fn := range due {
			fn()
		}

		if !ok {
			select {
			case <-w.done:
				return
			case <-w.wake:
			}
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-w.done:
			timer.Stop()
			return
		case <-w.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// collect pops every elapsed entry and reports the next pending deadline
func (w *Wheel) collect() (due []func(), next time.Time, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for w.heap.Len() > 0 {
		head := w.heap[0]
		if head.stopped {
			heap.Pop(&w.heap)
			continue
		}
		if head.at.After(now) {
			return due, head.at, true
		}
		head.fired = true
		heap.Pop(&w.heap)
		due = append(due, head.fn)
	}
	return due, time.Time{}, false
}

// entryHeap orders entries by deadline, then by arming order
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(*entry))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
