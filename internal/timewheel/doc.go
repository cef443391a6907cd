// Package timewheel implements the shared deadline scheduler used by the
// correlation registry and the alarm service. One goroutine drains a
// min-heap of armed deadlines; cancellation is lazy (stopped entries are
// discarded when they surface at the heap head).
package timewheel
