package alarms

import (
	"sort"
	"sync"
	"time"

	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/timewheel"
	"go.uber.org/zap"
)

// Alarm is a named, possibly-recurring scheduled callback owned by one
// extension. ScheduledTime is always the next unfired deadline in ms
// since the epoch; for periodic alarms it advances by exact multiples of
// the period from the original schedule.
type Alarm struct {
	Name            string   `json:"name"`
	ScheduledTime   int64    `json:"scheduledTime"`
	PeriodInMinutes *float64 `json:"periodInMinutes,omitempty"`
}

// CreateOptions mirror the alarms.create info argument. When takes
// priority over DelayInMinutes; with neither set the alarm fires
// immediately.
type CreateOptions struct {
	When            *int64
	DelayInMinutes  *float64
	PeriodInMinutes *float64
}

// Handler receives fired alarms
type Handler func(extensionID string, alarm Alarm)

type key struct {
	ExtensionID string
	Name        string
}

type entry struct {
	alarm Alarm
	timer *timewheel.Timer
}

// Scheduler manages per-extension named timers on the shared wheel.
// Alarms are in-memory only and do not survive a restart.
type Scheduler struct {
	mu      sync.Mutex
	alarms  map[key]*entry
	wheel   *timewheel.Wheel
	deliver Handler
	logger  *logging.Logger
}

// NewScheduler creates a scheduler delivering fired alarms to handler
func NewScheduler(wheel *timewheel.Wheel, handler Handler, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		alarms:  make(map[key]*entry),
		wheel:   wheel,
		deliver: handler,
		logger:  logger.Component("alarms"),
	}
}

// Create arms an alarm. Creating with an existing name replaces it and
// cancels its pending timer first.
func (s *Scheduler) Create(extensionID, name string, opts CreateOptions) Alarm {
	when := time.Now().UnixMilli()
	switch {
	case opts.When != nil:
		when = *opts.When
	case opts.DelayInMinutes != nil:
		when += minutesToMillis(*opts.DelayInMinutes)
	}

	k := key{ExtensionID: extensionID, Name: name}
	alarm := Alarm{
		Name:            name,
		ScheduledTime:   when,
		PeriodInMinutes: opts.PeriodInMinutes,
	}

	s.mu.Lock()
	if old, ok := s.alarms[k]; ok {
		old.timer.Stop()
	}
	e := &entry{alarm: alarm}
	e.timer = s.wheel.ScheduleAt(time.UnixMilli(when), func() { s.fire(k, e) })
	s.alarms[k] = e
	s.mu.Unlock()

	s.logger.Debug("alarm armed",
		zap.String("extension_id", extensionID),
		zap.String("name", name),
		zap.Int64("scheduled_time", when))
	return alarm
}

// Get returns the alarm by name
func (s *Scheduler) Get(extensionID, name string) (Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.alarms[key{ExtensionID: extensionID, Name: name}]
	if !ok {
		return Alarm{}, false
	}
	return e.alarm, true
}

// GetAll returns every alarm of an extension, sorted by name
func (s *Scheduler) GetAll(extensionID string) []Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Alarm
	for k, e := range s.alarms {
		if k.ExtensionID == extensionID {
			out = append(out, e.alarm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear removes an alarm and cancels its pending timer. Returns whether
// an alarm was removed.
func (s *Scheduler) Clear(extensionID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{ExtensionID: extensionID, Name: name}
	e, ok := s.alarms[k]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.alarms, k)
	return true
}

// ClearAll removes every alarm of an extension. Returns whether any
// alarm was removed.
func (s *Scheduler) ClearAll(extensionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := false
	for k, e := range s.alarms {
		if k.ExtensionID == extensionID {
			e.timer.Stop()
			delete(s.alarms, k)
			cleared = true
		}
	}
	return cleared
}

// Count returns the number of armed alarms across extensions
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

func (s *Scheduler) fire(k key, e *entry) {
	s.mu.Lock()
	if s.alarms[k] != e {
		// Cleared or replaced between the wheel firing and this
		// callback running; the replacement owns its own timer.
		s.mu.Unlock()
		return
	}

	fired := e.alarm
	if fired.PeriodInMinutes != nil {
		// Rebase on the scheduled time, not on "now", so callback
		// latency never accumulates as drift.
		next := fired.ScheduledTime + minutesToMillis(*fired.PeriodInMinutes)
		e.alarm.ScheduledTime = next
		e.timer = s.wheel.ScheduleAt(time.UnixMilli(next), func() { s.fire(k, e) })
	} else {
		delete(s.alarms, k)
	}
	s.mu.Unlock()

	s.deliver(k.ExtensionID, fired)
}

func minutesToMillis(minutes float64) int64 {
	return int64(minutes * 60000)
}
