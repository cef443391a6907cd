package alarms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/timewheel"
)

type firing struct {
	extensionID string
	alarm       Alarm
}

type collector struct {
	mu     sync.Mutex
	fired  []firing
	signal chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 64)}
}

func (c *collector) handle(extensionID string, alarm Alarm) {
	c.mu.Lock()
	c.fired = append(c.fired, firing{extensionID: extensionID, alarm: alarm})
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []firing {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.fired) >= n {
			out := make([]firing, len(c.fired))
			copy(out, c.fired)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("expected %d firings", n)
		}
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *collector) {
	t.Helper()
	wheel := timewheel.New()
	t.Cleanup(wheel.Close)

	c := newCollector()
	return NewScheduler(wheel, c.handle, logging.NewDefault()), c
}

func floatPtr(f float64) *float64 { return &f }

func int64Ptr(n int64) *int64 { return &n }

func TestOneShotFiresAndRemoves(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "tick", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 20)})

	fired := c.wait(t, 1)
	assert.Equal(t, "ext-a", fired[0].extensionID)
	assert.Equal(t, "tick", fired[0].alarm.Name)

	// One-shot alarms are removed after firing
	_, ok := s.Get("ext-a", "tick")
	assert.False(t, ok)
}

func TestDelayInMinutes(t *testing.T) {
	s, _ := newTestScheduler(t)

	before := time.Now().UnixMilli()
	alarm := s.Create("ext-a", "later", CreateOptions{DelayInMinutes: floatPtr(2)})

	assert.InDelta(t, before+2*60000, alarm.ScheduledTime, 1000)
	assert.True(t, s.Clear("ext-a", "later"))
}

func TestWhenTakesPriorityOverDelay(t *testing.T) {
	s, _ := newTestScheduler(t)

	when := time.Now().UnixMilli() + 5*60000
	alarm := s.Create("ext-a", "x", CreateOptions{
		When:           int64Ptr(when),
		DelayInMinutes: floatPtr(99),
	})
	assert.Equal(t, when, alarm.ScheduledTime)
	s.Clear("ext-a", "x")
}

func TestNoTimingFiresImmediately(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "now", CreateOptions{})
	c.wait(t, 1)
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "late", CreateOptions{When: int64Ptr(time.Now().UnixMilli() - 60000)})
	c.wait(t, 1)
}

func TestCreateReplacesExisting(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "job", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 30)})
	s.Create("ext-a", "job", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 80)})

	fired := c.wait(t, 1)
	time.Sleep(60 * time.Millisecond)

	c.mu.Lock()
	total := len(c.fired)
	c.mu.Unlock()
	assert.Equal(t, 1, total, "replaced alarm's original timer must not fire")
	assert.Equal(t, "job", fired[0].alarm.Name)
}

func TestRecreateFromHandlerKeepsReplacement(t *testing.T) {
	wheel := timewheel.New()
	t.Cleanup(wheel.Close)

	c := newCollector()
	var s *Scheduler
	s = NewScheduler(wheel, func(extensionID string, alarm Alarm) {
		// Handlers may re-arm alarms; a re-created name must replace
		// the one that is mid-fire, not be consumed by it.
		if alarm.Name == "pre" {
			s.Create(extensionID, "x", CreateOptions{DelayInMinutes: floatPtr(60)})
		}
		c.handle(extensionID, alarm)
	}, logging.NewDefault())

	due := int64Ptr(time.Now().UnixMilli() + 20)
	s.Create("ext-a", "pre", CreateOptions{When: due})
	s.Create("ext-a", "x", CreateOptions{When: due})

	fired := c.wait(t, 1)
	assert.Equal(t, "pre", fired[0].alarm.Name)

	time.Sleep(60 * time.Millisecond)
	c.mu.Lock()
	total := len(c.fired)
	c.mu.Unlock()
	assert.Equal(t, 1, total, "replacement due in an hour must not deliver now")

	alarm, ok := s.Get("ext-a", "x")
	require.True(t, ok, "replacement alarm must stay armed")
	assert.Greater(t, alarm.ScheduledTime, time.Now().UnixMilli()+50*60000)
}

func TestPeriodicDriftFreeRescheduling(t *testing.T) {
	s, c := newTestScheduler(t)

	// 60 ms period expressed in minutes
	period := 0.001
	start := time.Now().UnixMilli()
	s.Create("ext-a", "heartbeat", CreateOptions{
		When:            int64Ptr(start + 60),
		PeriodInMinutes: floatPtr(period),
	})

	fired := c.wait(t, 3)
	s.Clear("ext-a", "heartbeat")

	// Each firing carries a deadline at an exact multiple of the period
	// from the original schedule, regardless of callback latency
	for i, f := range fired[:3] {
		expected := start + 60 + int64(i)*60
		assert.Equal(t, expected, f.alarm.ScheduledTime, "firing %d", i)
	}
}

func TestGetAll(t *testing.T) {
	s, _ := newTestScheduler(t)

	s.Create("ext-a", "b", CreateOptions{DelayInMinutes: floatPtr(5)})
	s.Create("ext-a", "a", CreateOptions{DelayInMinutes: floatPtr(5)})
	s.Create("ext-b", "c", CreateOptions{DelayInMinutes: floatPtr(5)})

	all := s.GetAll("ext-a")
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)
}

func TestClearCancelsTimer(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "doomed", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 30)})
	require.True(t, s.Clear("ext-a", "doomed"))
	assert.False(t, s.Clear("ext-a", "doomed"))

	time.Sleep(80 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.fired, "cleared alarm must not fire")
}

func TestClearAll(t *testing.T) {
	s, c := newTestScheduler(t)

	s.Create("ext-a", "one", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 30)})
	s.Create("ext-a", "two", CreateOptions{When: int64Ptr(time.Now().UnixMilli() + 30)})
	s.Create("ext-b", "keep", CreateOptions{DelayInMinutes: floatPtr(5)})

	assert.True(t, s.ClearAll("ext-a"))
	assert.False(t, s.ClearAll("ext-a"))
	assert.Equal(t, 1, s.Count())

	time.Sleep(80 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.fired)
}
