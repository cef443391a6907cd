package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGeneratePrefixed(t *testing.T) {
	ctxID := NewContextID()
	corrID := NewCorrelationID()
	portID := NewPortID()

	assert.True(t, strings.HasPrefix(ctxID.String(), "ctx_"))
	assert.True(t, strings.HasPrefix(corrID.String(), "corr_"))
	assert.True(t, strings.HasPrefix(portID.String(), "port_"))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[CorrelationID]bool)
	for i := 0; i < 10000; i++ {
		id := NewCorrelationID()
		assert.False(t, seen[id], "duplicate correlation id: %s", id)
		seen[id] = true
	}
}

func TestParseRoundTrip(t *testing.T) {
	raw := Default().GenerateString()
	assert.True(t, IsValid(raw))

	_, err := Parse(raw)
	assert.NoError(t, err)

	ts, err := Timestamp(raw)
	assert.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestSortable(t *testing.T) {
	a := Default().GenerateString()
	time.Sleep(2 * time.Millisecond)
	b := Default().GenerateString()
	assert.Less(t, a, b, "ids from later milliseconds sort later")
}
