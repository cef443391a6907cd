package ports

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webextkit/bridge/internal/correlation"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/timewheel"
	"github.com/webextkit/bridge/internal/types"
)

type recordingTransport struct {
	envelopes []*types.Envelope
	err       error
}

func (tr *recordingTransport) Deliver(port *Port, env *types.Envelope) error {
	if tr.err != nil {
		return tr.err
	}
	tr.envelopes = append(tr.envelopes, env)
	return nil
}

func newTestManager(t *testing.T, tr Transport) (*Manager, *correlation.Registry) {
	t.Helper()
	wheel := timewheel.New()
	t.Cleanup(wheel.Close)

	logger := logging.NewDefault()
	registry := correlation.NewRegistry(wheel, logger)
	return NewManager(tr, registry, 50*time.Millisecond, logger), registry
}

func TestConnectBackground(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	for _, name := range []string{"", "background"} {
		port := m.Connect("ext-a", name)
		assert.Equal(t, KindBackground, port.Kind, "name %q should connect a background port", name)
		assert.Equal(t, StateConnected, port.State())
	}
}

func TestConnectNamed(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	port := m.Connect("ext-a", "sync-channel")
	assert.Equal(t, KindNamed, port.Kind)
	assert.Equal(t, "sync-channel", port.Name)

	got, ok := m.Lookup(port.ID)
	require.True(t, ok)
	assert.Same(t, port, got)
}

func TestBackgroundSupersession(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	first := m.Connect("ext-a", "")
	var disconnected atomic.Bool
	first.OnDisconnect(func() { disconnected.Store(true) })

	second := m.Connect("ext-a", "")

	assert.True(t, disconnected.Load(), "superseded port's listeners must fire")
	assert.Equal(t, StateDisconnected, first.State())
	assert.Equal(t, StateConnected, second.State())

	bg, ok := m.Background("ext-a")
	require.True(t, ok)
	assert.Same(t, second, bg)
}

func TestNamedSupersession(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	first := m.Connect("ext-a", "updates")
	second := m.Connect("ext-a", "updates")

	assert.Equal(t, StateDisconnected, first.State())
	assert.Equal(t, StateConnected, second.State())

	// Different names or extensions do not collide
	other := m.Connect("ext-a", "other")
	foreign := m.Connect("ext-b", "updates")
	assert.Equal(t, StateConnected, other.State())
	assert.Equal(t, StateConnected, foreign.State())
}

func TestSend(t *testing.T) {
	tr := &recordingTransport{}
	m, _ := newTestManager(t, tr)

	port := m.Connect("ext-a", "updates")
	require.NoError(t, m.Send(port, map[string]interface{}{"seq": 1}))

	require.Len(t, tr.envelopes, 1)
	env := tr.envelopes[0]
	assert.Equal(t, types.EnvelopePortMessage, env.Type)
	assert.Equal(t, port.ID, env.Data["portId"])
}

func TestSendOnDisconnectedPortFailsFast(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	port := m.Connect("ext-a", "updates")
	m.Disconnect(port)

	err := m.Send(port, nil)
	assert.ErrorIs(t, err, types.ErrPortDisconnected)
}

func TestDisconnectIdempotent(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	port := m.Connect("ext-a", "updates")

	var fired atomic.Int32
	port.OnDisconnect(func() { fired.Add(1) })

	m.Disconnect(port)
	m.Disconnect(port)

	assert.Equal(t, int32(1), fired.Load(), "listeners must be notified exactly once")
	_, ok := m.Lookup(port.ID)
	assert.False(t, ok)
}

func TestOnDisconnectAfterTeardownFiresImmediately(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	port := m.Connect("ext-a", "updates")
	m.Disconnect(port)

	var fired atomic.Bool
	port.OnDisconnect(func() { fired.Store(true) })
	assert.True(t, fired.Load())
}

func TestDisconnectAll(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	bg := m.Connect("ext-a", "")
	named := m.Connect("ext-a", "updates")
	foreign := m.Connect("ext-b", "updates")

	m.DisconnectAll("ext-a")

	assert.Equal(t, StateDisconnected, bg.State())
	assert.Equal(t, StateDisconnected, named.State())
	assert.Equal(t, StateConnected, foreign.State())
	assert.Equal(t, 1, m.Count())

	// Safe with zero remaining ports
	m.DisconnectAll("ext-a")
}

func TestSendToBackgroundResolvesOnReply(t *testing.T) {
	tr := &recordingTransport{}
	m, registry := newTestManager(t, tr)

	m.Connect("ext-a", "")
	future := m.SendToBackground("popup-1", "ext-a", map[string]interface{}{"op": "ping"})

	require.Len(t, tr.envelopes, 1)
	corrID := tr.envelopes[0].CorrelationID
	require.NotEmpty(t, corrID)

	registry.Resolve(corrID, map[string]interface{}{"op": "pong"})

	value, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"op": "pong"}, value)
}

func TestSendToBackgroundNoPort(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	future := m.SendToBackground("popup-1", "ext-a", nil)
	_, err := future.Await(context.Background())
	assert.ErrorIs(t, err, types.ErrPortDisconnected)
}

func TestSendToBackgroundTimesOut(t *testing.T) {
	m, _ := newTestManager(t, &recordingTransport{})

	m.Connect("ext-a", "")
	future := m.SendToBackground("popup-1", "ext-a", nil)

	_, err := future.Await(context.Background())
	assert.ErrorIs(t, err, types.ErrTimeout)
}

func TestSendToBackgroundDeliveryFailure(t *testing.T) {
	tr := &recordingTransport{}
	m, _ := newTestManager(t, tr)

	m.Connect("ext-a", "")
	tr.err = errors.New("socket closed")

	future := m.SendToBackground("popup-1", "ext-a", nil)
	_, err := future.Await(context.Background())
	assert.ErrorIs(t, err, types.ErrPortDisconnected)
}
