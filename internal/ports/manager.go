package ports

import (
	"fmt"
	"sync"
	"time"

	"github.com/webextkit/bridge/internal/correlation"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/shared/id"
	"github.com/webextkit/bridge/internal/types"
	"go.uber.org/zap"
)

// Kind distinguishes the singleton background-worker port from arbitrary
// named ports an extension opens for its own protocol.
type Kind int

const (
	KindBackground Kind = iota
	KindNamed
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindBackground:
		return "background"
	case KindNamed:
		return "named"
	default:
		return "unknown"
	}
}

// State represents the port lifecycle state. Disconnection is terminal.
type State int

const (
	StateConnected State = iota
	StateDisconnected
)

// Key identifies a port within the registry. Background ports are keyed
// solely by extension id (empty Name).
type Key struct {
	ExtensionID string
	Name        string
}

// Port is a named, long-lived bidirectional channel
type Port struct {
	ID          string
	ExtensionID string
	Name        string
	Kind        Kind

	mu           sync.Mutex
	state        State
	onDisconnect []func()
}

// State returns the current lifecycle state
func (p *Port) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// OnDisconnect registers a listener fired once when the port tears down.
// Listeners added after disconnection fire immediately.
func (p *Port) OnDisconnect(fn func()) {
	p.mu.Lock()
	if p.state == StateDisconnected {
		p.mu.Unlock()
		fn()
		return
	}
	p.onDisconnect = append(p.onDisconnect, fn)
	p.mu.Unlock()
}

// close marks the port disconnected and returns the listeners to fire,
// or nil if it was already disconnected.
func (p *Port) close() []func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateDisconnected {
		return nil
	}
	p.state = StateDisconnected
	listeners := p.onDisconnect
	p.onDisconnect = nil
	return listeners
}

// Transport forwards port traffic into the peer context. A nil return is
// the transport-level acknowledgement of delivery.
type Transport interface {
	Deliver(port *Port, env *types.Envelope) error
}

// Manager owns the port registry: creation, forwarding, disconnect,
// and bulk teardown per extension.
type Manager struct {
	mu        sync.Mutex
	byKey     map[Key]*Port
	byID      map[string]*Port
	transport Transport
	registry  *correlation.Registry
	timeout   time.Duration
	logger    *logging.Logger
}

// NewManager creates a port manager. The correlation registry and
// timeout apply only to the background request/response path; named-port
// traffic is un-timed.
func NewManager(transport Transport, registry *correlation.Registry, timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{
		byKey:     make(map[Key]*Port),
		byID:      make(map[string]*Port),
		transport: transport,
		registry:  registry,
		timeout:   timeout,
		logger:    logger.Component("ports"),
	}
}

// Connect registers a new port. An empty or "background" name makes it
// the extension's background port. An existing port under the same key
// is superseded: marked disconnected and its listeners fired before the
// new port becomes usable.
func (m *Manager) Connect(extensionID, name string) *Port {
	kind := KindNamed
	keyName := name
	if name == "" || name == "background" {
		kind = KindBackground
		keyName = ""
	}
	key := Key{ExtensionID: extensionID, Name: keyName}

	m.mu.Lock()
	old := m.byKey[key]
	if old != nil {
		delete(m.byKey, key)
		delete(m.byID, old.ID)
	}
	m.mu.Unlock()

	if old != nil {
		m.teardown(old, "superseded")
	}

	port := &Port{
		ID:          id.NewPortID().String(),
		ExtensionID: extensionID,
		Name:        name,
		Kind:        kind,
		state:       StateConnected,
	}

	m.mu.Lock()
	m.byKey[key] = port
	m.byID[port.ID] = port
	m.mu.Unlock()

	m.logger.Info("port connected",
		zap.String("port_id", port.ID),
		zap.String("extension_id", extensionID),
		zap.String("kind", kind.String()),
		zap.String("name", name))
	return port
}

// Lookup retrieves a port by id
func (m *Manager) Lookup(portID string) (*Port, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[portID]
	return p, ok
}

// Background returns the live background port for an extension
func (m *Manager) Background(extensionID string) (*Port, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byKey[Key{ExtensionID: extensionID}]
	return p, ok
}

// Send forwards a message on an established port. Fails fast with
// ErrPortDisconnected; resolves on transport-level acknowledgement, not
// on any application-level reply.
func (m *Manager) Send(port *Port, message map[string]interface{}) error {
	if port.State() != StateConnected {
		return types.ErrPortDisconnected
	}

	env := &types.Envelope{
		Type: types.EnvelopePortMessage,
		Data: map[string]interface{}{
			"portId":  port.ID,
			"name":    port.Name,
			"message": message,
		},
	}
	if err := m.transport.Deliver(port, env); err != nil {
		return fmt.Errorf("port delivery failed: %w", err)
	}
	return nil
}

// SendToBackground posts a request on the extension's background port
// and settles when the worker replies or the deadline elapses.
func (m *Manager) SendToBackground(fromContextID, extensionID string, payload map[string]interface{}) *correlation.Future {
	port, ok := m.Background(extensionID)
	if !ok || port.State() != StateConnected {
		return correlation.Failed(types.ErrPortDisconnected)
	}

	corrID := id.NewCorrelationID().String()
	future := m.registry.RegisterFuture(corrID, m.timeout)
	m.registry.Own(corrID, fromContextID)

	env := &types.Envelope{
		Type:            types.EnvelopePortMessage,
		CorrelationID:   corrID,
		SenderContextID: fromContextID,
		Data: map[string]interface{}{
			"portId":  port.ID,
			"name":    port.Name,
			"message": payload,
		},
	}
	if err := m.transport.Deliver(port, env); err != nil {
		m.logger.Warn("background port delivery failed",
			zap.String("extension_id", extensionID),
			zap.Error(err))
		m.registry.Reject(corrID, types.ErrPortDisconnected)
	}
	return future
}

// Disconnect tears a port down. Idempotent; listeners are notified once
// and the port is removed from the registry.
func (m *Manager) Disconnect(port *Port) {
	m.mu.Lock()
	key := Key{ExtensionID: port.ExtensionID, Name: port.Name}
	if port.Kind == KindBackground {
		key.Name = ""
	}
	if m.byKey[key] == port {
		delete(m.byKey, key)
	}
	delete(m.byID, port.ID)
	m.mu.Unlock()

	m.teardown(port, "disconnect")
}

// DisconnectAll tears down every port of an extension. Safe to call with
// zero active ports; used on extension unload.
func (m *Manager) DisconnectAll(extensionID string) {
	m.mu.Lock()
	var doomed []*Port
	for key, port := range m.byKey {
		if key.ExtensionID == extensionID {
			delete(m.byKey, key)
			delete(m.byID, port.ID)
			doomed = append(doomed, port)
		}
	}
	m.mu.Unlock()

	for _, port := range doomed {
		m.teardown(port, "extension unload")
	}
}

// Count returns the number of connected ports
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Manager) teardown(port *Port, reason string) {
	listeners := port.close()
	if listeners == nil {
		return
	}

	env := &types.Envelope{
		Type: types.EnvelopePortDisconnect,
		Data: map[string]interface{}{"portId": port.ID, "name": port.Name},
	}
	if err := m.transport.Deliver(port, env); err != nil {
		m.logger.Debug("disconnect notification failed",
			zap.String("port_id", port.ID),
			zap.Error(err))
	}

	for _, fn := range listeners {
		fn()
	}

	m.logger.Info("port disconnected",
		zap.String("port_id", port.ID),
		zap.String("reason", reason))
}
