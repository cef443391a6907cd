package contexts

import (
	"fmt"
	"sync"
	"time"

	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/types"
	"go.uber.org/zap"
)

// Kind classifies a script execution context
type Kind string

const (
	KindBackground    Kind = "background"
	KindPopup         Kind = "popup"
	KindOptions       Kind = "options"
	KindContentScript Kind = "content_script"
)

// ParseKind validates a context kind received from the wire
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBackground, KindPopup, KindOptions, KindContentScript:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("invalid context kind: %q", s)
	}
}

// Dispatcher delivers an envelope into a script context. The transport
// layer implements this; the broker never blocks on it holding locks.
type Dispatcher interface {
	Dispatch(env *types.Envelope) error
}

// Context is a reference to a live script execution sandbox. Lifecycle is
// owned by the external loader; the directory only tracks liveness.
type Context struct {
	ID          string
	ExtensionID string
	Kind        Kind
	Dispatcher  Dispatcher
	AttachedAt  time.Time
}

// Directory is the registry of live contexts. At most one background
// context may be live per extension; registering a second supersedes the
// first.
type Directory struct {
	mu         sync.RWMutex
	byID       map[string]*Context
	background map[string]string // extension id -> context id
	logger     *logging.Logger
}

// NewDirectory creates an empty directory
func NewDirectory(logger *logging.Logger) *Directory {
	return &Directory{
		byID:       make(map[string]*Context),
		background: make(map[string]string),
		logger:     logger.Component("contexts"),
	}
}

// Register adds a live context. For background contexts the previous
// background of the same extension, if any, is removed and returned so
// the caller can tear down its transport.
func (d *Directory) Register(ctx *Context) (superseded *Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Kind == KindBackground {
		if oldID, ok := d.background[ctx.ExtensionID]; ok {
			superseded = d.byID[oldID]
			delete(d.byID, oldID)
		}
		d.background[ctx.ExtensionID] = ctx.ID
	}

	d.byID[ctx.ID] = ctx
	d.logger.Info("context registered",
		zap.String("context_id", ctx.ID),
		zap.String("extension_id", ctx.ExtensionID),
		zap.String("kind", string(ctx.Kind)))
	return superseded
}

// Unregister removes a context. Safe to call for unknown ids.
func (d *Directory) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, ok := d.byID[id]
	if !ok {
		return false
	}
	delete(d.byID, id)
	if ctx.Kind == KindBackground && d.background[ctx.ExtensionID] == id {
		delete(d.background, ctx.ExtensionID)
	}

	d.logger.Info("context unregistered", zap.String("context_id", id))
	return true
}

// Lookup retrieves a context by id
func (d *Directory) Lookup(id string) (*Context, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ctx, ok := d.byID[id]
	return ctx, ok
}

// IsLive reports whether a context is registered
func (d *Directory) IsLive(id string) bool {
	_, ok := d.Lookup(id)
	return ok
}

// Background returns the live background context for an extension
func (d *Directory) Background(extensionID string) (*Context, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.background[extensionID]
	if !ok {
		return nil, false
	}
	ctx, ok := d.byID[id]
	return ctx, ok
}

// ListByExtension returns every live context of an extension except
// excludeID (pass "" to list all).
func (d *Directory) ListByExtension(extensionID, excludeID string) []*Context {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Context
	for _, ctx := range d.byID {
		if ctx.ExtensionID == extensionID && ctx.ID != excludeID {
			out = append(out, ctx)
		}
	}
	return out
}

// List returns every live context
func (d *Directory) List() []*Context {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Context, 0, len(d.byID))
	for _, ctx := range d.byID {
		out = append(out, ctx)
	}
	return out
}

// Count returns the number of live contexts
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
