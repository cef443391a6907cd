package router

import (
	"errors"
	"time"

	"github.com/webextkit/bridge/internal/contexts"
	"github.com/webextkit/bridge/internal/correlation"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/shared/id"
	"github.com/webextkit/bridge/internal/types"
	"go.uber.org/zap"
)

// Router turns fire-and-forget cross-context postings into settled
// futures. Targeted sends hard-fail on timeout; broadcasts soft-succeed
// with a generic acknowledgement.
type Router struct {
	registry         *correlation.Registry
	directory        *contexts.Directory
	sendTimeout      time.Duration
	broadcastTimeout time.Duration
	logger           *logging.Logger
}

// New creates a router with the given timeout policy
func New(registry *correlation.Registry, directory *contexts.Directory, sendTimeout, broadcastTimeout time.Duration, logger *logging.Logger) *Router {
	return &Router{
		registry:         registry,
		directory:        directory,
		sendTimeout:      sendTimeout,
		broadcastTimeout: broadcastTimeout,
		logger:           logger.Component("router"),
	}
}

// SendToOne delivers payload to a single context and settles once a
// reply arrives or the deadline elapses. An unknown or dead target fails
// fast with ErrTargetNotFound, no timeout involved.
func (r *Router) SendToOne(fromID, toID string, payload map[string]interface{}) *correlation.Future {
	target, ok := r.directory.Lookup(toID)
	if !ok {
		return correlation.Failed(types.ErrTargetNotFound)
	}

	corrID := id.NewCorrelationID().String()
	future := r.registry.RegisterFuture(corrID, r.sendTimeout)
	r.registry.Own(corrID, fromID)

	env := &types.Envelope{
		Type:            types.EnvelopeMessage,
		Data:            payload,
		CorrelationID:   corrID,
		SenderContextID: fromID,
	}
	if err := target.Dispatcher.Dispatch(env); err != nil {
		// A transport that cannot reach its context is indistinguishable
		// from a missing context at the API surface.
		r.logger.Warn("dispatch failed",
			zap.String("target", toID),
			zap.String("correlation_id", corrID),
			zap.Error(err))
		r.registry.Reject(corrID, types.ErrTargetNotFound)
	}
	return future
}

// Broadcast delivers payload to every live context of the sender's
// extension except the sender. Best effort: if nothing replies within
// the broadcast deadline the future resolves with a generic
// acknowledgement instead of rejecting. Zero recipients still resolves.
func (r *Router) Broadcast(fromID string, payload map[string]interface{}) *correlation.Future {
	sender, ok := r.directory.Lookup(fromID)
	if !ok {
		return correlation.Failed(types.ErrTargetNotFound)
	}

	recipients := r.directory.ListByExtension(sender.ExtensionID, fromID)

	corrID := id.NewCorrelationID().String()
	future := correlation.NewFuture()
	r.registry.Register(corrID, r.broadcastTimeout, future.Complete, func(err error) {
		if errors.Is(err, types.ErrTimeout) {
			future.Complete(ack())
			return
		}
		future.Fail(err)
	})
	r.registry.Own(corrID, fromID)

	env := &types.Envelope{
		Type:            types.EnvelopeMessage,
		Data:            payload,
		CorrelationID:   corrID,
		SenderContextID: fromID,
	}
	for _, ctx := range recipients {
		if err := ctx.Dispatcher.Dispatch(env); err != nil {
			r.logger.Warn("broadcast dispatch failed",
				zap.String("target", ctx.ID),
				zap.Error(err))
		}
	}
	return future
}

// DeliverReply completes the pending call matching a context's reply. A
// reply for an unknown id is logged and dropped.
func (r *Router) DeliverReply(corrID string, value interface{}, callErr error) {
	var settled bool
	if callErr != nil {
		settled = r.registry.Reject(corrID, callErr)
	} else {
		settled = r.registry.Resolve(corrID, value)
	}
	if !settled {
		r.logger.Debug("dropping reply for unknown correlation id",
			zap.String("correlation_id", corrID))
	}
}

// Cancel drops a pending call without settling it. Used when the calling
// context goes away before a reply or timeout.
func (r *Router) Cancel(corrID string) {
	r.registry.Cancel(corrID)
}

// CancelByContext drops every pending call registered on behalf of a
// context. Called when the context detaches before its replies arrive.
func (r *Router) CancelByContext(ctxID string) {
	if n := r.registry.CancelOwned(ctxID); n > 0 {
		r.logger.Debug("cancelled pending calls for detached context",
			zap.String("context_id", ctxID),
			zap.Int("count", n))
	}
}

func ack() map[string]interface{} {
	return map[string]interface{}{"ack": true}
}
