package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/webextkit/bridge/internal/bridge"
	"github.com/webextkit/bridge/internal/contexts"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/monitoring"
	"github.com/webextkit/bridge/internal/ports"
	"github.com/webextkit/bridge/internal/router"
	"github.com/webextkit/bridge/internal/shared/id"
	"github.com/webextkit/bridge/internal/types"
	"github.com/webextkit/bridge/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Contexts attach from extension origins; trust is established
		// by the loader, not the Origin header.
		return true
	},
}

// Handler manages WebSocket attachments
type Handler struct {
	directory *contexts.Directory
	router    *router.Router
	ports     *ports.Manager
	bridge    *bridge.Registry
	metrics   *monitoring.Metrics
	logger    *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(directory *contexts.Directory, r *router.Router, p *ports.Manager, b *bridge.Registry, m *monitoring.Metrics, logger *logging.Logger) *Handler {
	return &Handler{
		directory: directory,
		router:    r,
		ports:     p,
		bridge:    b,
		metrics:   m,
		logger:    logger.Component("ws"),
	}
}

// client is the per-connection dispatcher. Gorilla connections permit a
// single concurrent writer, so every outbound envelope funnels through
// the mutex.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) Dispatch(env *types.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close()
}

// HandleConnection upgrades the request and runs the attachment until
// the socket closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := &client{conn: conn}

	ctx, err := h.attach(cl)
	if err != nil {
		cl.Dispatch(&types.Envelope{Type: types.EnvelopeError, Error: err.Error()})
		return
	}

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()
	defer h.detach(ctx)

	h.logger.Info("context attached",
		zap.String("context_id", ctx.ID),
		zap.String("extension_id", ctx.ExtensionID),
		zap.String("kind", string(ctx.Kind)))

	for {
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read error", zap.String("context_id", ctx.ID), zap.Error(err))
			}
			return
		}

		switch env.Type {
		case types.EnvelopeCall:
			h.handleCall(cl, ctx, &env)
		case types.EnvelopeReply:
			h.handleReply(&env)
		case types.EnvelopeSystem:
			cl.Dispatch(&types.Envelope{Type: types.EnvelopeSystem, Data: map[string]interface{}{"pong": true}})
		default:
			cl.Dispatch(&types.Envelope{
				Type:          types.EnvelopeError,
				CorrelationID: env.CorrelationID,
				Error:         "unknown envelope type: " + env.Type,
			})
		}
	}
}

// attach performs the handshake: the first envelope must declare the
// extension and context kind. The broker assigns the context id.
func (h *Handler) attach(cl *client) (*contexts.Context, error) {
	cl.conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var env types.Envelope
	if err := cl.conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	cl.conn.SetReadDeadline(time.Time{})

	if env.Type != types.EnvelopeAttached {
		return nil, errAttachExpected
	}
	extensionID, _ := env.Data["extensionId"].(string)
	if extensionID == "" {
		return nil, errExtensionRequired
	}
	if err := utils.ValidateExtensionID(extensionID); err != nil {
		return nil, err
	}
	kindRaw, _ := env.Data["kind"].(string)
	kind, err := contexts.ParseKind(kindRaw)
	if err != nil {
		return nil, err
	}

	ctx := &contexts.Context{
		ID:          id.NewContextID().String(),
		ExtensionID: extensionID,
		Kind:        kind,
		Dispatcher:  cl,
		AttachedAt:  time.Now(),
	}

	if superseded := h.directory.Register(ctx); superseded != nil {
		// A restarted background worker evicts its predecessor; the old
		// socket is closed so its loop unwinds.
		if old, ok := superseded.Dispatcher.(*client); ok {
			old.close()
		}
	}

	err = cl.Dispatch(&types.Envelope{
		Type: types.EnvelopeAttached,
		Data: map[string]interface{}{
			"contextId":   ctx.ID,
			"extensionId": ctx.ExtensionID,
			"kind":        string(ctx.Kind),
		},
	})
	if err != nil {
		h.directory.Unregister(ctx.ID)
		return nil, err
	}
	return ctx, nil
}

// detach tears the context down. Losing the background worker tears
// down every port of the extension, since all ports terminate there.
func (h *Handler) detach(ctx *contexts.Context) {
	// Replies can never reach a closed socket; drop the context's
	// pending calls instead of letting them ride out the timeout.
	h.router.CancelByContext(ctx.ID)

	if !h.directory.Unregister(ctx.ID) {
		// Already superseded by a newer background context; its ports
		// now belong to the successor.
		return
	}
	if ctx.Kind == contexts.KindBackground {
		h.ports.DisconnectAll(ctx.ExtensionID)
	}
	h.logger.Info("context detached", zap.String("context_id", ctx.ID))
}

// handleCall executes a method call and replies with a result envelope
// carrying the same correlation id. Calls that settle asynchronously
// reply from a goroutine once the operation completes.
func (h *Handler) handleCall(cl *client, ctx *contexts.Context, env *types.Envelope) {
	if err := utils.ValidatePayload(env.Data); err != nil {
		h.metrics.CallsTotal.WithLabelValues(env.Method, "rejected").Inc()
		cl.Dispatch(&types.Envelope{
			Type:          types.EnvelopeResult,
			Method:        env.Method,
			CorrelationID: env.CorrelationID,
			Error:         err.Error(),
		})
		return
	}

	callCtx := &types.CallContext{
		ContextID:   ctx.ID,
		ExtensionID: ctx.ExtensionID,
		Kind:        string(ctx.Kind),
	}

	res, err := h.bridge.Execute(env.Method, env.Data, callCtx)
	if err != nil {
		h.metrics.CallsTotal.WithLabelValues(env.Method, "error").Inc()
		cl.Dispatch(&types.Envelope{
			Type:          types.EnvelopeResult,
			Method:        env.Method,
			CorrelationID: env.CorrelationID,
			Error:         err.Error(),
		})
		return
	}

	if res.Pending != nil {
		go h.settle(cl, env.Method, env.CorrelationID, res.Pending)
		return
	}

	h.reply(cl, env.Method, env.CorrelationID, res)
}

func (h *Handler) settle(cl *client, method, corrID string, pending types.Awaitable) {
	<-pending.Done()
	value, err := pending.Result()
	if err != nil {
		h.metrics.CallsTotal.WithLabelValues(method, "error").Inc()
		cl.Dispatch(&types.Envelope{
			Type:          types.EnvelopeResult,
			Method:        method,
			CorrelationID: corrID,
			Error:         err.Error(),
		})
		return
	}

	data, _ := value.(map[string]interface{})
	h.metrics.CallsTotal.WithLabelValues(method, "ok").Inc()
	cl.Dispatch(&types.Envelope{
		Type:          types.EnvelopeResult,
		Method:        method,
		CorrelationID: corrID,
		Data:          data,
	})
}

func (h *Handler) reply(cl *client, method, corrID string, res *types.Result) {
	out := &types.Envelope{
		Type:          types.EnvelopeResult,
		Method:        method,
		CorrelationID: corrID,
		Data:          res.Data,
	}
	status := "ok"
	if !res.Success {
		status = "failed"
		if res.Error != nil {
			out.Error = *res.Error
		}
	}
	h.metrics.CallsTotal.WithLabelValues(method, status).Inc()
	cl.Dispatch(out)
}

// handleReply settles the correlation the delivered message carried.
// An envelope-level error rejects it; anything else resolves.
func (h *Handler) handleReply(env *types.Envelope) {
	if env.CorrelationID == "" {
		return
	}
	var callErr error
	if env.Error != "" {
		callErr = errors.New(env.Error)
	}
	h.router.DeliverReply(env.CorrelationID, env.Data, callErr)
}

var (
	errAttachExpected    = errors.New("attach handshake expected")
	errExtensionRequired = errors.New("extensionId required")
)
