package providers

import (
	"github.com/webextkit/bridge/internal/ports"
	"github.com/webextkit/bridge/internal/router"
	"github.com/webextkit/bridge/internal/types"
)

// Runtime exposes message passing and port creation to script contexts
type Runtime struct {
	router *router.Router
	ports  *ports.Manager
}

// NewRuntime creates the runtime provider
func NewRuntime(r *router.Router, p *ports.Manager) *Runtime {
	return &Runtime{router: r, ports: p}
}

// Definition returns service metadata
func (r *Runtime) Definition() types.Service {
	return types.Service{
		ID:          "runtime",
		Name:        "Runtime Messaging",
		Description: "Request/response messaging and port creation between contexts",
		Category:    types.CategoryRuntime,
		Capabilities: []string{
			"send",
			"broadcast",
			"connect",
		},
		Methods: []types.Method{
			{
				ID:          "runtime.sendMessage",
				Name:        "Send Message",
				Description: "Send a payload and await the reply; without a target it goes to the background worker",
				Parameters: []types.Parameter{
					{Name: "target", Type: "string", Description: "Destination context id (optional)", Required: false},
					{Name: "payload", Type: "any", Description: "Message payload", Required: true},
				},
				Returns: "any",
			},
			{
				ID:          "runtime.broadcast",
				Name:        "Broadcast",
				Description: "Best-effort send to every live context of the extension except the sender",
				Parameters: []types.Parameter{
					{Name: "payload", Type: "any", Description: "Message payload", Required: true},
				},
				Returns: "any",
			},
			{
				ID:          "runtime.connect",
				Name:        "Connect Port",
				Description: "Open a long-lived port; empty name connects the background port",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Port name (optional)", Required: false},
				},
				Returns: "Port",
			},
		},
	}
}

// Execute runs a runtime operation
func (r *Runtime) Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error) {
	if ctx == nil || ctx.ContextID == "" {
		return failure("calling context required for runtime operations")
	}

	switch methodID {
	case "runtime.sendMessage":
		return r.sendMessage(ctx, params)
	case "runtime.broadcast":
		return r.broadcast(ctx, params)
	case "runtime.connect":
		return r.connect(ctx, params)
	default:
		return unknownMethod(methodID)
	}
}

func (r *Runtime) sendMessage(ctx *types.CallContext, params map[string]interface{}) (*types.Result, error) {
	payload, _ := mapParam(params, "payload")

	if target, ok := stringParam(params, "target"); ok {
		return pending(r.router.SendToOne(ctx.ContextID, target, payload))
	}
	// No explicit target: route over the extension's background port
	return pending(r.ports.SendToBackground(ctx.ContextID, ctx.ExtensionID, payload))
}

func (r *Runtime) broadcast(ctx *types.CallContext, params map[string]interface{}) (*types.Result, error) {
	payload, _ := mapParam(params, "payload")
	return pending(r.router.Broadcast(ctx.ContextID, payload))
}

func (r *Runtime) connect(ctx *types.CallContext, params map[string]interface{}) (*types.Result, error) {
	name, _ := stringParam(params, "name")
	port := r.ports.Connect(ctx.ExtensionID, name)

	return success(map[string]interface{}{
		"portId": port.ID,
		"name":   port.Name,
		"kind":   port.Kind.String(),
	})
}
