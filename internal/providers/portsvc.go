package providers

import (
	"github.com/webextkit/bridge/internal/ports"
	"github.com/webextkit/bridge/internal/types"
)

// PortService exposes operations on established ports
type PortService struct {
	ports *ports.Manager
}

// NewPortService creates the port provider
func NewPortService(p *ports.Manager) *PortService {
	return &PortService{ports: p}
}

// Definition returns service metadata
func (s *PortService) Definition() types.Service {
	return types.Service{
		ID:          "port",
		Name:        "Port Channels",
		Description: "Message forwarding and teardown on long-lived ports",
		Category:    types.CategoryPorts,
		Capabilities: []string{
			"post",
			"disconnect",
		},
		Methods: []types.Method{
			{
				ID:          "port.postMessage",
				Name:        "Post Message",
				Description: "Forward a message on an established port",
				Parameters: []types.Parameter{
					{Name: "portId", Type: "string", Description: "Port id", Required: true},
					{Name: "message", Type: "any", Description: "Message to forward", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "port.disconnect",
				Name:        "Disconnect",
				Description: "Tear a port down; idempotent",
				Parameters: []types.Parameter{
					{Name: "portId", Type: "string", Description: "Port id", Required: true},
				},
				Returns: "boolean",
			},
		},
	}
}

// Execute runs a port operation
func (s *PortService) Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error) {
	switch methodID {
	case "port.postMessage":
		return s.postMessage(params)
	case "port.disconnect":
		return s.disconnect(params)
	default:
		return unknownMethod(methodID)
	}
}

func (s *PortService) postMessage(params map[string]interface{}) (*types.Result, error) {
	portID, ok := stringParam(params, "portId")
	if !ok {
		return failure("portId parameter required")
	}

	port, ok := s.ports.Lookup(portID)
	if !ok {
		// Disconnected ports leave the registry; an unknown id and a
		// torn-down port are the same failure.
		return failWith(types.ErrPortDisconnected)
	}

	message, _ := mapParam(params, "message")
	if err := s.ports.Send(port, message); err != nil {
		return failWith(err)
	}
	return success(map[string]interface{}{"posted": true})
}

func (s *PortService) disconnect(params map[string]interface{}) (*types.Result, error) {
	portID, ok := stringParam(params, "portId")
	if !ok {
		return failure("portId parameter required")
	}

	if port, ok := s.ports.Lookup(portID); ok {
		s.ports.Disconnect(port)
	}
	return success(map[string]interface{}{"disconnected": true})
}
