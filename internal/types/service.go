package types

// Category represents broker service categories
type Category string

const (
	CategoryRuntime Category = "runtime"
	CategoryPorts   Category = "ports"
	CategoryStorage Category = "storage"
	CategoryAlarms  Category = "alarms"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Methods      []Method `json:"methods"`
}

// Method represents a callable service method
type Method struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a method parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// CallContext identifies the script context issuing a call
type CallContext struct {
	ContextID   string `json:"context_id"`
	ExtensionID string `json:"extension_id"`
	Kind        string `json:"kind"`
}

// Result represents a method execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`

	// Pending is set for operations that settle asynchronously; the
	// transport layer replies to the caller once it completes.
	Pending Awaitable `json:"-"`
}

// Awaitable is a completion the transport can wait on
type Awaitable interface {
	Done() <-chan struct{}
	Result() (interface{}, error)
}
