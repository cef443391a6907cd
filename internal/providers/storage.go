package providers

import (
	"errors"

	"github.com/webextkit/bridge/internal/monitoring"
	"github.com/webextkit/bridge/internal/storage"
	"github.com/webextkit/bridge/internal/types"
)

// Storage exposes the quota-enforced key/value store to script contexts
type Storage struct {
	engine  *storage.Engine
	metrics *monitoring.Metrics
}

// NewStorage creates the storage provider
func NewStorage(engine *storage.Engine, metrics *monitoring.Metrics) *Storage {
	return &Storage{engine: engine, metrics: metrics}
}

// Definition returns service metadata
func (s *Storage) Definition() types.Service {
	return types.Service{
		ID:          "storage",
		Name:        "Extension Storage",
		Description: "Quota-enforced key/value storage with change notifications",
		Category:    types.CategoryStorage,
		Capabilities: []string{
			"read",
			"write",
			"delete",
			"measure",
		},
		Methods: []types.Method{
			{
				ID:          "storage.get",
				Name:        "Get Values",
				Description: "Retrieve values by key, or the whole mapping",
				Parameters: []types.Parameter{
					{Name: "keys", Type: "array", Description: "Keys to read (optional)", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "storage.set",
				Name:        "Set Values",
				Description: "Store multiple key/value pairs",
				Parameters: []types.Parameter{
					{Name: "items", Type: "object", Description: "Key/value pairs", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "storage.remove",
				Name:        "Remove Keys",
				Description: "Delete values by key",
				Parameters: []types.Parameter{
					{Name: "keys", Type: "array", Description: "Keys to delete", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "storage.clear",
				Name:        "Clear All",
				Description: "Remove the extension's entire mapping",
				Parameters:  []types.Parameter{},
				Returns:     "boolean",
			},
			{
				ID:          "storage.getBytesInUse",
				Name:        "Get Bytes In Use",
				Description: "Measure serialized size of keys, or the whole mapping",
				Parameters: []types.Parameter{
					{Name: "keys", Type: "array", Description: "Keys to measure (optional)", Required: false},
				},
				Returns: "number",
			},
		},
	}
}

// Execute runs a storage operation
func (s *Storage) Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error) {
	if ctx == nil || ctx.ExtensionID == "" {
		return failure("extension context required for storage operations")
	}

	switch methodID {
	case "storage.get":
		return s.get(ctx.ExtensionID, params)
	case "storage.set":
		return s.set(ctx.ExtensionID, params)
	case "storage.remove":
		return s.remove(ctx.ExtensionID, params)
	case "storage.clear":
		return s.clear(ctx.ExtensionID)
	case "storage.getBytesInUse":
		return s.getBytesInUse(ctx.ExtensionID, params)
	default:
		return unknownMethod(methodID)
	}
}

func (s *Storage) get(extensionID string, params map[string]interface{}) (*types.Result, error) {
	keys, err := keysParam(params, "keys")
	if err != nil {
		return failure(err.Error())
	}

	values, err := s.engine.Get(extensionID, keys)
	if err != nil {
		return failWith(err)
	}
	return success(map[string]interface{}{"values": values})
}

func (s *Storage) set(extensionID string, params map[string]interface{}) (*types.Result, error) {
	items, ok := mapParam(params, "items")
	if !ok || len(items) == 0 {
		return failure("items parameter required")
	}

	if err := s.engine.Set(extensionID, items); err != nil {
		return s.mutationFailed(err)
	}
	s.metrics.StorageMutations.WithLabelValues("set").Inc()
	return success(map[string]interface{}{"stored": true})
}

func (s *Storage) remove(extensionID string, params map[string]interface{}) (*types.Result, error) {
	keys, err := keysParam(params, "keys")
	if err != nil {
		return failure(err.Error())
	}
	if keys == nil {
		return failure("keys parameter required")
	}

	if err := s.engine.Remove(extensionID, keys); err != nil {
		return s.mutationFailed(err)
	}
	s.metrics.StorageMutations.WithLabelValues("remove").Inc()
	return success(map[string]interface{}{"removed": true})
}

func (s *Storage) clear(extensionID string) (*types.Result, error) {
	if err := s.engine.Clear(extensionID); err != nil {
		return s.mutationFailed(err)
	}
	s.metrics.StorageMutations.WithLabelValues("clear").Inc()
	return success(map[string]interface{}{"cleared": true})
}

func (s *Storage) mutationFailed(err error) (*types.Result, error) {
	if errors.Is(err, types.ErrQuotaExceeded) {
		s.metrics.StorageQuotaRejections.Inc()
	}
	return failWith(err)
}

func (s *Storage) getBytesInUse(extensionID string, params map[string]interface{}) (*types.Result, error) {
	keys, err := keysParam(params, "keys")
	if err != nil {
		return failure(err.Error())
	}

	n, err := s.engine.GetBytesInUse(extensionID, keys)
	if err != nil {
		return failWith(err)
	}
	return success(map[string]interface{}{"bytesInUse": n})
}
