package providers

import (
	"fmt"

	"github.com/webextkit/bridge/internal/types"
)

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{
		Success: true,
		Data:    data,
	}, nil
}

func pending(future types.Awaitable) (*types.Result, error) {
	return &types.Result{
		Success: true,
		Pending: future,
	}, nil
}

func failure(message string) (*types.Result, error) {
	errMsg := message
	return &types.Result{
		Success: false,
		Error:   &errMsg,
	}, fmt.Errorf("%s", message)
}

// failWith keeps the taxonomy error intact so callers can errors.Is it
func failWith(err error) (*types.Result, error) {
	errMsg := err.Error()
	return &types.Result{
		Success: false,
		Error:   &errMsg,
	}, err
}

func unknownMethod(methodID string) (*types.Result, error) {
	return failWith(fmt.Errorf("%w: %s", types.ErrUnknownMethod, methodID))
}

func stringParam(params map[string]interface{}, name string) (string, bool) {
	v, ok := params[name].(string)
	return v, ok && v != ""
}

func floatParam(params map[string]interface{}, name string) (float64, bool) {
	v, ok := params[name].(float64)
	return v, ok
}

func mapParam(params map[string]interface{}, name string) (map[string]interface{}, bool) {
	v, ok := params[name].(map[string]interface{})
	return v, ok
}

// keysParam reads an optional string-array parameter; a missing or null
// parameter returns nil (meaning "all keys").
func keysParam(params map[string]interface{}, name string) ([]string, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", name)
	}
	keys := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an array of strings", name)
		}
		keys = append(keys, s)
	}
	return keys, nil
}
