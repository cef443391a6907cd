package providers

import (
	"github.com/webextkit/bridge/internal/alarms"
	"github.com/webextkit/bridge/internal/types"
)

// Alarms exposes the per-extension timer service to script contexts
type Alarms struct {
	scheduler *alarms.Scheduler
}

// NewAlarms creates the alarms provider
func NewAlarms(scheduler *alarms.Scheduler) *Alarms {
	return &Alarms{scheduler: scheduler}
}

// Definition returns service metadata
func (a *Alarms) Definition() types.Service {
	return types.Service{
		ID:          "alarms",
		Name:        "Alarm Scheduler",
		Description: "Named one-shot and periodic timers per extension",
		Category:    types.CategoryAlarms,
		Capabilities: []string{
			"create",
			"query",
			"clear",
		},
		Methods: []types.Method{
			{
				ID:          "alarms.create",
				Name:        "Create Alarm",
				Description: "Arm a named alarm; an existing name is replaced",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Alarm name", Required: true},
					{Name: "when", Type: "number", Description: "Absolute fire time in ms (optional)", Required: false},
					{Name: "delayInMinutes", Type: "number", Description: "Relative delay (optional)", Required: false},
					{Name: "periodInMinutes", Type: "number", Description: "Repeat period (optional)", Required: false},
				},
				Returns: "Alarm",
			},
			{
				ID:          "alarms.get",
				Name:        "Get Alarm",
				Description: "Look an alarm up by name",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Alarm name", Required: true},
				},
				Returns: "Alarm",
			},
			{
				ID:          "alarms.getAll",
				Name:        "Get All Alarms",
				Description: "List the extension's armed alarms",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "alarms.clear",
				Name:        "Clear Alarm",
				Description: "Cancel and remove an alarm by name",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Alarm name", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "alarms.clearAll",
				Name:        "Clear All Alarms",
				Description: "Cancel and remove every alarm of the extension",
				Parameters:  []types.Parameter{},
				Returns:     "boolean",
			},
		},
	}
}

// Execute runs an alarm operation
func (a *Alarms) Execute(methodID string, params map[string]interface{}, ctx *types.CallContext) (*types.Result, error) {
	if ctx == nil || ctx.ExtensionID == "" {
		return failure("extension context required for alarm operations")
	}

	switch methodID {
	case "alarms.create":
		return a.create(ctx.ExtensionID, params)
	case "alarms.get":
		return a.get(ctx.ExtensionID, params)
	case "alarms.getAll":
		return a.getAll(ctx.ExtensionID)
	case "alarms.clear":
		return a.clear(ctx.ExtensionID, params)
	case "alarms.clearAll":
		return a.clearAll(ctx.ExtensionID)
	default:
		return unknownMethod(methodID)
	}
}

func (a *Alarms) create(extensionID string, params map[string]interface{}) (*types.Result, error) {
	name, ok := stringParam(params, "name")
	if !ok {
		return failure("name parameter required")
	}

	var opts alarms.CreateOptions
	if when, ok := floatParam(params, "when"); ok {
		ms := int64(when)
		opts.When = &ms
	}
	if delay, ok := floatParam(params, "delayInMinutes"); ok {
		opts.DelayInMinutes = &delay
	}
	if period, ok := floatParam(params, "periodInMinutes"); ok {
		opts.PeriodInMinutes = &period
	}

	alarm := a.scheduler.Create(extensionID, name, opts)
	return success(map[string]interface{}{"alarm": alarm})
}

func (a *Alarms) get(extensionID string, params map[string]interface{}) (*types.Result, error) {
	name, ok := stringParam(params, "name")
	if !ok {
		return failure("name parameter required")
	}

	alarm, found := a.scheduler.Get(extensionID, name)
	if !found {
		return success(map[string]interface{}{"alarm": nil})
	}
	return success(map[string]interface{}{"alarm": alarm})
}

func (a *Alarms) getAll(extensionID string) (*types.Result, error) {
	return success(map[string]interface{}{"alarms": a.scheduler.GetAll(extensionID)})
}

func (a *Alarms) clear(extensionID string, params map[string]interface{}) (*types.Result, error) {
	name, ok := stringParam(params, "name")
	if !ok {
		return failure("name parameter required")
	}
	return success(map[string]interface{}{"cleared": a.scheduler.Clear(extensionID, name)})
}

func (a *Alarms) clearAll(extensionID string) (*types.Result, error) {
	return success(map[string]interface{}{"cleared": a.scheduler.ClearAll(extensionID)})
}
