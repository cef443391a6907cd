package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webextkit/bridge/internal/alarms"
	"github.com/webextkit/bridge/internal/bridge"
	"github.com/webextkit/bridge/internal/contexts"
	"github.com/webextkit/bridge/internal/correlation"
	"github.com/webextkit/bridge/internal/ports"
	"github.com/webextkit/bridge/internal/storage"
	"github.com/webextkit/bridge/internal/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	instanceID string
	directory  *contexts.Directory
	bridge     *bridge.Registry
	registry   *correlation.Registry
	ports      *ports.Manager
	storage    *storage.Engine
	alarms     *alarms.Scheduler
}

// NewHandlers creates a new handler set
func NewHandlers(
	instanceID string,
	directory *contexts.Directory,
	b *bridge.Registry,
	registry *correlation.Registry,
	p *ports.Manager,
	engine *storage.Engine,
	scheduler *alarms.Scheduler,
) *Handlers {
	return &Handlers{
		instanceID: instanceID,
		directory:  directory,
		bridge:     b,
		registry:   registry,
		ports:      p,
		storage:    engine,
		alarms:     scheduler,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  "extension-bridge",
		"instance": h.instanceID,
		"status":   "running",
		"stats":    h.bridge.Stats(),
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "healthy",
		"contexts":             h.directory.Count(),
		"ports":                h.ports.Count(),
		"alarms":               h.alarms.Count(),
		"pending_correlations": h.registry.Pending(),
	})
}

// ListContexts lists the attached script contexts
func (h *Handlers) ListContexts(c *gin.Context) {
	type contextInfo struct {
		ID          string    `json:"id"`
		ExtensionID string    `json:"extensionId"`
		Kind        string    `json:"kind"`
		AttachedAt  time.Time `json:"attachedAt"`
	}

	out := []contextInfo{}
	for _, ctx := range h.directory.List() {
		out = append(out, contextInfo{
			ID:          ctx.ID,
			ExtensionID: ctx.ExtensionID,
			Kind:        string(ctx.Kind),
			AttachedAt:  ctx.AttachedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"contexts": out, "count": len(out)})
}

// ListServices lists the registered service definitions
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": h.bridge.List()})
}

// InspectStorage returns an extension's stored mapping and usage
func (h *Handlers) InspectStorage(c *gin.Context) {
	extensionID := c.Param("id")
	if err := utils.ValidateExtensionID(extensionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	values, err := h.storage.Get(extensionID, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	used, err := h.storage.GetBytesInUse(extensionID, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"extensionId": extensionID,
		"values":      values,
		"bytesInUse":  used,
	})
}

// UnloadExtension tears down everything an extension holds: its ports
// disconnect and its alarms are cleared. Stored values survive.
func (h *Handlers) UnloadExtension(c *gin.Context) {
	extensionID := c.Param("id")
	if err := utils.ValidateExtensionID(extensionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.ports.DisconnectAll(extensionID)
	cleared := h.alarms.ClearAll(extensionID)

	c.JSON(http.StatusOK, gin.H{
		"extensionId":   extensionID,
		"alarmsCleared": cleared,
	})
}
