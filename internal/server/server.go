package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webextkit/bridge/internal/alarms"
	"github.com/webextkit/bridge/internal/bridge"
	"github.com/webextkit/bridge/internal/config"
	"github.com/webextkit/bridge/internal/contexts"
	"github.com/webextkit/bridge/internal/correlation"
	httpapi "github.com/webextkit/bridge/internal/http"
	"github.com/webextkit/bridge/internal/logging"
	"github.com/webextkit/bridge/internal/middleware"
	"github.com/webextkit/bridge/internal/monitoring"
	"github.com/webextkit/bridge/internal/ports"
	"github.com/webextkit/bridge/internal/providers"
	"github.com/webextkit/bridge/internal/router"
	"github.com/webextkit/bridge/internal/storage"
	"github.com/webextkit/bridge/internal/timewheel"
	"github.com/webextkit/bridge/internal/types"
	"github.com/webextkit/bridge/internal/ws"
)

// Server wraps the HTTP surface and the broker it fronts
type Server struct {
	instanceID string
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics

	engine    *gin.Engine
	httpSrv   *http.Server
	wheel     *timewheel.Wheel
	directory *contexts.Directory
	registry  *correlation.Registry
	router    *router.Router
	ports     *ports.Manager
	storage   *storage.Engine
	store     storage.Store
	alarms    *alarms.Scheduler
	bridge    *bridge.Registry

	stop chan struct{}
}

// portTransport delivers port traffic into the extension's background
// context. All ports terminate at the background worker; traffic on a
// port whose worker is gone fails delivery.
type portTransport struct {
	directory *contexts.Directory
}

func (t *portTransport) Deliver(port *ports.Port, env *types.Envelope) error {
	ctx, ok := t.directory.Background(port.ExtensionID)
	if !ok {
		return types.ErrPortDisconnected
	}
	return ctx.Dispatcher.Dispatch(env)
}

// New assembles a server from configuration
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	wheel := timewheel.New()
	registry := correlation.NewRegistry(wheel, logger)
	directory := contexts.NewDirectory(logger)
	rtr := router.New(registry, directory, cfg.Broker.SendTimeout, cfg.Broker.BroadcastTimeout, logger)

	transport := &portTransport{directory: directory}
	portMgr := ports.NewManager(transport, registry, cfg.Broker.SendTimeout, logger)

	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}
	engine := storage.NewEngine(store, cfg.Storage.QuotaBytes, logger)

	// Change-sets fan out to every live context of the mutated extension
	engine.Subscribe(func(extensionID string, changes map[string]storage.Change) {
		env := &types.Envelope{
			Type: types.EnvelopeStorageChanged,
			Data: map[string]interface{}{"changes": changes},
		}
		for _, ctx := range directory.ListByExtension(extensionID, "") {
			if err := ctx.Dispatcher.Dispatch(env); err != nil {
				logger.Debug("storage change delivery failed",
					zap.String("context_id", ctx.ID),
					zap.Error(err))
			}
		}
	})

	// Fired alarms deliver the same way
	scheduler := alarms.NewScheduler(wheel, func(extensionID string, alarm alarms.Alarm) {
		metrics.AlarmsFired.Inc()
		env := &types.Envelope{
			Type: types.EnvelopeAlarm,
			Data: map[string]interface{}{"alarm": alarm},
		}
		for _, ctx := range directory.ListByExtension(extensionID, "") {
			if err := ctx.Dispatcher.Dispatch(env); err != nil {
				logger.Debug("alarm delivery failed",
					zap.String("context_id", ctx.ID),
					zap.Error(err))
			}
		}
	}, logger)

	bridgeRegistry := bridge.NewRegistry()
	for _, p := range []bridge.Provider{
		providers.NewRuntime(rtr, portMgr),
		providers.NewPortService(portMgr),
		providers.NewStorage(engine, metrics),
		providers.NewAlarms(scheduler),
	} {
		if err := bridgeRegistry.Register(p); err != nil {
			return nil, fmt.Errorf("register provider: %w", err)
		}
	}

	s := &Server{
		instanceID: uuid.NewString(),
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		wheel:      wheel,
		directory:  directory,
		registry:   registry,
		router:     rtr,
		ports:      portMgr,
		storage:    engine,
		store:      store,
		alarms:     scheduler,
		bridge:     bridgeRegistry,
		stop:       make(chan struct{}),
	}
	s.engine = s.routes()
	go s.collectStats()
	return s, nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "badger":
		return storage.NewBadgerStore(cfg.Path)
	case "file", "":
		return storage.NewFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(s.metrics.Middleware())
	if s.cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}

	handlers := httpapi.NewHandlers(s.instanceID, s.directory, s.bridge, s.registry, s.ports, s.storage, s.alarms)
	wsHandler := ws.NewHandler(s.directory, s.router, s.ports, s.bridge, s.metrics, s.logger)

	engine.GET("/", handlers.Root)
	engine.GET("/health", handlers.Health)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	engine.GET("/contexts", handlers.ListContexts)
	engine.GET("/services", handlers.ListServices)
	engine.GET("/extensions/:id/storage", handlers.InspectStorage)
	engine.DELETE("/extensions/:id", handlers.UnloadExtension)
	engine.GET("/attach", wsHandler.HandleConnection)

	return engine
}

// collectStats refreshes gauge metrics until shutdown
func (s *Server) collectStats() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.metrics.UpdateUptime()
			s.metrics.CorrelationsPending.Set(float64(s.registry.Pending()))
			s.metrics.CorrelationsTimedOut.Set(float64(s.registry.TimedOut()))
			s.metrics.PortsActive.Set(float64(s.ports.Count()))
			s.metrics.AlarmsActive.Set(float64(s.alarms.Count()))
		case <-s.stop:
			return
		}
	}
}

// Handler exposes the HTTP surface, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	s.logger.Info("bridge listening",
		zap.String("addr", addr),
		zap.String("instance", s.instanceID))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server and releases broker resources
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.wheel.Close()
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
