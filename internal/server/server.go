package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/api"
	"github.com/sirosfoundation/go-local-server/pkg/config"
	"github.com/sirosfoundation/go-local-server/pkg/middleware"
)

// Deps are the components the control plane routes to
type Deps struct {
	Handlers *api.Handlers
	// WebSocket serves the /ws upgrade; nil disables the route
	WebSocket http.HandlerFunc
	// Gatherer is exposed on /metrics; nil disables the route
	Gatherer prometheus.Gatherer
}

// Manager owns the control plane HTTP server
type Manager struct {
	cfg    *config.Config
	deps   Deps
	logger *zap.Logger

	router  *gin.Engine
	limiter *middleware.RateLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewManager creates a new server manager and builds its router
func NewManager(cfg *config.Config, deps Deps, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.Named("control"),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, logger),
	}
	m.router = m.buildRouter()
	return m
}

// Router returns the control plane router
func (m *Manager) Router() *gin.Engine {
	return m.router
}

// Start binds the control address and serves in the background
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("control server already started")
	}

	addr := m.cfg.Control.Address()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      m.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second, // Longer for WebSocket
	}
	m.server = srv
	m.listener = ln

	go func() {
		m.logger.Info("Control server listening", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Control server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound control address, or nil before Start
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Shutdown gracefully shuts the control server down
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.listener = nil
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("control server shutdown: %w", err)
	}
	return nil
}

func (m *Manager) buildRouter() *gin.Engine {
	if m.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(m.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     m.cfg.Control.CORS.AllowedOrigins,
		AllowMethods:     m.cfg.Control.CORS.AllowedMethods,
		AllowHeaders:     m.cfg.Control.CORS.AllowedHeaders,
		AllowCredentials: m.cfg.Control.CORS.AllowCredentials,
		MaxAge:           time.Duration(m.cfg.Control.CORS.MaxAge) * time.Second,
	}))

	h := m.deps.Handlers
	router.GET("/health", h.Status)
	router.GET("/status", h.Status)

	if m.deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Auth is handled via appToken in the WebSocket handshake, not HTTP headers
	if m.deps.WebSocket != nil {
		router.GET("/ws", gin.WrapF(m.deps.WebSocket))
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(m.cfg.Auth.Secret, m.logger))
	{
		srv := protected.Group("/server")
		{
			srv.GET("", h.ServerStatus)
			srv.POST("/start", middleware.RateLimitMiddleware(m.limiter), h.StartServer)
			srv.POST("/stop", middleware.RateLimitMiddleware(m.limiter), h.StopServer)
		}

		netGroup := protected.Group("/network")
		{
			netGroup.POST("/connected", h.NetworkConnected)
			netGroup.POST("/disconnected", h.NetworkDisconnected)
		}
	}

	return router
}
