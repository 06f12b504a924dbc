package handle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/domain"
)

// Body is the fixed response served on every request
const Body = "Hello World"

const shutdownTimeout = 5 * time.Second

// HTTPHandle serves a fixed response on the configured port
type HTTPHandle struct {
	cfg      *domain.ServerConfig
	bindHost string
	logger   *zap.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewHTTPHandle creates a handle for cfg. bindHost is the interface to listen on;
// empty means all interfaces.
func NewHTTPHandle(cfg *domain.ServerConfig, bindHost string, logger *zap.Logger) *HTTPHandle {
	return &HTTPHandle{
		cfg:      cfg,
		bindHost: bindHost,
		logger:   logger.Named("http-handle"),
	}
}

// Start binds the port and begins serving in the background
func (h *HTTPHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running.Load() {
		return nil
	}
	if h.cfg == nil {
		return errors.New("no server configuration")
	}

	port, err := strconv.Atoi(h.cfg.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, h.cfg.Port)
	}

	addr := net.JoinHostPort(h.bindHost, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		// Every bind failure is reported as the port being unavailable
		return fmt.Errorf("%w: %s: %w", ErrPortInUse, addr, err)
	}

	srv := &http.Server{
		Handler:      newEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	h.server = srv
	h.listener = ln
	h.running.Store(true)

	go func() {
		h.logger.Info("Listener serving", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("Listener error", zap.Error(err))
		}
		h.mu.Lock()
		if h.server == srv {
			h.running.Store(false)
		}
		h.mu.Unlock()
	}()

	return nil
}

// Stop shuts the listener down gracefully
func (h *HTTPHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("Listener forced to shutdown", zap.Error(err))
		_ = h.server.Close()
	}

	h.server = nil
	h.listener = nil
	h.running.Store(false)
	h.logger.Info("Listener stopped")
}

// IsRunning reports whether the listener is serving
func (h *HTTPHandle) IsRunning() bool {
	return h.running.Load()
}

// CurrentConfig returns the config supplied at construction
func (h *HTTPHandle) CurrentConfig() *domain.ServerConfig {
	return h.cfg
}

// Addr returns the bound address, or nil when stopped
func (h *HTTPHandle) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, Body)
	})
	return engine
}
