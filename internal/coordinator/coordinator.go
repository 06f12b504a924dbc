// Package coordinator reconciles user intent and network availability into a
// single server lifecycle.
//
// The Coordinator owns the attached view, the last known network address and
// the listener handle. UI events (attach, power on/off) and network events are
// serialized through one mutex; outcomes are reported to the attached ViewSink
// while that mutex is held, so a ViewSink must never call back into the
// Coordinator synchronously.
package coordinator

import (
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/domain"
	"github.com/sirosfoundation/go-local-server/internal/handle"
	"github.com/sirosfoundation/go-local-server/internal/metrics"
)

// ViewSink is the notification target representing the UI
type ViewSink interface {
	// OnServerStarted is called whenever the listener is (or already was) running
	OnServerStarted(cfg *domain.ServerConfig)
	// OnServerStopped is called whenever the listener is (or already was) stopped
	OnServerStopped()
	// OnError is called when an operation fails
	OnError(err domain.LifecycleError)
	// SubscribeToNetworkChanges asks the view to start delivering network events
	// to OnNetworkConnected and OnNetworkDisconnected. Delivery must be asynchronous.
	SubscribeToNetworkChanges()
}

// Status is a point-in-time view of the coordinator
type Status struct {
	Attached       bool                 `json:"attached"`
	Running        bool                 `json:"running"`
	NetworkAddress string               `json:"network_address,omitempty"`
	Config         *domain.ServerConfig `json:"config,omitempty"`
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMetrics records lifecycle transitions in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator is the single authority over the listener lifecycle
type Coordinator struct {
	mu               sync.Mutex
	view             ViewSink
	lastKnownAddress *string
	handle           handle.Handle

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Coordinator driving h. The handle is never replaced.
func New(h handle.Handle, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		handle: h,
		logger: logger.Named("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttachView stores view, replacing any previous attachment, subscribes it to
// network changes and then reports the current listener state to it.
// A nil view detaches.
func (c *Coordinator) AttachView(view ViewSink) {
	if view == nil {
		c.DetachView()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.view = view
	c.metrics.ViewAttached(true)
	c.logger.Debug("View attached")

	view.SubscribeToNetworkChanges()
	if c.handle.IsRunning() {
		view.OnServerStarted(c.handle.CurrentConfig())
	} else {
		view.OnServerStopped()
	}
}

// DetachView drops the attached view. The listener is stopped unless its
// config asks to keep running in the background. No view is notified.
func (c *Coordinator) DetachView() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.view = nil
	c.metrics.ViewAttached(false)
	c.logger.Debug("View detached")

	if !c.handle.IsRunning() {
		return
	}
	if cfg := c.handle.CurrentConfig(); cfg != nil && cfg.RunInBackground {
		c.logger.Info("Listener kept running in background")
		return
	}
	c.handle.Stop()
	c.metrics.ServerStopped(metrics.StopDetach)
	c.logger.Info("Server stopped", zap.String("reason", string(metrics.StopDetach)))
}

// StartServer validates the current config and starts the listener.
// It is a no-op when no view is attached.
func (c *Coordinator) StartServer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view == nil {
		return
	}

	cfg := c.handle.CurrentConfig()
	if err := c.validateStart(cfg); err != nil {
		c.reportError(err.(domain.LifecycleError))
		return
	}

	if c.handle.IsRunning() {
		c.view.OnServerStarted(cfg)
		return
	}

	if err := c.handle.Start(); err != nil {
		c.logger.Warn("Failed to start listener", zap.Error(err))
		c.reportError(domain.NewLifecycleError(classify(err)))
		return
	}

	c.metrics.ServerStarted()
	c.logger.Info("Server started",
		zap.String("address", cfg.Address),
		zap.String("port", cfg.Port),
		zap.Bool("run_in_background", cfg.RunInBackground),
	)
	c.view.OnServerStarted(cfg)
}

// StopServer stops the listener. It is a no-op when no view is attached and
// never fails.
func (c *Coordinator) StopServer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view == nil {
		return
	}

	if c.handle.IsRunning() {
		c.handle.Stop()
		c.metrics.ServerStopped(metrics.StopUser)
		c.logger.Info("Server stopped", zap.String("reason", string(metrics.StopUser)))
	}
	c.view.OnServerStopped()
}

// OnNetworkConnected records the address of cfg; a nil cfg records that there
// is no network. It neither starts nor stops the listener.
func (c *Coordinator) OnNetworkConnected(cfg *domain.ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg == nil {
		c.lastKnownAddress = nil
		c.logger.Debug("Network connected without address")
		return
	}
	address := cfg.Address
	c.lastKnownAddress = &address
	c.logger.Debug("Network connected", zap.String("address", address))
}

// OnNetworkDisconnected forgets the network address, reports
// NetworkUnavailable to the attached view and stops a running listener.
//
// The view receives only the error, not OnServerStopped.
func (c *Coordinator) OnNetworkDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastKnownAddress = nil
	c.logger.Debug("Network disconnected")

	if c.view != nil {
		c.reportError(domain.ErrNetworkUnavailable)
	}
	if c.handle.IsRunning() {
		c.handle.Stop()
		c.metrics.ServerStopped(metrics.StopNetwork)
		c.logger.Info("Server stopped", zap.String("reason", string(metrics.StopNetwork)))
	}
}

// ValidateStart reports whether cfg could be started given the last known
// network state. The returned error, if any, is a domain.LifecycleError.
func (c *Coordinator) ValidateStart(cfg *domain.ServerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateStart(cfg)
}

// Status returns a snapshot of the coordinator state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Attached: c.view != nil,
		Running:  c.handle.IsRunning(),
		Config:   c.handle.CurrentConfig(),
	}
	if c.lastKnownAddress != nil {
		st.NetworkAddress = *c.lastKnownAddress
	}
	return st
}

// validateStart checks the network before the config, so a disconnected
// network always wins over a bad config.
func (c *Coordinator) validateStart(cfg *domain.ServerConfig) error {
	if c.lastKnownAddress == nil || *c.lastKnownAddress == "" {
		return domain.ErrNetworkUnavailable
	}
	if cfg == nil {
		return domain.ErrInvalidConfig
	}
	if cfg.Port == "" {
		return domain.ErrInvalidPort
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port <= 0 {
		return domain.ErrInvalidPort
	}
	return nil
}

func (c *Coordinator) reportError(err domain.LifecycleError) {
	c.metrics.Error(err.Kind)
	c.logger.Warn("Reporting lifecycle error", zap.Stringer("kind", err.Kind))
	c.view.OnError(err)
}

// classify maps a handle failure to an error kind. Handles that already
// return a LifecycleError keep its kind; anything else is KindUnknown.
func classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, handle.ErrPortInUse):
		return domain.KindPortInUse
	case errors.Is(err, handle.ErrInvalidPort):
		return domain.KindInvalidPort
	default:
		return domain.KindOf(err)
	}
}
