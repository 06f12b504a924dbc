package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/api"
	"github.com/sirosfoundation/go-local-server/internal/coordinator"
	"github.com/sirosfoundation/go-local-server/internal/handle"
	"github.com/sirosfoundation/go-local-server/internal/metrics"
	"github.com/sirosfoundation/go-local-server/internal/network"
	"github.com/sirosfoundation/go-local-server/internal/server"
	"github.com/sirosfoundation/go-local-server/internal/websocket"
	"github.com/sirosfoundation/go-local-server/pkg/config"
	"github.com/sirosfoundation/go-local-server/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Local Server",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("network_source", cfg.Network.Source),
	)

	factory := network.ConfigFactory{
		Port:            cfg.Listener.Port,
		RunInBackground: cfg.Listener.RunInBackground,
	}

	// The listener config is fixed for the process lifetime; take the
	// address visible at startup when there is one.
	lookup := network.InterfaceAddress(cfg.Network.Interface)
	var initialAddress string
	if cfg.Network.Source == config.NetworkSourcePoll {
		if addr, err := lookup(); err == nil {
			initialAddress = addr
		} else {
			logger.Warn("No network address at startup", zap.Error(err))
		}
	}
	listenerCfg := factory.Build(initialAddress)
	if listenerCfg == nil {
		listenerCfg = factory.Build(cfg.Listener.BindHost)
	}
	h := handle.NewHTTPHandle(listenerCfg, cfg.Listener.BindHost, logger)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	coord := coordinator.New(h, logger, coordinator.WithMetrics(metrics.New(reg)))

	// Network source
	var (
		source  network.Source
		push    *network.PushSource
		monitor *network.Monitor
	)
	switch cfg.Network.Source {
	case config.NetworkSourcePush:
		push = network.NewPushSource(factory, coord, logger)
		source = push
	default:
		monitor = network.NewMonitor(lookup, cfg.Network.PollInterval(), factory, coord, logger)
		source = monitor
	}

	hub := websocket.NewHub(cfg.Auth.Secret, coord, source, logger)

	mgr := server.NewManager(cfg, server.Deps{
		Handlers:  api.NewHandlers(coord, push, logger),
		WebSocket: hub.HandleConnection,
		Gatherer:  reg,
	}, logger)

	if err := mgr.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start control server", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Shutdown(ctx); err != nil {
		logger.Error("Control server forced to shutdown", zap.Error(err))
	}
	hub.Close()
	if monitor != nil {
		monitor.Close()
	}
	h.Stop()

	logger.Info("Server exited")
}
