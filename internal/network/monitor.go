package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AddressFunc returns the current network address, or "" when disconnected
type AddressFunc func() (string, error)

// Monitor polls for the device address and reports changes to a Listener.
// Events are delivered from a single goroutine in the order they are observed.
type Monitor struct {
	lookup   AddressFunc
	interval time.Duration
	factory  ConfigFactory
	listener Listener
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMonitor creates a Monitor. It does nothing until Subscribe is called.
func NewMonitor(lookup AddressFunc, interval time.Duration, factory ConfigFactory, listener Listener, logger *zap.Logger) *Monitor {
	return &Monitor{
		lookup:   lookup,
		interval: interval,
		factory:  factory,
		listener: listener,
		logger:   logger.Named("network-monitor"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe starts polling. The first poll always reports the current state;
// later polls report only changes. Calling Subscribe again has no effect.
func (m *Monitor) Subscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	go m.run()
}

// Close stops polling and waits for the delivery goroutine to exit
func (m *Monitor) Close() {
	m.mu.Lock()
	started := m.started
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	m.mu.Unlock()

	if started {
		<-m.done
	}
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last, first := "", true
	for {
		address, err := m.lookup()
		if err != nil {
			m.logger.Warn("Failed to look up network address", zap.Error(err))
			address = ""
		}

		if first || address != last {
			m.deliver(address)
			last, first = address, false
		}

		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) deliver(address string) {
	if address == "" {
		m.logger.Info("Network disconnected")
		m.listener.OnNetworkDisconnected()
		return
	}
	m.logger.Info("Network connected", zap.String("address", address))
	m.listener.OnNetworkConnected(m.factory.Build(address))
}

// InterfaceAddress returns an AddressFunc reporting the first IPv4 address of
// the named interface. With an empty name the first non-loopback interface
// that is up is used.
func InterfaceAddress(name string) AddressFunc {
	return func() (string, error) {
		if name != "" {
			iface, err := net.InterfaceByName(name)
			if err != nil {
				// A missing interface means the radio is off
				return "", nil
			}
			return ipv4Of(*iface)
		}

		ifaces, err := net.Interfaces()
		if err != nil {
			return "", fmt.Errorf("failed to list interfaces: %w", err)
		}
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addr, err := ipv4Of(iface)
			if err != nil {
				return "", err
			}
			if addr != "" {
				return addr, nil
			}
		}
		return "", nil
	}
}

func ipv4Of(iface net.Interface) (string, error) {
	if iface.Flags&net.FlagUp == 0 {
		return "", nil
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("failed to read addresses of %s: %w", iface.Name, err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4.String(), nil
		}
	}
	return "", nil
}
