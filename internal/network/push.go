package network

import "go.uber.org/zap"

// Source is something a view can subscribe to for network events
type Source interface {
	Subscribe()
}

// PushSource forwards network events delivered by an external driver, such as
// the control API, instead of observing the network itself.
type PushSource struct {
	factory  ConfigFactory
	listener Listener
	logger   *zap.Logger
}

// NewPushSource creates a PushSource
func NewPushSource(factory ConfigFactory, listener Listener, logger *zap.Logger) *PushSource {
	return &PushSource{
		factory:  factory,
		listener: listener,
		logger:   logger.Named("network-push"),
	}
}

// Subscribe is a no-op; events arrive through Connected and Disconnected
func (p *PushSource) Subscribe() {}

// Connected reports a network with the given address
func (p *PushSource) Connected(address string) {
	p.logger.Info("Network connected", zap.String("address", address))
	p.listener.OnNetworkConnected(p.factory.Build(address))
}

// Disconnected reports loss of the network
func (p *PushSource) Disconnected() {
	p.logger.Info("Network disconnected")
	p.listener.OnNetworkDisconnected()
}
