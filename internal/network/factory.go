// Package network observes network availability and turns it into
// coordinator events.
package network

import "github.com/sirosfoundation/go-local-server/internal/domain"

// Listener receives network changes. The coordinator implements it.
type Listener interface {
	OnNetworkConnected(cfg *domain.ServerConfig)
	OnNetworkDisconnected()
}

// ConfigFactory builds ServerConfigs from the current address and the
// user-supplied listener settings. It performs no validation.
type ConfigFactory struct {
	Port            string
	RunInBackground bool
}

// Build returns a fresh config for address, or nil when address is empty
func (f ConfigFactory) Build(address string) *domain.ServerConfig {
	if address == "" {
		return nil
	}
	return domain.NewServerConfig(address, f.Port, f.RunInBackground)
}
