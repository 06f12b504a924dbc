// Package handle provides the start/stop-able listener the coordinator drives.
package handle

import (
	"errors"

	"github.com/sirosfoundation/go-local-server/internal/domain"
)

var (
	// ErrInvalidPort is returned by Start when the configured port is not a TCP port number
	ErrInvalidPort = errors.New("port is not an integer")
	// ErrPortInUse is returned by Start when the port cannot be bound, whether it
	// is taken, privileged or on an address this host does not have. The
	// underlying listen error is wrapped as well.
	ErrPortInUse = errors.New("address already in use")
)

// Handle is a listener bound to one ServerConfig.
// It does no validation of its own; it only binds and releases the socket.
type Handle interface {
	// Start binds the listener. Callers must not call it while running.
	Start() error
	// Stop releases the listener. Safe to call when already stopped.
	Stop()
	// IsRunning reports liveness without side effects.
	IsRunning() bool
	// CurrentConfig returns the config bound at construction; nil if none was supplied.
	CurrentConfig() *domain.ServerConfig
}
