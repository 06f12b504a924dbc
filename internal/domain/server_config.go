package domain

import "fmt"

// ServerConfig is an immutable snapshot of the listener settings derived from
// the current network and user state. A new value is built whenever the
// network address or the user-supplied port/background flag changes.
//
// The port is kept as text; it is validated before a start, never at
// construction.
type ServerConfig struct {
	Address         string `json:"address"`
	Port            string `json:"port"`
	RunInBackground bool   `json:"run_in_background"`
}

// NewServerConfig creates a ServerConfig
func NewServerConfig(address, port string, runInBackground bool) *ServerConfig {
	return &ServerConfig{
		Address:         address,
		Port:            port,
		RunInBackground: runInBackground,
	}
}

// Equal reports whether two configs carry the same fields.
// Two nil configs are equal.
func (c *ServerConfig) Equal(other *ServerConfig) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}

// URL returns the address the listener is reachable at
func (c *ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%s", c.Address, c.Port)
}
