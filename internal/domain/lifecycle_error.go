package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies why a start or validation failed
type ErrorKind int

const (
	// KindUnknown is the catch-all for unclassified handle failures
	KindUnknown ErrorKind = iota
	// KindInvalidPort means the port is missing, not an integer or not positive
	KindInvalidPort
	// KindPortInUse means the listener could not bind the port
	KindPortInUse
	// KindInvalidConfig means no configuration was available
	KindInvalidConfig
	// KindNetworkUnavailable means there is no network address to serve on
	KindNetworkUnavailable
)

var kindNames = map[ErrorKind]string{
	KindUnknown:            "unknown",
	KindInvalidPort:        "invalid_port",
	KindPortInUse:          "port_in_use",
	KindInvalidConfig:      "invalid_config",
	KindNetworkUnavailable: "network_unavailable",
}

// String returns the snake_case name of the kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// ParseErrorKind converts a name produced by String back to a kind.
// Unrecognised names map to KindUnknown.
func ParseErrorKind(name string) ErrorKind {
	for kind, n := range kindNames {
		if n == name {
			return kind
		}
	}
	return KindUnknown
}

// MarshalJSON encodes the kind as its name
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name
func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("error kind must be a string: %w", err)
	}
	*k = ParseErrorKind(name)
	return nil
}

// LifecycleError is the error reported to a view when a lifecycle operation
// fails. It carries only its kind; two errors of the same kind are equal
// wherever they were created.
type LifecycleError struct {
	Kind ErrorKind `json:"kind"`
}

// NewLifecycleError creates a LifecycleError of the given kind
func NewLifecycleError(kind ErrorKind) LifecycleError {
	return LifecycleError{Kind: kind}
}

func (e LifecycleError) Error() string {
	return "lifecycle error: " + e.Kind.String()
}

// Is matches any LifecycleError (value or pointer) of the same kind
func (e LifecycleError) Is(target error) bool {
	switch t := target.(type) {
	case LifecycleError:
		return t.Kind == e.Kind
	case *LifecycleError:
		return t != nil && t.Kind == e.Kind
	}
	return false
}

// Sentinel values for errors.Is comparisons
var (
	ErrInvalidPort        = NewLifecycleError(KindInvalidPort)
	ErrPortInUse          = NewLifecycleError(KindPortInUse)
	ErrInvalidConfig      = NewLifecycleError(KindInvalidConfig)
	ErrNetworkUnavailable = NewLifecycleError(KindNetworkUnavailable)
	ErrUnknown            = NewLifecycleError(KindUnknown)
)

// KindOf returns the kind of err, or KindUnknown when err does not wrap a
// LifecycleError. A nil error has no kind and also yields KindUnknown.
func KindOf(err error) ErrorKind {
	var le LifecycleError
	if errors.As(err, &le) {
		return le.Kind
	}
	var lp *LifecycleError
	if errors.As(err, &lp) && lp != nil {
		return lp.Kind
	}
	return KindUnknown
}
