package models

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied disables notification dispatch; fetching goes on.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrDuplicateProduct is returned when a product id is already tracked.
	ErrDuplicateProduct = errors.New("product already tracked")
	// ErrProductNotTracked is returned when removing an unknown product id.
	ErrProductNotTracked = errors.New("product not tracked")
)

// NetworkError is a failed request to the proxy for one product or store list.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NormalizationError means a vendor payload did not have the expected shape.
type NormalizationError struct {
	Chain  ChainID
	Path   string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s: %s", e.Chain, e.Path, e.Reason)
}

// PersistenceError wraps every failure of the key-value store.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigValidationError rejects a settings or schedule change; the prior
// valid configuration stays active.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedChainError is returned for chain ids without an adapter.
type UnsupportedChainError struct {
	Chain string
}

func (e *UnsupportedChainError) Error() string {
	return "unsupported chain: " + e.Chain
}
