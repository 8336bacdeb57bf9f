// Package kvstore is the durable key-value store the daemon keeps its
// settings, tracked products and availability snapshots in. Values are JSON
// documents and every write replaces the whole document.
package kvstore

import (
	"context"

	"stockwatch/pkg/models"
)

// Keys of the documents the daemon persists.
const (
	KeyNotificationSettings  = "notificationSettings"
	KeyTrackedProductIDs     = "trackedProductIds"
	KeyPreviousAvailability  = "previousAvailability"
	KeySelectedChain         = "selectedChain"
	KeySelectedProducts      = "selectedProducts"
	KeyPeriodicRegistrations = "periodicRegistrations"
	KeyTokenGeneration       = "controlTokenGeneration"
)

// SnapshotKey is the per-chain availability snapshot document. Each chain
// owns its own document so concurrent chain cycles never share a write.
func SnapshotKey(chain models.ChainID) string {
	return KeyPreviousAvailability + "." + string(chain)
}

// Store is implemented by every backend. Errors are *models.PersistenceError.
type Store interface {
	// Get decodes the document at key into out and reports whether it existed.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Put replaces the document at key.
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
