// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/mizuho42/agent-arena/domain"
)

// Store defines the interface for arena state persistence. The arena owns
// the in-memory state; the store is a best-effort durability layer behind it.
type Store interface {
	// LoadState loads the persisted state document. A missing or corrupt
	// document yields a defaulted state, never an error a caller must
	// treat as fatal.
	LoadState(ctx context.Context) (*domain.State, error)

	// SaveState replaces the persisted state document.
	SaveState(ctx context.Context, state *domain.State) error

	// Lifecycle
	Close() error
}
