// Package store persists the ordered vault through one of two backends:
// the platform credential store, or a passphrase-encrypted blob kept in the
// local state file.
package store

import (
	"context"

	"github.com/mlukins/keyfob/internal/vault"
)

// Status tags the outcome of a load.
type Status int

const (
	// StatusUnlocked means the vault was retrieved and parsed; Entries is set.
	StatusUnlocked Status = iota
	// StatusNotFound means no vault exists for the identity. Not an error:
	// the caller proceeds with an empty vault.
	StatusNotFound
	// StatusAwaitingUnlock means an encrypted blob was found and a
	// passphrase is required; Blob holds the raw bytes.
	StatusAwaitingUnlock
)

// Result is the tagged outcome of Store.Load.
type Result struct {
	Status  Status
	Entries []vault.Entry
	Blob    []byte
}

// Store is the common persistence contract. Save writes the full ordered
// collection; partial updates do not exist at this layer. Both operations
// may block (credential-store calls, key derivation) and are expected to be
// dispatched to a background worker by the caller.
type Store interface {
	Load(ctx context.Context, identity string) (Result, error)
	Save(ctx context.Context, identity string, entries []vault.Entry) error
}
