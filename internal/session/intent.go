package session

import (
	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/vault"
)

// Intent is one user action entering the core from the presentation layer.
// Every intent is validated inside the event loop before being applied; an
// accepted mutation is immediately followed by a save.
type Intent interface {
	isIntent()
}

// SelectIdentity chooses the active identity and begins loading its vault.
type SelectIdentity struct {
	Identity string
}

// Unlock supplies the passphrase for a pending encrypted blob (envelope
// backend only). The session takes ownership of the slice and wipes it.
type Unlock struct {
	Passphrase []byte
}

// CreateEntry adds a new credential built from the form.
type CreateEntry struct {
	Form vault.Form
}

// EditEntry rewrites an existing credential from the form. An empty secret
// field keeps the stored secret.
type EditEntry struct {
	ID   uuid.UUID
	Form vault.Form
}

// DeleteEntry removes a credential. Confirmation is the presentation
// layer's concern.
type DeleteEntry struct {
	ID uuid.UUID
}

// MoveEntry swaps a credential with its neighbour. Moving the first entry
// up or the last entry down is a no-op.
type MoveEntry struct {
	ID uuid.UUID
	Up bool
}

// CopyCode asks for the entry's current code; the caller owns the clipboard.
type CopyCode struct {
	ID uuid.UUID
}

// DismissNotice removes a surfaced notification.
type DismissNotice struct {
	ID uuid.UUID
}

// Logout discards the decrypted vault and all derived key material.
type Logout struct{}

func (SelectIdentity) isIntent() {}
func (Unlock) isIntent()         {}
func (CreateEntry) isIntent()    {}
func (EditEntry) isIntent()      {}
func (DeleteEntry) isIntent()    {}
func (MoveEntry) isIntent()      {}
func (CopyCode) isIntent()       {}
func (DismissNotice) isIntent()  {}
func (Logout) isIntent()         {}
