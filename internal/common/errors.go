// Package common defines shared sentinel errors and small utility helpers
// used across keyfob components. Callers should match errors with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityMissing is returned when an operation needs a selected
	// identity and none is set. It is a no-op condition, not a failure.
	ErrIdentityMissing = errors.New("no identity selected")

	// ErrNotFound reports an absent vault. It is not a failure: the caller
	// starts from an empty vault.
	ErrNotFound = errors.New("not found")

	// ErrDecryptAuth reports that the encrypted vault envelope could not be
	// authenticated: wrong passphrase or corrupted blob. Recoverable, the
	// user is re-prompted.
	ErrDecryptAuth = errors.New("envelope authentication failed")

	// ErrParse reports that retrieved or decrypted bytes are not valid
	// vault data. The vault stays locked.
	ErrParse = errors.New("invalid vault data")

	// ErrSecretDecode reports a malformed or empty user-entered secret
	// string. The entry under edit is left unchanged.
	ErrSecretDecode = errors.New("invalid secret encoding")

	// ErrPlatformStore reports a platform credential-store failure.
	ErrPlatformStore = errors.New("platform credential store failure")

	// ErrBackgroundTask reports a generic background worker failure.
	ErrBackgroundTask = errors.New("background task failed")

	// ErrLocked is returned when a mutating or code-producing operation
	// arrives while the vault is not unlocked.
	ErrLocked = errors.New("vault is locked")

	// ErrEntryNotFound reports an intent addressing an unknown entry id.
	// Matches ErrNotFound too.
	ErrEntryNotFound = fmt.Errorf("entry: %w", ErrNotFound)
)
