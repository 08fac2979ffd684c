package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/config"
	"github.com/mlukins/keyfob/internal/cryptox"
	"github.com/mlukins/keyfob/internal/logging"
	"github.com/mlukins/keyfob/internal/vault"
)

// EnvelopeStore persists the vault as a passphrase-encrypted blob inside
// the local state file. Load only surfaces the raw blob; decryption happens
// in Unlock once the user supplies a passphrase. The passphrase is retained
// (encryption uses a fresh salt per save) until Clear wipes it on logout.
type EnvelopeStore struct {
	state *config.Statefile
	log   logging.Logger

	mu         sync.Mutex
	passphrase []byte
}

func NewEnvelopeStore(state *config.Statefile, log logging.Logger) *EnvelopeStore {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &EnvelopeStore{state: state, log: log.With("store", "envelope")}
}

func (s *EnvelopeStore) Load(ctx context.Context, identity string) (Result, error) {
	blob, ok := s.state.SecretBlob(identity)
	if !ok {
		s.log.Info(ctx, "no stored vault", "identity", identity)
		return Result{Status: StatusNotFound}, nil
	}
	return Result{Status: StatusAwaitingUnlock, Blob: blob}, nil
}

// Unlock decrypts blob with passphrase and parses the vault. A nil blob is
// the fresh-vault path: the passphrase is adopted and an empty entry list
// returned. Wrong passphrase or tampering yields common.ErrDecryptAuth;
// undecodable plaintext yields common.ErrParse. On success the store keeps
// its own copy of the passphrase for subsequent saves.
func (s *EnvelopeStore) Unlock(ctx context.Context, blob, passphrase []byte) ([]vault.Entry, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("empty passphrase: %w", common.ErrDecryptAuth)
	}

	if blob == nil {
		s.adopt(passphrase)
		return []vault.Entry{}, nil
	}

	plaintext, err := cryptox.Decrypt(passphrase, blob)
	if err != nil {
		return nil, err
	}

	v, err := vault.Unmarshal(plaintext)
	if err != nil {
		return nil, err
	}

	s.adopt(passphrase)
	s.log.Info(ctx, "vault unlocked", "entries", v.Len())
	return v.Entries(), nil
}

func (s *EnvelopeStore) Save(ctx context.Context, identity string, entries []vault.Entry) error {
	s.mu.Lock()
	passphrase := make([]byte, len(s.passphrase))
	copy(passphrase, s.passphrase)
	s.mu.Unlock()
	defer common.WipeByteArray(passphrase)

	if len(passphrase) == 0 {
		return common.ErrLocked
	}

	v, err := vault.New(entries)
	if err != nil {
		return err
	}
	plaintext, err := vault.Marshal(v)
	if err != nil {
		return err
	}

	blob, err := cryptox.Encrypt(passphrase, plaintext)
	if err != nil {
		return err
	}

	if err := s.state.SetSecretBlob(identity, blob); err != nil {
		return err
	}

	s.log.Debug(ctx, "vault saved", "identity", identity, "entries", len(entries))
	return nil
}

// Clear wipes the retained passphrase. Called on logout; saves attempted
// afterwards fail with common.ErrLocked.
func (s *EnvelopeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.passphrase)
	s.passphrase = nil
}

func (s *EnvelopeStore) adopt(passphrase []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.passphrase)
	s.passphrase = make([]byte, len(passphrase))
	copy(s.passphrase, passphrase)
}
