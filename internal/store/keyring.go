package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/logging"
	"github.com/mlukins/keyfob/internal/vault"
)

// KeyringStore persists the vault JSON directly as a platform credential,
// addressed by (service = application id, user = identity). The OS keychain
// provides the at-rest protection; there is no passphrase layer.
type KeyringStore struct {
	service string
	log     logging.Logger
}

func NewKeyringStore(service string, log logging.Logger) *KeyringStore {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &KeyringStore{service: service, log: log.With("store", "keyring")}
}

func (s *KeyringStore) Load(ctx context.Context, identity string) (Result, error) {
	data, err := keyring.Get(s.service, identity)
	if errors.Is(err, keyring.ErrNotFound) {
		s.log.Info(ctx, "no stored vault", "identity", identity)
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: get %s/%s: %v", common.ErrPlatformStore, s.service, identity, err)
	}

	v, err := vault.Unmarshal([]byte(data))
	if err != nil {
		return Result{}, err
	}

	s.log.Info(ctx, "vault loaded", "identity", identity, "entries", v.Len())
	return Result{Status: StatusUnlocked, Entries: v.Entries()}, nil
}

func (s *KeyringStore) Save(ctx context.Context, identity string, entries []vault.Entry) error {
	v, err := vault.New(entries)
	if err != nil {
		return err
	}
	data, err := vault.Marshal(v)
	if err != nil {
		return err
	}

	if err := keyring.Set(s.service, identity, string(data)); err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", common.ErrPlatformStore, s.service, identity, err)
	}

	s.log.Debug(ctx, "vault saved", "identity", identity, "entries", len(entries))
	return nil
}
