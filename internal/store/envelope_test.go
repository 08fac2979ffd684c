package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/config"
	"github.com/mlukins/keyfob/internal/vault"
)

func newEnvelopeStore(t *testing.T) *EnvelopeStore {
	t.Helper()
	state, err := config.OpenStatefile(t.TempDir())
	require.NoError(t, err)
	return NewEnvelopeStore(state, nil)
}

func buildEntry(t *testing.T, label string) vault.Entry {
	t.Helper()
	e, err := vault.Form{Label: label, SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	require.NoError(t, err)
	return e
}

func TestEnvelopeStore_LoadAbsentIsNotFound(t *testing.T) {
	s := newEnvelopeStore(t)

	res, err := s.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestEnvelopeStore_SaveLoadUnlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newEnvelopeStore(t)
	pass := []byte("open sesame")

	_, err := s.Unlock(ctx, nil, pass) // fresh vault adopts the passphrase
	require.NoError(t, err)

	entry := buildEntry(t, "GitHub")
	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{entry}))

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingUnlock, res.Status)
	require.NotEmpty(t, res.Blob)

	entries, err := s.Unlock(ctx, res.Blob, pass)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
}

func TestEnvelopeStore_EmptyVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newEnvelopeStore(t)
	pass := []byte("p")

	_, err := s.Unlock(ctx, nil, pass)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "alice", nil))

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingUnlock, res.Status)

	entries, err := s.Unlock(ctx, res.Blob, pass)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnvelopeStore_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	s := newEnvelopeStore(t)

	_, err := s.Unlock(ctx, nil, []byte("right"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{buildEntry(t, "A")}))

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)

	_, err = s.Unlock(ctx, res.Blob, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrDecryptAuth)
}

func TestEnvelopeStore_EmptyPassphraseRejected(t *testing.T) {
	s := newEnvelopeStore(t)
	_, err := s.Unlock(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrDecryptAuth)
}

func TestEnvelopeStore_SaveWithoutUnlock(t *testing.T) {
	s := newEnvelopeStore(t)
	err := s.Save(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, common.ErrLocked)
}

func TestEnvelopeStore_ClearForgetsPassphrase(t *testing.T) {
	ctx := context.Background()
	s := newEnvelopeStore(t)

	_, err := s.Unlock(ctx, nil, []byte("p"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "alice", nil))

	s.Clear()

	err = s.Save(ctx, "alice", nil)
	assert.ErrorIs(t, err, common.ErrLocked)
}

func TestEnvelopeStore_DeleteLastEntryReloadsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newEnvelopeStore(t)
	pass := []byte("p")

	_, err := s.Unlock(ctx, nil, pass)
	require.NoError(t, err)

	entry := buildEntry(t, "only")
	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{entry}))
	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{})) // deleted the only entry

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingUnlock, res.Status)

	entries, err := s.Unlock(ctx, res.Blob, pass)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
