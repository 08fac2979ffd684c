package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/vault"
)

func newKeyringStore(t *testing.T) *KeyringStore {
	t.Helper()
	keyring.MockInit()
	return NewKeyringStore("keyfob-test", nil)
}

func TestKeyringStore_LoadAbsentIsNotFound(t *testing.T) {
	s := newKeyringStore(t)

	res, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestKeyringStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newKeyringStore(t)

	a := buildEntry(t, "GitHub")
	b := buildEntry(t, "AWS")
	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{a, b}))

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusUnlocked, res.Status)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, a, res.Entries[0])
	assert.Equal(t, b, res.Entries[1])
}

func TestKeyringStore_IdentitiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newKeyringStore(t)

	require.NoError(t, s.Save(ctx, "alice", []vault.Entry{buildEntry(t, "A")}))

	res, err := s.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestKeyringStore_EmptyVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newKeyringStore(t)

	require.NoError(t, s.Save(ctx, "alice", nil))

	res, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusUnlocked, res.Status)
	assert.Empty(t, res.Entries)
}

func TestKeyringStore_GarbledPayloadIsParseError(t *testing.T) {
	keyring.MockInit()
	s := NewKeyringStore("keyfob-test", nil)
	require.NoError(t, keyring.Set("keyfob-test", "alice", "definitely not json"))

	_, err := s.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrParse)
}

func TestKeyringStore_PlatformFailure(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	s := NewKeyringStore("keyfob-test", nil)

	_, err := s.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrPlatformStore)

	err = s.Save(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, common.ErrPlatformStore)
}
