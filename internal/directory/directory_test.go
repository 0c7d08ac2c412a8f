package directory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcore/server/internal/directory"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/zone"
)

func newDir() *directory.Directory {
	return directory.New(&entity.Allocator{})
}

func TestRedeemAuthSession_SucceedsOnceThenFails(t *testing.T) {
	d := newDir()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key := [16]byte{1, 2, 3}
	d.CreateAuthSession(42, key, t0)

	got, err := d.RedeemAuthSession(42, key, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.AccountID)

	_, err = d.RedeemAuthSession(42, key, t0.Add(time.Minute))
	assert.ErrorIs(t, err, directory.ErrAuthSessionNotFound)
}

func TestRedeemAuthSession_TTLBoundary(t *testing.T) {
	d := newDir()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key := [16]byte{9}
	d.CreateAuthSession(1, key, t0)

	_, err := d.RedeemAuthSession(1, key, t0.Add(3600*time.Second))
	assert.NoError(t, err, "accepted up to and including t0+3600")

	d.CreateAuthSession(1, key, t0)
	_, err = d.RedeemAuthSession(1, key, t0.Add(3601*time.Second))
	assert.ErrorIs(t, err, directory.ErrAuthSessionExpired)
}

func TestRedeemAuthSession_KeyMismatchDoesNotConsume(t *testing.T) {
	d := newDir()
	t0 := time.Now()
	d.CreateAuthSession(1, [16]byte{1}, t0)

	_, err := d.RedeemAuthSession(1, [16]byte{2}, t0)
	assert.ErrorIs(t, err, directory.ErrSessionKeyMismatch)

	got, err := d.RedeemAuthSession(1, [16]byte{1}, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccountID)
}

func TestBindWorldSession_NameIndexCoherence(t *testing.T) {
	d := newDir()
	require.NoError(t, d.BindWorldSession(&directory.WorldSession{AccountID: 1, CharacterName: "Cybexa"}))

	id, ok := d.ByName("cybexa")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	err := d.BindWorldSession(&directory.WorldSession{AccountID: 2, CharacterName: "Cybexa"})
	assert.ErrorIs(t, err, directory.ErrNameTaken)

	ws, ok := d.UnbindWorldSession(1)
	require.True(t, ok)
	assert.Equal(t, "Cybexa", ws.CharacterName)

	_, ok = d.ByName("cybexa")
	assert.False(t, ok, "name index must be cleared on unbind")
}

func TestByName_UnknownReturnsFalse(t *testing.T) {
	d := newDir()
	_, ok := d.ByName("carol")
	assert.False(t, ok)
}

func TestSetWorldPlacement_MarksInWorld(t *testing.T) {
	d := newDir()
	require.NoError(t, d.BindWorldSession(&directory.WorldSession{AccountID: 42, CharacterName: "Cybexa"}))

	guid := d.AllocateGUID(entity.KindPlayer)
	key := zone.Key{WorldID: 870, InstanceID: 1}
	require.NoError(t, d.SetWorldPlacement(42, guid, key))

	ws, ok := d.BySession(42)
	require.True(t, ok)
	assert.Equal(t, directory.PhaseInWorld, ws.Phase)
	assert.Equal(t, guid, ws.EntityGUID)
	assert.Equal(t, key, ws.Zone)
}

func TestSetWorldPlacement_UnknownAccountErrors(t *testing.T) {
	d := newDir()
	err := d.SetWorldPlacement(1, entity.GUID(1), zone.Key{})
	assert.ErrorIs(t, err, directory.ErrNoSuchSession)
}
