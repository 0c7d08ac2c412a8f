package zone_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/zone"
)

func newTestRegistry(t *testing.T) (*zone.Registry, context.CancelFunc) {
	t.Helper()
	sink := &recordingSink{}
	reg := zone.NewRegistry(32, allHostileFactions{}, fakeSpells{}, nil, &entity.Allocator{}, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx)
	return reg, cancel
}

func TestRegistry_EnterSpawnsOnceThenReturnsSameHandle(t *testing.T) {
	reg, cancel := newTestRegistry(t)
	defer cancel()

	key := zone.Key{WorldID: 500, InstanceID: 1}
	a := reg.Enter(context.Background(), key, zone.ContentExpedition)
	b := reg.Enter(context.Background(), key, zone.ContentExpedition)
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_ExpeditionRetiresImmediatelyOnceEmpty(t *testing.T) {
	reg := zone.NewRegistry(32, allHostileFactions{}, fakeSpells{}, nil, &entity.Allocator{}, &recordingSink{}, nil)
	reg = reg.WithPolicy(zone.ContentExpedition, zone.RetirementPolicy{EmptyTTL: 0, DisconnectGrace: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Run(ctx)

	key := zone.Key{WorldID: 500, InstanceID: 1}
	in := reg.Enter(context.Background(), key, zone.ContentExpedition)

	p := entity.NewPlayer(entity.GUID(1), "A", entity.Vec3{}, 1, 1, 100, 100)
	in.AddEntity(p)
	in.RemoveEntity(entity.GUID(1))

	require.Eventually(t, func() bool {
		_, ok := reg.Lookup(key)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "empty expedition must retire on the next sweep")
}

func TestRegistry_DungeonStaysAliveUntilEmptyTTLElapses(t *testing.T) {
	reg := zone.NewRegistry(32, allHostileFactions{}, fakeSpells{}, nil, &entity.Allocator{}, &recordingSink{}, nil)
	reg = reg.WithPolicy(zone.ContentDungeon, zone.RetirementPolicy{EmptyTTL: time.Hour, DisconnectGrace: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Run(ctx)

	key := zone.Key{WorldID: 7, InstanceID: 1}
	reg.Enter(context.Background(), key, zone.ContentDungeon)

	time.Sleep(30 * time.Millisecond)
	_, ok := reg.Lookup(key)
	assert.True(t, ok, "dungeon with a long empty-TTL must not retire immediately")
}

func TestRegistry_RaidNeverSweptByEmptyTTL(t *testing.T) {
	reg, cancel := newTestRegistry(t)
	defer cancel()

	key := zone.Key{WorldID: 9, InstanceID: 1}
	reg.Enter(context.Background(), key, zone.ContentRaid)

	time.Sleep(30 * time.Millisecond)
	_, ok := reg.Lookup(key)
	assert.True(t, ok, "raids retire only via the weekly reset job, never the sweep")
}

func TestRegistry_RetirePersistsRaidStateBeforeStop(t *testing.T) {
	reg, cancel := newTestRegistry(t)
	defer cancel()

	var persisted zone.Key
	reg.WithPersist(func(key zone.Key, in *zone.Instance) { persisted = key })

	key := zone.Key{WorldID: 9, InstanceID: 1}
	reg.Enter(context.Background(), key, zone.ContentRaid)
	reg.Retire(key)

	assert.Equal(t, key, persisted)
	_, ok := reg.Lookup(key)
	assert.False(t, ok)
}
