package zone_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcore/server/internal/buff"
	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/faction"
	"github.com/wildcore/server/internal/zone"
)

// recordingSink captures every event a zone actor emits, for assertion
// without a real network layer.
type recordingSink struct {
	mu      sync.Mutex
	created []entity.GUID
	removed []entity.GUID
	moved   []entity.GUID
	applied []entity.GUID
	removes []entity.GUID
	outcome []entity.GUID
	custom  []any
}

func (s *recordingSink) EntityCreate(key zone.Key, e *entity.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, e.GUID)
}

func (s *recordingSink) EntityDestroy(key zone.Key, center entity.Vec3, guid entity.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, guid)
}

func (s *recordingSink) Movement(key zone.Key, guid entity.GUID, pos entity.Vec3, rot entity.Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moved = append(s.moved, guid)
}

func (s *recordingSink) BuffApply(key zone.Key, target, caster entity.GUID, eff *entity.ActiveEffect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, target)
}

func (s *recordingSink) BuffRemove(key zone.Key, center entity.Vec3, target entity.GUID, removal buff.Removal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, target)
}

func (s *recordingSink) CombatOutcome(key zone.Key, center entity.Vec3, attacker, target entity.GUID, out combat.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = append(s.outcome, target)
}

func (s *recordingSink) CombatEntered(key zone.Key, center entity.Vec3, guid, target entity.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, guid)
}

func (s *recordingSink) Evade(key zone.Key, center entity.Vec3, guid entity.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, guid)
}

func (s *recordingSink) IdleRestored(key zone.Key, center entity.Vec3, guid entity.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, guid)
}

func (s *recordingSink) EntityDied(key zone.Key, center entity.Vec3, guid entity.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, guid)
}

func (s *recordingSink) Custom(key zone.Key, center entity.Vec3, radius float64, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, payload)
}

func (s *recordingSink) snapshotCreated() []entity.GUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.GUID(nil), s.created...)
}

type allHostileFactions struct{}

func (allHostileFactions) Resolve(id int32) faction.Faction {
	if id == 1 {
		return faction.Dominion
	}
	return faction.Exile
}

type fakeSpells map[int64]*combat.SpellData

func (f fakeSpells) Spell(id int64) (*combat.SpellData, bool) {
	s, ok := f[id]
	return s, ok
}

func newTestInstance(t *testing.T) (*zone.Instance, *recordingSink, context.CancelFunc) {
	t.Helper()
	sink := &recordingSink{}
	spells := fakeSpells{
		1: {SpellID: 1, Effects: []combat.SpellEffectSpec{{Type: entity.EffectDamage, Amount: 50}}},
	}
	in := zone.New(zone.Key{WorldID: 1, InstanceID: 1}, 32, sink, allHostileFactions{}, spells, nil, &entity.Allocator{})
	ctx, cancel := context.WithCancel(context.Background())
	go in.Run(ctx)
	return in, sink, cancel
}

func TestInstance_AddEntityBroadcastsCreate(t *testing.T) {
	in, sink, cancel := newTestInstance(t)
	defer cancel()

	p := entity.NewPlayer(entity.GUID(1), "Alice", entity.Vec3{}, 1, 1, 100, 100)
	in.AddEntity(p)

	require.Eventually(t, func() bool {
		return len(sink.snapshotCreated()) == 1
	}, time.Second, time.Millisecond, "entity create must be broadcast")

	got, ok := in.Lookup(entity.GUID(1))
	require.True(t, ok)
	assert.Equal(t, "Alice", got.Name)
}

func TestInstance_EntitiesInRangeReflectsMovement(t *testing.T) {
	in, _, cancel := newTestInstance(t)
	defer cancel()

	p1 := entity.NewPlayer(entity.GUID(1), "A", entity.Vec3{X: 0, Y: 0, Z: 0}, 1, 1, 100, 100)
	p2 := entity.NewPlayer(entity.GUID(2), "B", entity.Vec3{X: 500, Y: 0, Z: 0}, 1, 1, 100, 100)
	in.AddEntity(p1)
	in.AddEntity(p2)

	near := in.EntitiesInRange(entity.Vec3{}, 10)
	assert.ElementsMatch(t, []entity.GUID{1}, near)

	in.UpdatePosition(entity.GUID(2), entity.Vec3{X: 1, Y: 0, Z: 0}, entity.Rotation{})
	near = in.EntitiesInRange(entity.Vec3{}, 10)
	assert.ElementsMatch(t, []entity.GUID{1, 2}, near)
}

func TestInstance_DamageCreatureAddsThreatAndBroadcastsOutcome(t *testing.T) {
	in, sink, cancel := newTestInstance(t)
	defer cancel()

	tmpl := &entity.CreatureTemplate{TemplateID: 1, MaxHealth: 100, AIType: entity.AIPassive}
	c := entity.NewCreature(entity.GUID(100), tmpl, entity.Vec3{})
	attacker := entity.NewPlayer(entity.GUID(1), "Attacker", entity.Vec3{}, 1, 1, 100, 100)
	in.AddEntity(c)
	in.AddEntity(attacker)

	out := in.DamageCreature(entity.GUID(1), entity.GUID(100), 40)
	assert.Equal(t, int64(40), out.DamageDealt)
	assert.False(t, out.TargetDied)

	got, ok := in.Lookup(entity.GUID(100))
	require.True(t, ok)
	assert.Equal(t, int32(60), got.Health)
	assert.Equal(t, int64(40), got.Threat[entity.GUID(1)])

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.outcome) == 1
	}, time.Second, time.Millisecond)
}

func TestInstance_DamageCreatureKillDespawnsAndBroadcastsDestroy(t *testing.T) {
	in, sink, cancel := newTestInstance(t)
	defer cancel()

	tmpl := &entity.CreatureTemplate{TemplateID: 1, MaxHealth: 50, AIType: entity.AIPassive}
	c := entity.NewCreature(entity.GUID(100), tmpl, entity.Vec3{})
	in.AddEntity(c)

	out := in.DamageCreature(entity.GUID(1), entity.GUID(100), 999)
	assert.True(t, out.TargetDied)

	// A dead creature leaves no trace in the entity table or spatial grid
	// (spec.md §8 scenario S2 "ServerEntityDestroy{guid=C} broadcast"): the
	// respawn mechanism re-creates it under a fresh GUID, it never revives
	// in place.
	_, ok := in.Lookup(entity.GUID(100))
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.removed) == 1
	}, time.Second, time.Millisecond)
}

func TestInstance_DamageCreatureKillWithoutRespawnDelayStaysGone(t *testing.T) {
	in, _, cancel := newTestInstance(t)
	defer cancel()

	tmpl := &entity.CreatureTemplate{TemplateID: 1, MaxHealth: 10, AIType: entity.AIPassive}
	c := entity.NewCreature(entity.GUID(100), tmpl, entity.Vec3{X: 3})
	in.AddEntity(c)
	in.DamageCreature(entity.GUID(1), entity.GUID(100), 999)

	time.Sleep(zone.DefaultTickInterval + 50*time.Millisecond)
	_, ok := in.Lookup(entity.GUID(100))
	assert.False(t, ok, "a template with no respawn_delay_ms must never come back")
}

func TestInstance_ApplySpellEffectUnknownEntityErrors(t *testing.T) {
	in, _, cancel := newTestInstance(t)
	defer cancel()

	_, err := in.ApplySpellEffect(entity.GUID(1), entity.GUID(2), 1)
	assert.Error(t, err)
}

func TestInstance_RemoveEntityBroadcastsDestroy(t *testing.T) {
	in, sink, cancel := newTestInstance(t)
	defer cancel()

	p := entity.NewPlayer(entity.GUID(1), "Alice", entity.Vec3{}, 1, 1, 100, 100)
	in.AddEntity(p)
	in.RemoveEntity(entity.GUID(1))

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.removed) == 1
	}, time.Second, time.Millisecond)

	_, ok := in.Lookup(entity.GUID(1))
	assert.False(t, ok)
}

func TestInstance_IsEmptyTracksPlayerCount(t *testing.T) {
	in, _, cancel := newTestInstance(t)
	defer cancel()

	assert.True(t, in.IsEmpty())

	p := entity.NewPlayer(entity.GUID(1), "Alice", entity.Vec3{}, 1, 1, 100, 100)
	in.AddEntity(p)
	assert.False(t, in.IsEmpty())

	in.RemoveEntity(entity.GUID(1))
	assert.True(t, in.IsEmpty())
}
