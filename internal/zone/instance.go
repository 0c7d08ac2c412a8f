// Package zone implements the ZoneInstance actor and its supervising
// ZoneInstanceRegistry (spec.md §4.2). A ZoneInstance owns one (world_id,
// instance_id) shard's entities, spatial grid, and AI scheduling: all
// mutation happens on its single goroutine, so nothing inside it needs a
// lock. Grounded on internal/core/system.Runner's phase-sorted tick loop,
// adapted from a shared-world single tick loop into N independent
// channel-driven actors, and on internal/world/state.go's per-world entity
// bookkeeping (GetBySession/GetNearbyPlayersAt/UpdateNpcPosition).
package zone

import (
	"context"
	"fmt"
	"time"

	"github.com/wildcore/server/internal/ai"
	"github.com/wildcore/server/internal/buff"
	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/combat/formula"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/spatial"
)

func nowMs() int64 { return time.Now().UnixMilli() }

func errUnknownEntity(guid entity.GUID) error {
	return fmt.Errorf("zone: unknown entity guid %d", guid)
}

// BroadcastRadius is the default interest range for zone-originated events
// (spec.md §4.5 "default broadcast radius 100 units").
const BroadcastRadius = 100.0

// DefaultTickInterval is the AI scheduler period (spec.md §4.2 "default
// 1000 ms").
const DefaultTickInterval = time.Second

// DefaultTickCap bounds how many creatures the AI scheduler advances per
// tick (spec.md §4.2 "default 100 creatures/tick").
const DefaultTickCap = 100

// DefaultSpeedCap bounds accepted displacement, in units/sec, for every
// entity kind (spec.md §4.5 "max displacement per packet bounded by a
// per-class speed cap x elapsed time"). This core has no per-class
// movement-speed static data yet, so one cap applies uniformly; a future
// CreatureTemplate/player-class speed field would key this per spec.md §3.
const DefaultSpeedCap = 12.0

// SpeedTolerance multiplies DefaultSpeedCap's per-tick allowance before a
// displacement is clamped, absorbing jitter between a client's movement
// cadence and the server's wall-clock elapsed time (spec.md §4.5 "... with
// a tolerance").
const SpeedTolerance = 1.25

// Key identifies one zone shard.
type Key struct {
	WorldID    int64
	InstanceID int64
}

// Sink receives the domain events a zone actor produces for broadcast to
// interest (spec.md §4.5). It is implemented by the network/router layer,
// which translates these into wire packets — zone stays ignorant of the
// wire format per spec.md §2's dependency order.
type Sink interface {
	EntityCreate(key Key, e *entity.Entity)
	EntityDestroy(key Key, center entity.Vec3, guid entity.GUID)
	Movement(key Key, guid entity.GUID, pos entity.Vec3, rot entity.Rotation)
	BuffApply(key Key, target, caster entity.GUID, eff *entity.ActiveEffect)
	BuffRemove(key Key, center entity.Vec3, target entity.GUID, removal buff.Removal)
	CombatOutcome(key Key, center entity.Vec3, attacker, target entity.GUID, out combat.Outcome)

	// CombatEntered, Evade, IdleRestored and EntityDied notify interest of
	// the AI state-machine transitions spec.md §4.4 pins (idle -> combat,
	// combat -> evade -> idle, and a combat target's death). Typed rather
	// than routed through Custom so the router's translation layer cannot
	// silently drop them the way an untyped payload could.
	CombatEntered(key Key, center entity.Vec3, guid, target entity.GUID)
	Evade(key Key, center entity.Vec3, guid entity.GUID)
	IdleRestored(key Key, center entity.Vec3, guid entity.GUID)
	EntityDied(key Key, center entity.Vec3, guid entity.GUID)

	// Custom delivers a prebuilt, wire-ready payload (see Instance.Broadcast)
	// for callers that already hold a router-built packet rather than a
	// domain event needing translation.
	Custom(key Key, center entity.Vec3, radius float64, payload any)
}

// pendingRespawn is a dead creature's countdown to re-creation (spec.md
// §4.4 "respawn creates a new entity with new GUID at the spawn point
// after respawn_delay_ms"), checked once per AI tick the same way the
// teacher's NpcRespawnSystem counts down RespawnTimer each Update instead
// of parking a goroutine per corpse.
type pendingRespawn struct {
	at       int64 // monotonic ms
	tmpl     *entity.CreatureTemplate
	spawnPos entity.Vec3
}

// Instance is one live ZoneInstance actor.
type Instance struct {
	Key Key

	sink     Sink
	factions ai.Factions
	spells   combat.SpellProvider
	formulas *formula.Engine
	guids    *entity.Allocator

	tickInterval time.Duration
	tickCap      int

	mailbox chan any
	done    chan struct{}

	entities   map[entity.GUID]*entity.Entity
	grid       *spatial.Grid
	players    map[entity.GUID]struct{}
	creatures  []entity.GUID // stable order for round-robin tick capping
	tickCursor int

	respawns []pendingRespawn
}

// New constructs an Instance. Run must be called to start processing. guids
// is the process-wide GUID allocator (spec.md §9 "Global counters") shared
// with WorldDirectory — a respawned creature still draws from the single
// counter, it just never passes through the directory's session indices.
func New(key Key, cellSize float64, sink Sink, factions ai.Factions, spells combat.SpellProvider, formulas *formula.Engine, guids *entity.Allocator) *Instance {
	return &Instance{
		Key:          key,
		sink:         sink,
		factions:     factions,
		spells:       spells,
		formulas:     formulas,
		guids:        guids,
		tickInterval: DefaultTickInterval,
		tickCap:      DefaultTickCap,
		mailbox:      make(chan any, 256),
		done:         make(chan struct{}),
		entities:     make(map[entity.GUID]*entity.Entity),
		grid:         spatial.New(cellSize),
		players:      make(map[entity.GUID]struct{}),
	}
}

// Run processes the mailbox and the AI ticker until ctx is cancelled. Run
// with its own goroutine: `go instance.Run(ctx)`.
func (in *Instance) Run(ctx context.Context) {
	ticker := time.NewTicker(in.tickInterval)
	defer ticker.Stop()
	defer close(in.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.tick()
		case msg := <-in.mailbox:
			in.handle(msg)
		}
	}
}

// Stopped is closed once Run has returned.
func (in *Instance) Stopped() <-chan struct{} { return in.done }

// IsEmpty reports whether the instance currently holds no players — used by
// the registry's retirement sweep (spec.md §4.2 "Supervisor").
func (in *Instance) IsEmpty() bool {
	reply := make(chan bool, 1)
	in.mailbox <- isEmptyCmd{reply: reply}
	return <-reply
}

// ---- mailbox command types ----

type addEntityCmd struct{ e *entity.Entity }
type removeEntityCmd struct{ guid entity.GUID }
type updatePositionCmd struct {
	guid entity.GUID
	pos  entity.Vec3
	rot  entity.Rotation
}
type entitiesInRangeCmd struct {
	center entity.Vec3
	radius float64
	reply  chan []entity.GUID
}
type lookupCmd struct {
	guid  entity.GUID
	reply chan lookupResult
}
type lookupResult struct {
	e  *entity.Entity
	ok bool
}
type damageCreatureCmd struct {
	attacker, target entity.GUID
	amount           int64
	reply            chan combat.Outcome
}
type applySpellEffectCmd struct {
	caster, target entity.GUID
	spellID        int64
	reply          chan applySpellResult
}
type applySpellResult struct {
	out combat.Outcome
	err error
}
type broadcastCmd struct {
	center  entity.Vec3
	radius  float64
	payload any
}
type isEmptyCmd struct{ reply chan bool }
type healCmd struct{ guid entity.GUID }

// ---- public actor API: each sends a command and, where a reply is
// required, blocks on it. Callers are other actors (connections, router)
// running on their own goroutine, never the zone's own. ----

// AddEntity inserts e into the zone's entity table and spatial grid, then
// broadcasts ServerEntityCreate to interest (spec.md §4.1 handshake step,
// §4.2 "add_entity").
func (in *Instance) AddEntity(e *entity.Entity) { in.mailbox <- addEntityCmd{e: e} }

// RemoveEntity takes guid out of the zone (despawn/logout).
func (in *Instance) RemoveEntity(guid entity.GUID) { in.mailbox <- removeEntityCmd{guid: guid} }

// UpdatePosition relocates guid and broadcasts ServerMovement (spec.md
// §4.5 "Position updates from clients"). Position writes MUST go through
// this call, never a raw field mutation.
func (in *Instance) UpdatePosition(guid entity.GUID, pos entity.Vec3, rot entity.Rotation) {
	in.mailbox <- updatePositionCmd{guid: guid, pos: pos, rot: rot}
}

// EntitiesInRange is a synchronous spatial query.
func (in *Instance) EntitiesInRange(center entity.Vec3, radius float64) []entity.GUID {
	reply := make(chan []entity.GUID, 1)
	in.mailbox <- entitiesInRangeCmd{center: center, radius: radius, reply: reply}
	return <-reply
}

// Lookup resolves a GUID to its live Entity within this zone.
func (in *Instance) Lookup(guid entity.GUID) (*entity.Entity, bool) {
	reply := make(chan lookupResult, 1)
	in.mailbox <- lookupCmd{guid: guid, reply: reply}
	r := <-reply
	return r.e, r.ok
}

// DamageCreature applies amount raw damage from attacker to target, bypassing
// the spell pipeline (melee auto-attack path).
func (in *Instance) DamageCreature(attacker, target entity.GUID, amount int64) combat.Outcome {
	reply := make(chan combat.Outcome, 1)
	in.mailbox <- damageCreatureCmd{attacker: attacker, target: target, amount: amount, reply: reply}
	return <-reply
}

// ApplySpellEffect resolves a cast of spellID from caster against target
// (spec.md §4.2 "apply_spell_effect").
func (in *Instance) ApplySpellEffect(caster, target entity.GUID, spellID int64) (combat.Outcome, error) {
	reply := make(chan applySpellResult, 1)
	in.mailbox <- applySpellEffectCmd{caster: caster, target: target, spellID: spellID, reply: reply}
	r := <-reply
	return r.out, r.err
}

// Broadcast sends an arbitrary domain event to interest around center
// (spec.md §4.2 "broadcast").
func (in *Instance) Broadcast(center entity.Vec3, radius float64, payload any) {
	in.mailbox <- broadcastCmd{center: center, radius: radius, payload: payload}
}

// Heal restores guid to full health (SPEC_FULL.md §4's GM/debug command
// family). Fire-and-forget like UpdatePosition: the only observable effect
// is the CombatOutcome broadcast to interest, which callers that need
// confirmation can watch for rather than blocking the actor on a reply.
func (in *Instance) Heal(guid entity.GUID) { in.mailbox <- healCmd{guid: guid} }

// ---- actor-goroutine-only handling ----

func (in *Instance) handle(msg any) {
	switch m := msg.(type) {
	case addEntityCmd:
		in.addEntity(m.e)
	case removeEntityCmd:
		in.removeEntity(m.guid)
	case updatePositionCmd:
		in.updatePosition(m.guid, m.pos, m.rot)
	case entitiesInRangeCmd:
		m.reply <- in.entitiesInRange(m.center, m.radius)
	case lookupCmd:
		e, ok := in.entities[m.guid]
		m.reply <- lookupResult{e: e, ok: ok}
	case damageCreatureCmd:
		m.reply <- in.damageCreature(m.attacker, m.target, m.amount)
	case applySpellEffectCmd:
		out, err := in.applySpellEffect(m.caster, m.target, m.spellID)
		m.reply <- applySpellResult{out: out, err: err}
	case broadcastCmd:
		in.sink.Custom(in.Key, m.center, m.radius, m.payload)
	case isEmptyCmd:
		m.reply <- len(in.players) == 0
	case healCmd:
		in.heal(m.guid)
	}
}

func (in *Instance) addEntity(e *entity.Entity) {
	in.entities[e.GUID] = e
	in.grid.Insert(spatial.GUID(e.GUID), toSpatialVec(e.Position))
	if e.Kind == entity.KindPlayer {
		in.players[e.GUID] = struct{}{}
	} else if e.Kind == entity.KindCreature {
		in.creatures = append(in.creatures, e.GUID)
	}
	in.sink.EntityCreate(in.Key, e)
}

func (in *Instance) removeEntity(guid entity.GUID) {
	e, ok := in.entities[guid]
	if !ok {
		return
	}
	in.despawn(e)
}

// despawn takes e out of the entity table, spatial grid, and roster
// bookkeeping, then broadcasts its destruction. Shared by explicit
// RemoveEntity (logout/disconnect) and death within damageCreature/
// applySpellEffect, so both paths leave identical state behind (spec.md
// §8 scenario S2 "ServerEntityDestroy{guid=C} broadcast within broadcast
// radius").
func (in *Instance) despawn(e *entity.Entity) {
	delete(in.entities, e.GUID)
	in.grid.Remove(spatial.GUID(e.GUID))
	delete(in.players, e.GUID)
	if e.Kind == entity.KindCreature {
		in.creatures = removeGUID(in.creatures, e.GUID)
	}
	in.sink.EntityDestroy(in.Key, e.Position, e.GUID)
}

// scheduleRespawn arms tmpl's re-creation respawn_delay_ms from now at
// spawnPos (spec.md §4.4 "respawn creates a new entity with new GUID at
// the spawn point"). A template with no respawn delay configured never
// comes back, matching a one-shot/event creature.
func (in *Instance) scheduleRespawn(tmpl *entity.CreatureTemplate, spawnPos entity.Vec3, now int64) {
	if tmpl == nil || tmpl.RespawnDelayMs <= 0 {
		return
	}
	in.respawns = append(in.respawns, pendingRespawn{at: now + tmpl.RespawnDelayMs, tmpl: tmpl, spawnPos: spawnPos})
}

// processRespawns re-creates every creature whose countdown has elapsed
// (spec.md §4.4), called once per AI tick.
func (in *Instance) processRespawns(now int64) {
	if len(in.respawns) == 0 {
		return
	}
	remaining := in.respawns[:0]
	for _, pr := range in.respawns {
		if now < pr.at {
			remaining = append(remaining, pr)
			continue
		}
		guid := in.guids.Allocate(entity.KindCreature)
		in.addEntity(entity.NewCreature(guid, pr.tmpl, pr.spawnPos))
	}
	in.respawns = remaining
}

func (in *Instance) updatePosition(guid entity.GUID, pos entity.Vec3, rot entity.Rotation) {
	e, ok := in.entities[guid]
	if !ok {
		return
	}
	now := nowMs()
	pos = clampToSpeedCap(e, pos, now)
	e.Position = pos
	e.Rotation = rot
	e.LastMoveMs = now
	in.grid.Update(spatial.GUID(guid), toSpatialVec(pos))
	in.sink.Movement(in.Key, guid, pos, rot)
}

// clampToSpeedCap bounds pos to what e could plausibly have reached from
// its last accepted position within the elapsed time (spec.md §4.5 "max
// displacement per packet bounded by a per-class speed cap x elapsed
// time with a tolerance" / §7 "clamp to speed cap"). The very first
// position update for an entity has nothing to compare against and is
// accepted as-is.
func clampToSpeedCap(e *entity.Entity, pos entity.Vec3, now int64) entity.Vec3 {
	if e.LastMoveMs == 0 || now <= e.LastMoveMs {
		return pos
	}
	elapsedSec := float64(now-e.LastMoveMs) / 1000
	maxDist := DefaultSpeedCap * elapsedSec * SpeedTolerance
	d := e.Position.DistanceTo(pos)
	if d <= maxDist {
		return pos
	}
	scale := maxDist / d
	return entity.Vec3{
		X: e.Position.X + (pos.X-e.Position.X)*scale,
		Y: e.Position.Y + (pos.Y-e.Position.Y)*scale,
		Z: e.Position.Z + (pos.Z-e.Position.Z)*scale,
	}
}

func (in *Instance) entitiesInRange(center entity.Vec3, radius float64) []entity.GUID {
	raw := in.grid.EntitiesInRange(toSpatialVec(center), radius)
	out := make([]entity.GUID, len(raw))
	for i, g := range raw {
		out[i] = entity.GUID(g)
	}
	return out
}

func (in *Instance) damageCreature(attacker, target entity.GUID, amount int64) combat.Outcome {
	t, ok := in.entities[target]
	if !ok {
		return combat.Outcome{}
	}
	dealt, absorbed, removals := buff.ApplyDamage(t, amount)
	if t.Kind == entity.KindCreature {
		ai.AddThreat(t, attacker, dealt)
	}
	out := combat.Outcome{DamageDealt: dealt, Absorbed: absorbed, Removals: removals}
	if !t.IsAlive() {
		out.TargetDied = true
		buff.ClearAll(t)
		if t.Kind == entity.KindCreature {
			ai.Die(t)
		}
	}
	for _, r := range out.Removals {
		in.sink.BuffRemove(in.Key, t.Position, target, r)
	}
	in.sink.CombatOutcome(in.Key, t.Position, attacker, target, out)
	if out.TargetDied && t.Kind == entity.KindCreature {
		tmpl, spawnPos := t.Template, t.SpawnPos
		in.despawn(t)
		in.scheduleRespawn(tmpl, spawnPos, nowMs())
	}
	return out
}

func (in *Instance) applySpellEffect(caster, target entity.GUID, spellID int64) (combat.Outcome, error) {
	c, ok := in.entities[caster]
	if !ok {
		return combat.Outcome{}, errUnknownEntity(caster)
	}
	t, ok := in.entities[target]
	if !ok {
		return combat.Outcome{}, errUnknownEntity(target)
	}
	out, err := combat.ResolveCast(c, t, spellID, nowMs(), in.spells, in.formulas)
	if err != nil {
		return out, err
	}
	for _, id := range out.AppliedIDs {
		if eff, ok := t.ActiveEffects[id]; ok {
			in.sink.BuffApply(in.Key, target, caster, eff)
		}
	}
	for _, r := range out.Removals {
		in.sink.BuffRemove(in.Key, t.Position, target, r)
	}
	in.sink.CombatOutcome(in.Key, t.Position, caster, target, out)
	if out.TargetDied && t.Kind == entity.KindCreature {
		tmpl, spawnPos := t.Template, t.SpawnPos
		in.despawn(t)
		in.scheduleRespawn(tmpl, spawnPos, nowMs())
	}
	return out, nil
}

func (in *Instance) heal(guid entity.GUID) {
	e, ok := in.entities[guid]
	if !ok {
		return
	}
	healed := int64(e.MaxHealth - e.Health)
	e.Health = e.MaxHealth
	out := combat.Outcome{Healed: healed}
	in.sink.CombatOutcome(in.Key, e.Position, guid, guid, out)
}

func toSpatialVec(v entity.Vec3) spatial.Vec3 { return spatial.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

func removeGUID(s []entity.GUID, guid entity.GUID) []entity.GUID {
	for i, g := range s {
		if g == guid {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
