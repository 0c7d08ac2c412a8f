package entity

import "math"

// Vec3 mirrors spatial.Vec3 without importing the spatial package — entity
// is a leaf package in the dependency order (spec.md §2 "Dependency order").
type Vec3 struct {
	X, Y, Z float64
}

// Rotation is yaw/pitch/roll in the wire's native units (spec.md §6
// ServerMovement "rot x/y/z").
type Rotation struct {
	X, Y, Z float64
}

// AIState is a creature's position in the state machine spec.md §4.4 pins
// exactly: idle -> combat -> evade -> idle, with dead terminal within a life.
type AIState uint8

const (
	AIIdle AIState = iota
	AICombat
	AIEvade
	AIDead
)

func (s AIState) String() string {
	switch s {
	case AIIdle:
		return "idle"
	case AICombat:
		return "combat"
	case AIEvade:
		return "evade"
	case AIDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CreatureTemplate is the read-only static blueprint a creature Entity is
// spawned from (spec.md §3 "CreatureTemplate"). Loaded once by the static
// data provider and shared by reference across every zone instance.
type CreatureTemplate struct {
	TemplateID       int64
	Display          string
	FactionID        int32
	Level            int32
	MaxHealth        int32
	AggroRange       float64
	LeashRange       float64
	SocialAggroRange float64
	AIType           AIType
	AttackSpeedMs    int64
	AttackDamage     int64
	LootTableID      int64
	RespawnDelayMs   int64
}

// AIType is the static per-template aggro posture.
type AIType uint8

const (
	AIPassive AIType = iota
	AIDefensive
	AIAggressive
)

// Entity is any object occupying space in a zone (spec.md §3 "Entity").
// Fields only meaningful for creatures (threat table, AI state) are zero
// for players and objects.
type Entity struct {
	GUID     GUID
	Kind     Kind
	Name     string
	Position Vec3
	Rotation Rotation

	FactionID int32
	Level     int32
	Health    int32
	MaxHealth int32

	// Creature-only fields.
	Template    *CreatureTemplate
	SpawnPos    Vec3
	AIState     AIState
	AITarget    GUID
	CombatStart int64 // monotonic ms; valid only while AIState == AICombat
	LastAttack  int64 // monotonic ms of the last attack cadence event
	Threat      map[GUID]int64

	// LastMoveMs is the monotonic time of this entity's last accepted
	// position update, zero until the first one. Used to bound displacement
	// by elapsed time (spec.md §4.5 "rate-sanity-checked ... bounded by a
	// per-class speed cap x elapsed time").
	LastMoveMs int64

	// ActiveEffects is keyed by effect_id (spec.md §3 "ActiveEffect").
	ActiveEffects map[int64]*ActiveEffect
}

// NewPlayer creates a player Entity at pos.
func NewPlayer(guid GUID, name string, pos Vec3, faction int32, level, health, maxHealth int32) *Entity {
	return &Entity{
		GUID: guid, Kind: KindPlayer, Name: name, Position: pos,
		FactionID: faction, Level: level, Health: health, MaxHealth: maxHealth,
		ActiveEffects: make(map[int64]*ActiveEffect),
	}
}

// NewCreature creates a creature Entity from a template at spawn.
func NewCreature(guid GUID, tmpl *CreatureTemplate, spawn Vec3) *Entity {
	return &Entity{
		GUID: guid, Kind: KindCreature, Name: tmpl.Display, Position: spawn, SpawnPos: spawn,
		FactionID: tmpl.FactionID, Level: tmpl.Level, Health: tmpl.MaxHealth, MaxHealth: tmpl.MaxHealth,
		Template:      tmpl,
		AIState:       AIIdle,
		Threat:        make(map[GUID]int64),
		ActiveEffects: make(map[int64]*ActiveEffect),
	}
}

// IsAlive reports whether the entity has positive health and (for creatures)
// is not in the terminal dead state.
func (e *Entity) IsAlive() bool {
	if e.Kind == KindCreature && e.AIState == AIDead {
		return false
	}
	return e.Health > 0
}

// EffectiveStat returns base plus the sum of all active stat_mod effects
// tagged with stat, evaluated at the given monotonic time (spec.md §4.4
// "stat_mod: the effective stat value is always base + Sigma(...)").
func (e *Entity) EffectiveStat(stat string, base int64, nowMs int64) int64 {
	total := base
	for _, eff := range e.ActiveEffects {
		if eff.Type != EffectStatMod || eff.StatTag != stat {
			continue
		}
		if eff.ExpiresAt <= nowMs {
			continue
		}
		total += eff.Amount
	}
	return total
}

// DistanceTo returns the Euclidean distance to other. Used only outside the
// spatial grid's hot path (e.g. leash/respawn checks); the grid itself never
// calls sqrt per spec.md §4.3.
func (v Vec3) DistanceTo(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
