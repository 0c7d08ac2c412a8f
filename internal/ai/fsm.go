package ai

import (
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/faction"
)

// LeashRestoreDistance is how close a creature must be to its spawn point
// before evade completes (spec.md §4.4 "On reaching spawn (d < 2 units)").
const LeashRestoreDistance = 2.0

// EvadeSpeedUnitsPerTick is the fixed return-to-spawn speed during evade
// (spec.md §8 scenario S3: "moves toward spawn at 5 units/tick").
const EvadeSpeedUnitsPerTick = 5.0

// CombatTimeoutMs is how long a creature stays in combat without a
// successful damage or heal event before giving up and evading (spec.md
// §4.4 "Combat timeout").
const CombatTimeoutMs = 30_000

// Locator resolves spatial queries and GUID lookups for the zone a creature
// lives in. The zone actor implements this over its spatial.Grid and entity
// table; ai itself stays a leaf package per spec.md §2's dependency order.
type Locator interface {
	EntitiesInRange(center entity.Vec3, radius float64) []entity.GUID
	Lookup(guid entity.GUID) (*entity.Entity, bool)
}

// Factions resolves a numeric faction id to its symbolic tag (spec.md
// §4.5).
type Factions interface {
	Resolve(factionID int32) faction.Faction
}

// AggroScan runs the idle-state aggro check for one aggressive creature, at
// most once per tick (spec.md §4.4 "Aggro detection"). Returns the chosen
// target GUID and true if the creature should enter combat.
func AggroScan(c *entity.Entity, loc Locator, fac Factions) (entity.GUID, bool) {
	if c.AIState != entity.AIIdle || c.Template == nil || c.Template.AIType != entity.AIAggressive {
		return 0, false
	}
	candidates := loc.EntitiesInRange(c.SpawnPos, c.Template.AggroRange)

	myFaction := fac.Resolve(c.FactionID)
	var best entity.GUID
	bestDist := -1.0
	for _, guid := range candidates {
		target, ok := loc.Lookup(guid)
		if !ok || target.Kind != entity.KindPlayer || !target.IsAlive() {
			continue
		}
		if !faction.IsHostile(myFaction, fac.Resolve(target.FactionID)) {
			continue
		}
		d := c.Position.DistanceTo(target.Position)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = guid
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

// EnterCombat transitions c into combat against target (spec.md §4.4 state
// diagram: idle -> combat on "aggro / social / damaged"). A minimal threat
// entry seeds the target so it survives the first argmax selection even
// before any damage has actually landed.
func EnterCombat(c *entity.Entity, target entity.GUID, nowMs int64) {
	c.AIState = entity.AICombat
	c.CombatStart = nowMs
	c.LastAttack = nowMs
	AddThreat(c, target, 1)
}

// SocialPull finds idle same-faction creatures near puller and pulls them
// into combat against the same target (spec.md §4.4 "Social pull"). It is
// the caller's responsibility to invoke this only once, on the tick a
// creature first enters combat — pulled creatures are left in combat
// without a further SocialPull call, so the pull never propagates
// transitively.
func SocialPull(puller *entity.Entity, target entity.GUID, nowMs int64, loc Locator, fac Factions) []entity.GUID {
	if puller.Template == nil || puller.Template.SocialAggroRange <= 0 {
		return nil
	}
	nearby := loc.EntitiesInRange(puller.Position, puller.Template.SocialAggroRange)
	var pulled []entity.GUID
	for _, guid := range nearby {
		if guid == puller.GUID {
			continue
		}
		other, ok := loc.Lookup(guid)
		if !ok || other.Kind != entity.KindCreature || other.AIState != entity.AIIdle {
			continue
		}
		if other.FactionID != puller.FactionID {
			continue
		}
		EnterCombat(other, target, nowMs)
		pulled = append(pulled, guid)
	}
	return pulled
}

// OnDamaged records a damage/heal event against c during combat: it
// accumulates threat, refreshes the anti-timeout clock, and — if c was
// idle — transitions it into combat. The bool return reports whether this
// call caused idle->combat, so the caller knows to run SocialPull exactly
// once.
func OnDamaged(c *entity.Entity, attacker entity.GUID, amount int64, nowMs int64) (enteredCombat bool) {
	wasIdle := c.AIState == entity.AIIdle
	if wasIdle {
		EnterCombat(c, attacker, nowMs)
	} else {
		AddThreat(c, attacker, amount)
	}
	c.LastAttack = nowMs
	return wasIdle
}

// TickCombat advances a combat creature by one tick: re-validates the
// current target, applies the leash check, and applies the combat timeout
// (spec.md §4.4 "Leash", "Combat timeout"). Returns true if c transitioned
// to evade this tick.
func TickCombat(c *entity.Entity, nowMs int64, loc Locator) (evaded bool) {
	if c.AIState != entity.AICombat {
		return false
	}

	if target, ok := loc.Lookup(c.AITarget); !ok || !target.IsAlive() {
		RemoveThreat(c, c.AITarget)
		c.AITarget = MaxThreatTarget(c)
		if c.AITarget == 0 {
			enterEvade(c)
			return true
		}
	}

	if c.Position.DistanceTo(c.SpawnPos) > c.Template.LeashRange {
		enterEvade(c)
		return true
	}

	if nowMs-c.LastAttack >= CombatTimeoutMs {
		enterEvade(c)
		return true
	}
	return false
}

func enterEvade(c *entity.Entity) {
	c.AIState = entity.AIEvade
	ClearThreat(c)
}

// TickEvade advances an evading creature one tick toward its spawn point at
// EvadeSpeedUnitsPerTick. On reaching spawn it is fully healed and returns
// to idle (spec.md §4.4 "On reaching spawn... restore to max_health and
// return to idle"). Returns true once the creature has settled back to
// idle.
func TickEvade(c *entity.Entity) (settled bool) {
	if c.AIState != entity.AIEvade {
		return false
	}
	d := c.Position.DistanceTo(c.SpawnPos)
	if d < LeashRestoreDistance {
		c.Position = c.SpawnPos
		c.Health = c.MaxHealth
		c.AIState = entity.AIIdle
		return true
	}

	dx, dy, dz := c.SpawnPos.X-c.Position.X, c.SpawnPos.Y-c.Position.Y, c.SpawnPos.Z-c.Position.Z
	step := EvadeSpeedUnitsPerTick / d
	c.Position = entity.Vec3{
		X: c.Position.X + dx*step,
		Y: c.Position.Y + dy*step,
		Z: c.Position.Z + dz*step,
	}
	return false
}

// Die transitions c to the terminal dead state for this life: it sets
// AIState to dead, zeroes Health and clears threat. Active effects are
// cleared by the caller via the buff package — ai does not import buff to
// keep the leaf dependency order spec.md §2 pins.
func Die(c *entity.Entity) {
	c.AIState = entity.AIDead
	c.Health = 0
	ClearThreat(c)
}
