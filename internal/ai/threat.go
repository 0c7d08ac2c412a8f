// Package ai implements the creature AI state machine — idle/combat/evade/
// dead with threat-based targeting, aggro detection, social pull, and leash
// (spec.md §4.4). Grounded on the teacher's internal/system/hate.go threat
// bookkeeping and internal/system/npc_ai.go's target-validation/reselection
// loop, rewritten around the spec's pinned four-state machine instead of the
// teacher's open-ended per-NPC-impl dispatch.
package ai

import "github.com/wildcore/server/internal/entity"

// AddThreat accumulates damage-based threat from attacker against c and
// switches c's current target if attacker's accumulated threat now exceeds
// the current target's (spec.md §4.4 "Current target = argmax threat").
// A no-op for non-positive amounts or the zero GUID, mirroring the teacher's
// AddHate guard.
func AddThreat(c *entity.Entity, attacker entity.GUID, amount int64) {
	if amount <= 0 || attacker == 0 {
		return
	}
	if c.Threat == nil {
		c.Threat = make(map[entity.GUID]int64)
	}
	c.Threat[attacker] += amount

	if c.AITarget == 0 {
		c.AITarget = attacker
		return
	}
	if attacker != c.AITarget && c.Threat[attacker] > c.Threat[c.AITarget] {
		c.AITarget = attacker
	}
}

// MaxThreatTarget returns the GUID holding the highest accumulated threat,
// or 0 if the table is empty.
func MaxThreatTarget(c *entity.Entity) entity.GUID {
	var best entity.GUID
	var bestThreat int64 = -1
	for guid, threat := range c.Threat {
		if threat > bestThreat {
			bestThreat = threat
			best = guid
		}
	}
	return best
}

// RemoveThreat drops attacker from c's threat table (e.g. it logged out or
// left the zone).
func RemoveThreat(c *entity.Entity, attacker entity.GUID) {
	if c.Threat != nil {
		delete(c.Threat, attacker)
	}
}

// ClearThreat empties c's threat table and current target, for use on
// entering evade or on respawn.
func ClearThreat(c *entity.Entity) {
	c.Threat = nil
	c.AITarget = 0
}
