package zone

import (
	"github.com/wildcore/server/internal/ai"
	"github.com/wildcore/server/internal/entity"
)

// actorLocator/actorFactions adapt an Instance's internal (lock-free,
// actor-goroutine-only) state to ai.Locator/ai.Factions, for use exclusively
// from within tick() — never across the mailbox, since that would have the
// actor block waiting on a reply to itself.
type actorLocator struct{ in *Instance }

func (a actorLocator) EntitiesInRange(center entity.Vec3, radius float64) []entity.GUID {
	return a.in.entitiesInRange(center, radius)
}

func (a actorLocator) Lookup(guid entity.GUID) (*entity.Entity, bool) {
	e, ok := a.in.entities[guid]
	return e, ok
}

// tick runs the AI scheduler for one period (spec.md §4.2 "AI tick"), then
// advances every corpse's respawn countdown.
func (in *Instance) tick() {
	loc := actorLocator{in: in}
	now := nowMs()

	budget := in.tickCap
	if budget <= 0 || budget > len(in.creatures) {
		budget = len(in.creatures)
	}

	n := len(in.creatures)
	for i := 0; i < budget && n > 0; i++ {
		idx := (in.tickCursor + i) % n
		guid := in.creatures[idx]
		c, ok := in.entities[guid]
		if !ok || c.Template == nil {
			continue
		}
		in.tickCreature(c, now, loc)
	}
	if n > 0 {
		in.tickCursor = (in.tickCursor + budget) % n
	}

	in.processRespawns(now)
}

func (in *Instance) tickCreature(c *entity.Entity, now int64, loc actorLocator) {
	switch c.AIState {
	case entity.AIIdle:
		target, ok := ai.AggroScan(c, loc, in.factions)
		if !ok {
			return
		}
		ai.EnterCombat(c, target, now)
		in.sink.CombatEntered(in.Key, c.Position, c.GUID, target)
		pulled := ai.SocialPull(c, target, now, loc, in.factions)
		for _, guid := range pulled {
			in.sink.CombatEntered(in.Key, c.Position, guid, target)
		}

	case entity.AICombat:
		if ai.TickCombat(c, now, loc) {
			in.sink.Evade(in.Key, c.Position, c.GUID)
			return
		}
		if target, ok := loc.Lookup(c.AITarget); ok && c.Template.AttackSpeedMs > 0 && now-c.LastAttack >= c.Template.AttackSpeedMs {
			c.LastAttack = now
			targetGUID, targetPos := target.GUID, target.Position
			out := in.damageCreature(c.GUID, targetGUID, c.Template.AttackDamage)
			if out.TargetDied {
				in.sink.EntityDied(in.Key, targetPos, targetGUID)
			}
		}

	case entity.AIEvade:
		if ai.TickEvade(c) {
			in.sink.IdleRestored(in.Key, c.Position, c.GUID)
		}
	}
}
