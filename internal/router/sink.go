package router

import (
	"github.com/wildcore/server/internal/buff"
	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/net/packet"
	"github.com/wildcore/server/internal/zone"
)

// Sink implements zone.Sink: every zone actor translates its domain
// events through here into wire packets, fanned out to whichever
// connections are currently bound to a nearby player GUID (spec.md §2
// "zone stays ignorant of the wire format" / §4.5 "default broadcast
// radius"). The zone actor has already done the interest-radius
// filtering (internal/zone/instance.go calls EntitiesInRange before
// invoking Sink for position-scoped events); this layer only needs to
// resolve GUID -> Connection and serialize.

func writeEntityCreate(w *packet.Writer, e *entity.Entity) {
	w.WriteQ(int64(e.GUID))
	w.WriteC(byte(e.Kind))
	w.WriteWS(e.Name)
	w.WriteF32(float32(e.Position.X))
	w.WriteF32(float32(e.Position.Y))
	w.WriteF32(float32(e.Position.Z))
	w.WriteD(e.Level)
	w.WriteD(e.Health)
	w.WriteD(e.MaxHealth)
}

// broadcastToPlayers delivers a prebuilt packet to every player GUID in
// guids that has a live Connection bound.
func (r *Router) broadcastToPlayers(guids []entity.GUID, build func() *packet.Writer) {
	for _, guid := range guids {
		conn, ok := r.conns.lookup(guid)
		if !ok {
			continue
		}
		send(conn, build())
	}
}

func (r *Router) playersInRange(key zone.Key, center entity.Vec3, radius float64) []entity.GUID {
	instance, ok := r.deps.Zones.Lookup(key)
	if !ok {
		return nil
	}
	var out []entity.GUID
	for _, guid := range instance.EntitiesInRange(center, radius) {
		if e, ok := instance.Lookup(guid); ok && e.Kind == entity.KindPlayer {
			out = append(out, guid)
		}
	}
	return out
}

func (r *Router) EntityCreate(key zone.Key, e *entity.Entity) {
	r.broadcastToPlayers(r.playersInRange(key, e.Position, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerEntityCreate)
		writeEntityCreate(w, e)
		return w
	})
}

func (r *Router) EntityDestroy(key zone.Key, center entity.Vec3, guid entity.GUID) {
	r.conns.unbind(guid)
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerEntityDestroy)
		w.WriteQ(int64(guid))
		return w
	})
}

func (r *Router) Movement(key zone.Key, guid entity.GUID, pos entity.Vec3, rot entity.Rotation) {
	r.broadcastToPlayers(r.playersInRange(key, pos, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerMovement)
		w.WriteQ(int64(guid))
		w.WriteF32(float32(pos.X))
		w.WriteF32(float32(pos.Y))
		w.WriteF32(float32(pos.Z))
		w.WriteF32(float32(rot.X))
		w.WriteF32(float32(rot.Y))
		w.WriteF32(float32(rot.Z))
		return w
	})
}

func (r *Router) BuffApply(key zone.Key, target, caster entity.GUID, eff *entity.ActiveEffect) {
	instance, ok := r.deps.Zones.Lookup(key)
	if !ok {
		return
	}
	t, ok := instance.Lookup(target)
	if !ok {
		return
	}
	r.broadcastToPlayers(r.playersInRange(key, t.Position, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerBuffApply)
		w.WriteQ(int64(target))
		w.WriteQ(int64(caster))
		w.WriteQ(eff.EffectID)
		w.WriteQ(eff.SpellID)
		w.WriteC(byte(eff.Type))
		w.WriteD(int32(eff.Amount))
		w.WriteD(int32(eff.ExpiresAt))
		if eff.IsDebuff {
			w.WriteC(1)
		} else {
			w.WriteC(0)
		}
		return w
	})
}

func (r *Router) BuffRemove(key zone.Key, center entity.Vec3, target entity.GUID, removal buff.Removal) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerBuffRemove)
		w.WriteQ(int64(target))
		w.WriteQ(removal.EffectID)
		w.WriteC(byte(buffRemoveReason(removal.Reason)))
		return w
	})
}

// buffRemoveReason maps entity.RemoveReason onto the wire enum spec.md §6
// pins (dispel=0, expired=1, cancelled=2) — they already share ordinal
// values, but the wire type is distinct from the domain type by design
// (spec.md §2's dependency order keeps domain packages ignorant of the
// wire format).
func buffRemoveReason(reason entity.RemoveReason) packet.BuffRemoveReason {
	switch reason {
	case entity.RemoveExpired:
		return packet.BuffRemoveExpired
	case entity.RemoveCancelled:
		return packet.BuffRemoveCancelled
	default:
		return packet.BuffRemoveDispel
	}
}

func (r *Router) CombatOutcome(key zone.Key, center entity.Vec3, attacker, target entity.GUID, out combat.Outcome) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerSpellGo)
		w.WriteQ(int64(attacker))
		w.WriteQ(int64(target))
		w.WriteQ(out.DamageDealt)
		w.WriteQ(out.Absorbed)
		w.WriteQ(out.Healed)
		if out.TargetDied {
			w.WriteC(1)
		} else {
			w.WriteC(0)
		}
		return w
	})
}

// CombatEntered announces guid (and, for a social pull, any ally dragged
// into combat alongside it) has targeted target (spec.md §4.4 "idle ->
// combat").
func (r *Router) CombatEntered(key zone.Key, center entity.Vec3, guid, target entity.GUID) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerCombatEnter)
		w.WriteQ(int64(guid))
		w.WriteQ(int64(target))
		return w
	})
}

// Evade announces guid has leashed/timed out back to its spawn (spec.md
// §4.4 "combat -> evade").
func (r *Router) Evade(key zone.Key, center entity.Vec3, guid entity.GUID) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerEvade)
		w.WriteQ(int64(guid))
		return w
	})
}

// IdleRestored announces guid has finished evading and settled back to
// idle at full health (spec.md §4.4 "evade -> idle").
func (r *Router) IdleRestored(key zone.Key, center entity.Vec3, guid entity.GUID) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerIdleRestored)
		w.WriteQ(int64(guid))
		return w
	})
}

// EntityDied announces guid was killed by a creature's attack cadence
// outside the spell pipeline (spec.md §4.4 step "emit a damage event
// against the target"). Unlike EntityDestroy this does not imply guid left
// the zone's entity table — a player corpse stays until release/respawn,
// only a creature corpse is actually despawned (see internal/zone's
// damageCreature/applySpellEffect, which emit EntityDestroy themselves
// when the dead entity is a creature).
func (r *Router) EntityDied(key zone.Key, center entity.Vec3, guid entity.GUID) {
	r.broadcastToPlayers(r.playersInRange(key, center, zone.BroadcastRadius), func() *packet.Writer {
		w := packet.NewWriterWithOpcode(packet.OpServerEntityDied)
		w.WriteQ(int64(guid))
		return w
	})
}

func (r *Router) Custom(key zone.Key, center entity.Vec3, radius float64, payload any) {
	w, ok := payload.(*packet.Writer)
	if !ok {
		return
	}
	r.broadcastToPlayers(r.playersInRange(key, center, radius), func() *packet.Writer { return w })
}
