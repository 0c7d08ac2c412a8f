// Package buff implements the active-effect lifecycle: apply/refresh,
// absorb consumption order, stat_mod aggregation, and expiry (spec.md §4.4
// "Buff lifecycle", "Absorb consumption"). Grounded on the teacher's
// internal/system/buff_tick.go per-tick decrement loop and the dangling-
// reference-pruning idiom in internal/system/hate.go.
package buff

import (
	"sort"

	"github.com/wildcore/server/internal/entity"
)

// Removal describes one effect leaving a holder, for broadcasting
// ServerBuffRemove (spec.md §6).
type Removal struct {
	EffectID int64
	Reason   entity.RemoveReason
}

// Pulse describes one periodic-effect tick firing a damage or heal event.
type Pulse struct {
	EffectID int64
	IsHeal   bool
	Amount   int64
}

// Apply adds eff to holder. If an effect with the same EffectID already
// exists it is replaced (refreshed) — any pending expiration is implicitly
// cancelled because the old *ActiveEffect is discarded outright, never
// separately timed (spec.md §4.4 "Re-applying the same effect_id replaces
// amount/duration and does not leak timers").
func Apply(holder *entity.Entity, eff *entity.ActiveEffect) {
	holder.ActiveEffects[eff.EffectID] = eff
}

// Dispel removes an effect explicitly and reports the removal for
// broadcasting with reason "dispel". No-op if absent.
func Dispel(holder *entity.Entity, effectID int64) (Removal, bool) {
	return remove(holder, effectID, entity.RemoveDispel)
}

// Cancel removes an effect explicitly (e.g. consumed absorb) and reports the
// removal with reason "cancelled".
func Cancel(holder *entity.Entity, effectID int64) (Removal, bool) {
	return remove(holder, effectID, entity.RemoveCancelled)
}

func remove(holder *entity.Entity, effectID int64, reason entity.RemoveReason) (Removal, bool) {
	if _, ok := holder.ActiveEffects[effectID]; !ok {
		return Removal{}, false
	}
	delete(holder.ActiveEffects, effectID)
	return Removal{EffectID: effectID, Reason: reason}, true
}

// ClearAll wipes every active effect on holder without generating per-effect
// removal packets, for use on entity death (spec.md §4.4 "On entity death
// all active effects are cleared without per-effect removal packets").
func ClearAll(holder *entity.Entity) {
	for id := range holder.ActiveEffects {
		delete(holder.ActiveEffects, id)
	}
}

// Tick expires timed-out effects and fires due periodic pulses. Call once
// per AI/combat tick (spec.md §4.2 "AI tick") for every holder with active
// effects.
func Tick(holder *entity.Entity, nowMs int64) ([]Removal, []Pulse) {
	var removals []Removal
	var pulses []Pulse
	for id, eff := range holder.ActiveEffects {
		if eff.Type == entity.EffectPeriodic {
			for i := 0; i < eff.DuePeriodicTicks(nowMs); i++ {
				pulses = append(pulses, Pulse{
					EffectID: id,
					IsHeal:   eff.Amount < 0, // convention: negative amount = periodic heal
					Amount:   abs64(eff.Amount),
				})
			}
		}
		if eff.Expired(nowMs) {
			delete(holder.ActiveEffects, id)
			removals = append(removals, Removal{EffectID: id, Reason: entity.RemoveExpired})
		}
	}
	return removals, pulses
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ApplyDamage routes incoming damage through the holder's absorb shields
// before reducing health (spec.md §4.4 "damage: route through the target's
// absorb shields first"). Absorb effects are consumed oldest-first by
// AppliedAt timestamp (insertion order is not retained by a Go map, so each
// ActiveEffect records its own apply time instead), per spec.md §4.4
// "Absorb consumption: iterate absorb effects in insertion order (oldest
// first)"). An absorb drained to zero is removed immediately and reported
// as a Cancel-reason removal.
//
// Returns the damage that reaches health, the total absorbed, and any
// absorb removals to broadcast.
func ApplyDamage(holder *entity.Entity, amount int64) (damageAfterAbsorb, totalAbsorbed int64, removals []Removal) {
	remaining := amount

	var absorbIDs []int64
	for id, eff := range holder.ActiveEffects {
		if eff.Type == entity.EffectAbsorb {
			absorbIDs = append(absorbIDs, id)
		}
	}
	sort.Slice(absorbIDs, func(i, j int) bool {
		a, b := holder.ActiveEffects[absorbIDs[i]], holder.ActiveEffects[absorbIDs[j]]
		if a.AppliedAt != b.AppliedAt {
			return a.AppliedAt < b.AppliedAt
		}
		return absorbIDs[i] < absorbIDs[j]
	})

	for _, id := range absorbIDs {
		if remaining <= 0 {
			break
		}
		eff := holder.ActiveEffects[id]
		take := eff.Amount
		if take > remaining {
			take = remaining
		}
		eff.Amount -= take
		remaining -= take
		totalAbsorbed += take
		if eff.Amount <= 0 {
			delete(holder.ActiveEffects, id)
			removals = append(removals, Removal{EffectID: id, Reason: entity.RemoveCancelled})
		}
	}

	holder.Health -= int32(remaining)
	if holder.Health < 0 {
		holder.Health = 0
	}
	return remaining, totalAbsorbed, removals
}

// ApplyHeal raises health up to MaxHealth (spec.md §4.4 "heal: raise health
// up to max_health").
func ApplyHeal(holder *entity.Entity, amount int64) {
	holder.Health += int32(amount)
	if holder.Health > holder.MaxHealth {
		holder.Health = holder.MaxHealth
	}
}
