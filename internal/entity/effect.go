package entity

// EffectType enumerates the five effect kinds spec.md §4.4 defines.
type EffectType uint8

const (
	EffectDamage EffectType = iota
	EffectHeal
	EffectAbsorb
	EffectStatMod
	EffectPeriodic
)

// RemoveReason tags why a ServerBuffRemove was broadcast (spec.md §6).
type RemoveReason uint8

const (
	RemoveDispel RemoveReason = iota
	RemoveExpired
	RemoveCancelled
)

// ActiveEffect is a live buff or debuff held on an Entity, indexed by its
// holder-scoped EffectID (spec.md §3 "ActiveEffect").
type ActiveEffect struct {
	EffectID   int64
	SpellID    int64
	CasterGUID GUID
	Type       EffectType
	StatTag    string // only meaningful when Type == EffectStatMod
	Amount     int64
	IsDebuff   bool
	Stacks     int32
	MaxStacks  int32
	ExpiresAt  int64 // monotonic ms; strictly greater than creation time

	TickIntervalMs int64 // only meaningful when Type == EffectPeriodic
	lastTickAt     int64

	// AppliedAt is the monotonic ms the effect was applied, used to recover
	// insertion order for absorb consumption (spec.md §4.4 "Absorb
	// consumption: iterate ... in insertion order") since a Go map does not
	// preserve it.
	AppliedAt int64
}

// NewActiveEffect constructs an effect with Stacks defaulted to 1, matching
// the invariant "a buff with stacks >= 1" (spec.md §3 invariants).
func NewActiveEffect(effectID, spellID int64, caster GUID, typ EffectType, amount int64, nowMs, expiresAt int64) *ActiveEffect {
	return &ActiveEffect{
		EffectID:   effectID,
		SpellID:    spellID,
		CasterGUID: caster,
		Type:       typ,
		Amount:     amount,
		Stacks:     1,
		MaxStacks:  1,
		ExpiresAt:  expiresAt,
		lastTickAt: nowMs,
		AppliedAt:  nowMs,
	}
}

// Expired reports whether the effect's expiry has passed at nowMs (spec.md
// §8 item 8: "expires exactly when now >= expires_at").
func (e *ActiveEffect) Expired(nowMs int64) bool {
	return nowMs >= e.ExpiresAt
}

// DuePeriodicTicks returns how many tick_interval_ms boundaries have elapsed
// since the last call, advancing the internal cursor. Only meaningful for
// EffectPeriodic.
func (e *ActiveEffect) DuePeriodicTicks(nowMs int64) int {
	if e.TickIntervalMs <= 0 {
		return 0
	}
	elapsed := nowMs - e.lastTickAt
	if elapsed < e.TickIntervalMs {
		return 0
	}
	ticks := int(elapsed / e.TickIntervalMs)
	e.lastTickAt += int64(ticks) * e.TickIntervalMs
	return ticks
}
