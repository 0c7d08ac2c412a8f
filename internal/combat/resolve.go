// Package combat implements the spell/effect resolution pipeline (spec.md
// §4.4 "Spell/effect pipeline"): given a caster, a target, and static spell
// data, it produces health/absorb/buff mutations and the events a zone
// actor broadcasts to interest. Grounded on internal/system/combat.go's
// attack-request resolution shape, generalized from its two hardcoded
// melee/ranged paths to a data-driven list of typed effects.
package combat

import (
	"fmt"

	"github.com/wildcore/server/internal/ai"
	"github.com/wildcore/server/internal/buff"
	"github.com/wildcore/server/internal/combat/formula"
	"github.com/wildcore/server/internal/entity"
)

// SpellEffectSpec is one static effect entry of a spell (spec.md §3
// "ActiveEffect" / §4.4 "five kinds"). FormulaID, when non-empty, names a
// Lua function in internal/combat/formula that scales Amount by the live
// combat context; an empty FormulaID applies Amount literally.
type SpellEffectSpec struct {
	Type           entity.EffectType
	EffectID       int64 // holder-scoped address (spec.md §3); only meaningful for absorb/stat_mod/periodic
	Amount         int64
	StatTag        string
	DurationMs     int64
	TickIntervalMs int64
	IsDebuff       bool
	FormulaID      string
}

// SpellData is the static blueprint a cast resolves against (spec.md §6
// "spell(id)", "spell_effects(spell_id)").
type SpellData struct {
	SpellID    int64
	CastTimeMs int64
	Effects    []SpellEffectSpec
}

// SpellProvider is satisfied by the static data store (spec.md §6).
// Declared here rather than imported from internal/staticdata to avoid a
// combat -> staticdata dependency; staticdata's concrete type implements
// this structurally.
type SpellProvider interface {
	Spell(spellID int64) (*SpellData, bool)
}

// Outcome summarizes everything that happened during one cast resolution,
// for the zone actor to translate into broadcast packets (spec.md §4.4 step
// 4 "Broadcast the resolved outcome to interest").
type Outcome struct {
	DamageDealt int64
	Absorbed    int64
	Healed      int64
	AppliedIDs  []int64
	Removals    []buff.Removal
	TargetDied  bool
}

// ResolveCast applies every effect of spellID against target in order
// (spec.md §4.4 steps 2-3). The caller is responsible for step 1 (state
// validation, resource cost, cast timer) before invoking this — ResolveCast
// only performs effect application, matching the teacher's split between
// handler-side validation and system-side resolution.
func ResolveCast(caster, target *entity.Entity, spellID int64, nowMs int64, spells SpellProvider, formulas *formula.Engine) (Outcome, error) {
	spell, ok := spells.Spell(spellID)
	if !ok {
		return Outcome{}, fmt.Errorf("combat: unknown spell_id %d", spellID)
	}

	var out Outcome
	for _, eff := range spell.Effects {
		amount := scaledAmount(caster, target, eff, formulas)

		switch eff.Type {
		case entity.EffectDamage:
			dealt, absorbed, removals := buff.ApplyDamage(target, amount)
			out.DamageDealt += dealt
			out.Absorbed += absorbed
			out.Removals = append(out.Removals, removals...)
			if target.Kind == entity.KindCreature {
				ai.AddThreat(target, caster.GUID, dealt)
			}
			if !target.IsAlive() {
				out.TargetDied = true
			}

		case entity.EffectHeal:
			buff.ApplyHeal(target, amount)
			out.Healed += amount
			if target.Kind == entity.KindCreature {
				ai.AddThreat(target, caster.GUID, amount)
			}

		case entity.EffectAbsorb, entity.EffectStatMod, entity.EffectPeriodic:
			active := entity.NewActiveEffect(eff.EffectID, spellID, caster.GUID, eff.Type, amount, nowMs, nowMs+eff.DurationMs)
			active.StatTag = eff.StatTag
			active.IsDebuff = eff.IsDebuff
			active.TickIntervalMs = eff.TickIntervalMs
			buff.Apply(target, active)
			out.AppliedIDs = append(out.AppliedIDs, eff.EffectID)
		}

		if out.TargetDied {
			buff.ClearAll(target)
			if target.Kind == entity.KindCreature {
				ai.Die(target)
			}
			break
		}
	}
	return out, nil
}

func scaledAmount(caster, target *entity.Entity, eff SpellEffectSpec, formulas *formula.Engine) int64 {
	if eff.FormulaID == "" || formulas == nil {
		return eff.Amount
	}
	res := formulas.Evaluate(eff.FormulaID, formula.Context{
		CasterLevel: caster.Level,
		TargetLevel: target.Level,
		BaseAmount:  eff.Amount,
	})
	return res.Amount
}
