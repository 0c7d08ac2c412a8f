package staticdata

import (
	"fmt"
	"os"

	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/entity"
	"gopkg.in/yaml.v3"
)

// spellEffectEntry is one row of "spell_effects(spell_id) -> [effect]"
// (spec.md §6), grounded on internal/data/skill.go's flat skillEntry shape,
// split here into the repeating effect list spec.md §4.4's five-kind
// ActiveEffect pipeline needs instead of the teacher's single damage/buff
// pair per skill.
type spellEffectEntry struct {
	Type           string `yaml:"type"` // damage/heal/absorb/stat_mod/periodic
	EffectID       int64  `yaml:"effect_id"`
	Amount         int64  `yaml:"amount"`
	StatTag        string `yaml:"stat_tag"`
	DurationMs     int64  `yaml:"duration_ms"`
	TickIntervalMs int64  `yaml:"tick_interval_ms"`
	IsDebuff       bool   `yaml:"is_debuff"`
	FormulaID      string `yaml:"formula_id"`
}

type spellEntry struct {
	SpellID    int64              `yaml:"spell_id"`
	CastTimeMs int64              `yaml:"cast_time_ms"`
	Effects    []spellEffectEntry `yaml:"effects"`
}

type spellListFile struct {
	Spells []spellEntry `yaml:"spells"`
}

var effectTypeByName = map[string]entity.EffectType{
	"damage":    entity.EffectDamage,
	"heal":      entity.EffectHeal,
	"absorb":    entity.EffectAbsorb,
	"stat_mod":  entity.EffectStatMod,
	"periodic":  entity.EffectPeriodic,
}

func loadSpells(path string) (map[int64]*combat.SpellData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f spellListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}

	out := make(map[int64]*combat.SpellData, len(f.Spells))
	for i := range f.Spells {
		e := &f.Spells[i]
		effects := make([]combat.SpellEffectSpec, len(e.Effects))
		for j, eff := range e.Effects {
			effects[j] = combat.SpellEffectSpec{
				Type:           effectTypeByName[eff.Type],
				EffectID:       eff.EffectID,
				Amount:         eff.Amount,
				StatTag:        eff.StatTag,
				DurationMs:     eff.DurationMs,
				TickIntervalMs: eff.TickIntervalMs,
				IsDebuff:       eff.IsDebuff,
				FormulaID:      eff.FormulaID,
			}
		}
		out[e.SpellID] = &combat.SpellData{
			SpellID:    e.SpellID,
			CastTimeMs: e.CastTimeMs,
			Effects:    effects,
		}
	}
	return out, nil
}

// Spell implements combat.SpellProvider's "spell(id)"/"spell_effects(spell_id)"
// pair (spec.md §6) as a single lookup, since this store's spell_effects are
// embedded in the same YAML entry rather than a separate join.
func (s *Store) Spell(spellID int64) (*combat.SpellData, bool) {
	sp, ok := s.spells[spellID]
	return sp, ok
}
