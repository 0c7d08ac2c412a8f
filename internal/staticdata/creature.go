package staticdata

import (
	"fmt"
	"os"

	"github.com/wildcore/server/internal/entity"
	"gopkg.in/yaml.v3"
)

// creatureEntry is the on-disk shape of one CreatureTemplate, grounded on
// internal/data/npc.go's NpcTemplate yaml tags, renamed to the fields
// spec.md §3's CreatureTemplate actually names.
type creatureEntry struct {
	TemplateID       int64   `yaml:"template_id"`
	Display          string  `yaml:"display"`
	FactionID        int32   `yaml:"faction_id"`
	Level            int32   `yaml:"level"`
	MaxHealth        int32   `yaml:"max_health"`
	AggroRange       float64 `yaml:"aggro_range"`
	LeashRange       float64 `yaml:"leash_range"`
	SocialAggroRange float64 `yaml:"social_aggro_range"`
	AIType           string  `yaml:"ai_type"` // passive/defensive/aggressive
	AttackSpeedMs    int64   `yaml:"attack_speed_ms"`
	AttackDamage     int64   `yaml:"attack_damage"`
	LootTableID      int64   `yaml:"loot_table_id"`
	RespawnDelayMs   int64   `yaml:"respawn_delay_ms"`
}

type creatureListFile struct {
	Creatures []creatureEntry `yaml:"creatures"`
}

var aiTypeByName = map[string]entity.AIType{
	"passive":    entity.AIPassive,
	"defensive":  entity.AIDefensive,
	"aggressive": entity.AIAggressive,
}

func loadCreatureTemplates(path string) (map[int64]*entity.CreatureTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f creatureListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}

	out := make(map[int64]*entity.CreatureTemplate, len(f.Creatures))
	for i := range f.Creatures {
		e := &f.Creatures[i]
		out[e.TemplateID] = &entity.CreatureTemplate{
			TemplateID:       e.TemplateID,
			Display:          e.Display,
			FactionID:        e.FactionID,
			Level:            e.Level,
			MaxHealth:        e.MaxHealth,
			AggroRange:       e.AggroRange,
			LeashRange:       e.LeashRange,
			SocialAggroRange: e.SocialAggroRange,
			AIType:           aiTypeByName[e.AIType],
			AttackSpeedMs:    e.AttackSpeedMs,
			AttackDamage:     e.AttackDamage,
			LootTableID:      e.LootTableID,
			RespawnDelayMs:   e.RespawnDelayMs,
		}
	}
	return out, nil
}

// CreatureTemplate implements the Static Data Store's "creature_template(id)"
// query (spec.md §6).
func (s *Store) CreatureTemplate(id int64) (*entity.CreatureTemplate, bool) {
	t, ok := s.creatures[id]
	return t, ok
}
