// Package staticdata is the external Static Data Store (spec.md §6):
// read-only, concurrency-safe (every map is built once at Load and never
// mutated after), loaded once at startup from a directory of YAML files.
// Grounded on internal/data/*.go's per-category Load*Table(path) idiom,
// reshaped from the teacher's item/armor/mob-drop domain onto this core's
// creature/spell/loot/zone/text/faction domain.
package staticdata

import (
	"fmt"
	"path/filepath"

	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/faction"
)

// Store answers every query spec.md §6 names for the Static Data Store. It
// implements combat.SpellProvider and ai.Factions structurally, so zone
// actors can depend on those narrow interfaces without importing this
// package directly.
type Store struct {
	creatures  map[int64]*entity.CreatureTemplate
	spells     map[int64]*combat.SpellData
	lootTables map[int64][]LootDrop
	zones      map[int64]ZoneDescriptor
	text       map[int64]string
	factions   map[int32]faction.Faction
}

// Load reads every YAML table from dir (creatures.yaml, spells.yaml,
// loot_tables.yaml, zones.yaml, text.yaml, factions.yaml) and returns a
// fully populated Store. Any missing or malformed file fails startup
// outright — spec.md §6 "loaded once at startup" gives no provision for a
// partially loaded store.
func Load(dir string) (*Store, error) {
	creatures, err := loadCreatureTemplates(filepath.Join(dir, "creatures.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load creatures: %w", err)
	}
	spells, err := loadSpells(filepath.Join(dir, "spells.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load spells: %w", err)
	}
	lootTables, err := loadLootTables(filepath.Join(dir, "loot_tables.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load loot tables: %w", err)
	}
	zones, err := loadZones(filepath.Join(dir, "zones.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load zones: %w", err)
	}
	text, err := loadText(filepath.Join(dir, "text.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load text: %w", err)
	}
	factions, err := loadFactionMap(filepath.Join(dir, "factions.yaml"))
	if err != nil {
		return nil, fmt.Errorf("staticdata: load factions: %w", err)
	}

	return &Store{
		creatures:  creatures,
		spells:     spells,
		lootTables: lootTables,
		zones:      zones,
		text:       text,
		factions:   factions,
	}, nil
}
