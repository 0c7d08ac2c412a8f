package staticdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LootDrop is one possible item drop, grounded on internal/data/drop.go's
// DropItem.
type LootDrop struct {
	ItemID int64 `yaml:"item_id"`
	Min    int   `yaml:"min"`
	Max    int   `yaml:"max"`
	Chance int   `yaml:"chance"` // out of 1,000,000
}

type lootTableEntry struct {
	LootTableID int64      `yaml:"loot_table_id"`
	Drops       []LootDrop `yaml:"drops"`
}

type lootTableListFile struct {
	Tables []lootTableEntry `yaml:"loot_tables"`
}

func loadLootTables(path string) (map[int64][]LootDrop, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f lootTableListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}
	out := make(map[int64][]LootDrop, len(f.Tables))
	for _, t := range f.Tables {
		out[t.LootTableID] = t.Drops
	}
	return out, nil
}

// LootTable implements the Static Data Store's "loot_table(id)" query
// (spec.md §6).
func (s *Store) LootTable(id int64) ([]LootDrop, bool) {
	drops, ok := s.lootTables[id]
	return drops, ok
}
