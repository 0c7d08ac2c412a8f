package staticdata

import (
	"fmt"
	"os"

	"github.com/wildcore/server/internal/faction"
	"gopkg.in/yaml.v3"
)

type factionMapEntry struct {
	FactionID int32  `yaml:"faction_id"`
	Tag       string `yaml:"tag"` // exile/dominion/hostile/neutral/friendly
}

type factionMapFile struct {
	Factions []factionMapEntry `yaml:"factions"`
}

var factionTagByName = map[string]faction.Faction{
	"exile":    faction.Exile,
	"dominion": faction.Dominion,
	"hostile":  faction.Hostile,
	"neutral":  faction.Neutral,
	"friendly": faction.Friendly,
}

func loadFactionMap(path string) (map[int32]faction.Faction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f factionMapFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}
	out := make(map[int32]faction.Faction, len(f.Factions))
	for _, e := range f.Factions {
		out[e.FactionID] = factionTagByName[e.Tag]
	}
	return out, nil
}

// Resolve implements ai.Factions, mapping a numeric faction id to its
// symbolic tag (spec.md §4.5). An unmapped id resolves to faction.Neutral,
// the tag spec.md's relation table treats as never hostile — the safest
// default for data entry gaps.
func (s *Store) Resolve(factionID int32) faction.Faction {
	if f, ok := s.factions[factionID]; ok {
		return f
	}
	return faction.Neutral
}
