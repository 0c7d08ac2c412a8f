package staticdata

import (
	"fmt"
	"os"

	"github.com/wildcore/server/internal/zone"
	"gopkg.in/yaml.v3"
)

// ZoneDescriptor is the static layout spec.md §6's "zone(world_id)" query
// returns: enough to seed a freshly-entered ZoneInstance without the zone
// actor itself knowing about YAML.
type ZoneDescriptor struct {
	WorldID        int64
	Name           string
	DefaultContent zone.ContentType
	CellSize       float64
}

type zoneEntry struct {
	WorldID        int64   `yaml:"world_id"`
	Name           string  `yaml:"name"`
	DefaultContent string  `yaml:"default_content"` // expedition/dungeon/raid
	CellSize       float64 `yaml:"cell_size"`
}

type zoneListFile struct {
	Zones []zoneEntry `yaml:"zones"`
}

var contentTypeByName = map[string]zone.ContentType{
	"expedition": zone.ContentExpedition,
	"dungeon":    zone.ContentDungeon,
	"raid":       zone.ContentRaid,
}

func loadZones(path string) (map[int64]ZoneDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staticdata: read %s: %w", path, err)
	}
	var f zoneListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("staticdata: parse %s: %w", path, err)
	}
	out := make(map[int64]ZoneDescriptor, len(f.Zones))
	for _, e := range f.Zones {
		out[e.WorldID] = ZoneDescriptor{
			WorldID:        e.WorldID,
			Name:           e.Name,
			DefaultContent: contentTypeByName[e.DefaultContent],
			CellSize:       e.CellSize,
		}
	}
	return out, nil
}

// Zone implements the Static Data Store's "zone(world_id)" query (spec.md
// §6).
func (s *Store) Zone(worldID int64) (ZoneDescriptor, bool) {
	z, ok := s.zones[worldID]
	return z, ok
}
