// Package faction implements the symbolic faction relation table shared by
// aggro detection, PvP, and broadcast filtering (spec.md §4.5).
package faction

// Faction is one of the five symbolic tags spec.md §4.5 names. Creatures and
// players carry a numeric faction id that maps to one of these via a
// static-data lookup (internal/staticdata); the relation table itself only
// ever operates on the symbolic tag.
type Faction uint8

const (
	Exile Faction = iota
	Dominion
	Hostile
	Neutral
	Friendly
)

// relation[a][b] reports whether a is hostile toward b. Only exile, dominion,
// and hostile ever appear as rows with a "yes" — neutral and friendly are
// never hostile to anything, matching spec.md §4.5's table exactly.
var relation = map[Faction]map[Faction]bool{
	Exile:    {Dominion: true, Hostile: true},
	Dominion: {Exile: true, Hostile: true},
	Hostile:  {Exile: true, Dominion: true, Hostile: true},
}

// IsHostile reports whether a considers b a hostile target. Every combination
// not present in the table (including neutral/friendly in either position)
// is "no" per spec.md §4.5.
func IsHostile(a, b Faction) bool {
	return relation[a][b]
}
