// Package spatial implements the uniform-cell grid used for interest
// management, aggro scans, and AoE range queries inside a single zone.
package spatial

import "math"

// DefaultCellSize is the spec's defensible default: larger than the common
// query radius (aggro/broadcast ~15-30 units), smaller than a zone extent.
const DefaultCellSize = 50.0

// Vec3 is a point in zone space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) sqLen() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

// GUID is an opaque entity identifier. The spatial grid never interprets it.
type GUID uint64

type cellCoord struct {
	x, y, z int32
}

// Grid is a uniform 3-D spatial index over a single zone's live entities.
// Every operation assumes it is called from the owning zone actor's single
// goroutine — it holds no internal locking, matching the zone actor's
// single-threaded ownership of its spatial state (spec.md §4.3).
type Grid struct {
	cellSize  float64
	cells     map[cellCoord]map[GUID]struct{}
	positions map[GUID]Vec3
}

// New creates a grid with the given cell size. A size <= 0 falls back to
// DefaultCellSize.
func New(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize:  cellSize,
		cells:     make(map[cellCoord]map[GUID]struct{}),
		positions: make(map[GUID]Vec3),
	}
}

func (g *Grid) cellOf(p Vec3) cellCoord {
	return cellCoord{
		x: floorDiv(p.X, g.cellSize),
		y: floorDiv(p.Y, g.cellSize),
		z: floorDiv(p.Z, g.cellSize),
	}
}

func floorDiv(v, size float64) int32 {
	return int32(math.Floor(v / size))
}

// Insert places guid into the grid at pos. Inserting an already-present guid
// first removes its old entry (so Insert can double as a relocate).
func (g *Grid) Insert(guid GUID, pos Vec3) {
	if _, ok := g.positions[guid]; ok {
		g.Remove(guid)
	}
	c := g.cellOf(pos)
	set := g.cells[c]
	if set == nil {
		set = make(map[GUID]struct{})
		g.cells[c] = set
	}
	set[guid] = struct{}{}
	g.positions[guid] = pos
}

// Remove takes guid out of the grid. No-op if guid is absent.
func (g *Grid) Remove(guid GUID) {
	pos, ok := g.positions[guid]
	if !ok {
		return
	}
	c := g.cellOf(pos)
	if set := g.cells[c]; set != nil {
		delete(set, guid)
		if len(set) == 0 {
			delete(g.cells, c)
		}
	}
	delete(g.positions, guid)
}

// Update moves guid to newPos. No-op (does not insert) if guid is absent —
// callers must Insert a new entity first.
func (g *Grid) Update(guid GUID, newPos Vec3) {
	if _, ok := g.positions[guid]; !ok {
		return
	}
	g.Remove(guid)
	g.Insert(guid, newPos)
}

// Position returns the cached position of guid, if present.
func (g *Grid) Position(guid GUID) (Vec3, bool) {
	p, ok := g.positions[guid]
	return p, ok
}

// Count returns the number of tracked entities.
func (g *Grid) Count() int { return len(g.positions) }

// EntitiesInRange returns every guid within radius of center (inclusive),
// using squared-distance comparison only — never calls sqrt, per spec.md
// §4.3. Cost is O(k) in the number of entities occupying the touched cells.
func (g *Grid) EntitiesInRange(center Vec3, radius float64) []GUID {
	if radius < 0 {
		return nil
	}
	r2 := radius * radius

	minC := g.cellOf(Vec3{center.X - radius, center.Y - radius, center.Z - radius})
	maxC := g.cellOf(Vec3{center.X + radius, center.Y + radius, center.Z + radius})

	var out []GUID
	for cx := minC.x; cx <= maxC.x; cx++ {
		for cy := minC.y; cy <= maxC.y; cy++ {
			for cz := minC.z; cz <= maxC.z; cz++ {
				set := g.cells[cellCoord{cx, cy, cz}]
				for guid := range set {
					p := g.positions[guid]
					if p.sub(center).sqLen() <= r2 {
						out = append(out, guid)
					}
				}
			}
		}
	}
	return out
}
