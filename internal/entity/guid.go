// Package entity defines the live-object model that occupies a ZoneInstance:
// GUIDs, Entity, CreatureTemplate, and ActiveEffect (spec.md §3).
package entity

import "sync/atomic"

// Kind tags the low bits of a GUID.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindCreature
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindCreature:
		return "creature"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

const kindBits = 4
const kindMask = (1 << kindBits) - 1

// GUID is a 64-bit opaque entity identifier: a monotonic counter in the high
// bits and a Kind tag in the low bits (spec.md §3 "GUID"). Unlike the
// teacher's ecs.EntityID, there is no generation field — spec.md requires
// GUIDs never be reused within a server uptime, so there is nothing to
// invalidate.
type GUID uint64

func newGUID(counter uint64, kind Kind) GUID {
	return GUID(counter<<kindBits | uint64(kind&kindMask))
}

// Kind extracts the type tag from a GUID.
func (g GUID) Kind() Kind { return Kind(uint64(g) & kindMask) }

// Counter extracts the monotonic ordinal from a GUID.
func (g GUID) Counter() uint64 { return uint64(g) >> kindBits }

// Allocator is the single process-wide monotonic GUID source (spec.md §4.2
// "WorldDirectory", §9 "Global counters" — single-owner, never partitioned
// across zones). Safe for concurrent use from any actor.
type Allocator struct {
	counter atomic.Uint64
}

// Allocate returns a fresh GUID of the given kind. The counter starts at 1
// so the zero GUID is never issued and can be used as a sentinel "no entity".
func (a *Allocator) Allocate(kind Kind) GUID {
	n := a.counter.Add(1)
	return newGUID(n, kind)
}
