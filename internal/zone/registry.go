package zone

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wildcore/server/internal/ai"
	"github.com/wildcore/server/internal/combat"
	"github.com/wildcore/server/internal/combat/formula"
	"github.com/wildcore/server/internal/entity"
)

// ContentType selects an instance's retirement policy (spec.md §4.2
// "Instance retirement by content type").
type ContentType uint8

const (
	ContentExpedition ContentType = iota
	ContentDungeon
	ContentRaid
)

// RetirementPolicy is the empty-TTL / disconnect-grace pair for a content
// type. PersistUntilReset is true for content that never empty-TTLs (raids, until
// the weekly reset job retires them out-of-band).
type RetirementPolicy struct {
	EmptyTTL          time.Duration
	DisconnectGrace   time.Duration
	PersistUntilReset bool
}

// DefaultPolicies mirrors spec.md §4.2's retirement table; overridable per
// registry via WithPolicy.
var DefaultPolicies = map[ContentType]RetirementPolicy{
	ContentExpedition: {EmptyTTL: 0, DisconnectGrace: 60 * time.Second},
	ContentDungeon:    {EmptyTTL: 300 * time.Second, DisconnectGrace: 300 * time.Second},
	ContentRaid:       {DisconnectGrace: 600 * time.Second, PersistUntilReset: true},
}

// PersistFunc is called immediately before a raid instance's actor stops,
// so callers can flush raid-save state (spec.md §4.2 "persist necessary
// state (raid saves) before shutdown"). No-op if nil.
type PersistFunc func(key Key, in *Instance)

type entry struct {
	instance *Instance
	content  ContentType
	cancel   context.CancelFunc
	emptyAt  time.Time // zero until the instance first observes zero players
}

// Registry is the ZoneInstanceRegistry supervisor (spec.md §4.2
// "Supervisor"). Grounded on internal/world/state.go's map-keyed lookup
// tables, generalized from single-goroutine access to a mutex-guarded map
// since callers here are connection/router goroutines, not one game loop.
type Registry struct {
	mu        sync.Mutex
	instances map[Key]*entry
	policies  map[ContentType]RetirementPolicy

	cellSize   float64
	factions   ai.Factions
	spells     combat.SpellProvider
	formulas   *formula.Engine
	guids      *entity.Allocator
	sink       Sink
	persist    PersistFunc
	sweepEvery time.Duration

	log *zap.Logger
}

// NewRegistry constructs a Registry. Call Run to start the retirement
// sweep; the sweep goroutine exits when ctx is cancelled. guids is the
// process-wide GUID allocator (spec.md §9 "Global counters"), shared with
// every Instance it spawns so respawned creatures draw from the same
// single counter as everything else.
func NewRegistry(cellSize float64, factions ai.Factions, spells combat.SpellProvider, formulas *formula.Engine, guids *entity.Allocator, sink Sink, log *zap.Logger) *Registry {
	policies := make(map[ContentType]RetirementPolicy, len(DefaultPolicies))
	for k, v := range DefaultPolicies {
		policies[k] = v
	}
	return &Registry{
		instances:  make(map[Key]*entry),
		policies:   policies,
		cellSize:   cellSize,
		factions:   factions,
		spells:     spells,
		formulas:   formulas,
		guids:      guids,
		sink:       sink,
		sweepEvery: time.Second,
		log:        log,
	}
}

// WithPolicy overrides the retirement policy for a content type (spec.md
// §4.2 "defaults; all overridable").
func (r *Registry) WithPolicy(ct ContentType, p RetirementPolicy) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[ct] = p
	return r
}

// WithPersist installs the raid-save hook.
func (r *Registry) WithPersist(fn PersistFunc) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist = fn
	return r
}

// Lookup returns the live instance for key, if any (spec.md §4.2
// "Lookups: if present, return handle").
func (r *Registry) Lookup(key Key) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.instances[key]
	if !ok {
		return nil, false
	}
	return e.instance, true
}

// Enter looks up key, spawning a new instance of the given content type if
// absent (spec.md §4.2 "if absent and caller has rights to create ...
// spawn a new instance, register, and return handle"). ctx governs the new
// instance's actor goroutine lifetime; it is ignored if key already exists.
func (r *Registry) Enter(ctx context.Context, key Key, content ContentType) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.instances[key]; ok {
		return e.instance
	}

	instCtx, cancel := context.WithCancel(ctx)
	in := New(key, r.cellSize, r.sink, r.factions, r.spells, r.formulas, r.guids)
	r.instances[key] = &entry{instance: in, content: content, cancel: cancel}
	go in.Run(instCtx)
	if r.log != nil {
		r.log.Info("zone instance spawned", zap.Int64("world_id", key.WorldID), zap.Int64("instance_id", key.InstanceID))
	}
	return in
}

// Run drives the retirement sweep (spec.md §4.2 "Retirement") until ctx is
// cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()

	// Snapshot under lock; IsEmpty is a blocking mailbox round-trip and must
	// never run while holding r.mu, or a slow instance stalls every other
	// registry caller.
	r.mu.Lock()
	type candidate struct {
		key      Key
		instance *Instance
		content  ContentType
	}
	snapshot := make([]candidate, 0, len(r.instances))
	for key, e := range r.instances {
		if r.policies[e.content].PersistUntilReset {
			continue // raids retire only via the weekly reset job, not this sweep
		}
		snapshot = append(snapshot, candidate{key: key, instance: e.instance, content: e.content})
	}
	r.mu.Unlock()

	empty := make(map[Key]bool, len(snapshot))
	for _, c := range snapshot {
		empty[c.key] = c.instance.IsEmpty()
	}

	r.mu.Lock()
	var toRetire []Key
	for _, c := range snapshot {
		e, ok := r.instances[c.key]
		if !ok {
			continue
		}
		if !empty[c.key] {
			e.emptyAt = time.Time{}
			continue
		}
		if e.emptyAt.IsZero() {
			e.emptyAt = now
		}
		if now.Sub(e.emptyAt) >= r.policies[e.content].EmptyTTL {
			toRetire = append(toRetire, c.key)
		}
	}
	r.mu.Unlock()

	for _, key := range toRetire {
		r.Retire(key)
	}
}

// Retire stops key's actor and removes it from the registry. Safe to call
// even if key has players; callers that want empty-TTL semantics should go
// through the sweep instead.
func (r *Registry) Retire(key Key) {
	r.mu.Lock()
	e, ok := r.instances[key]
	if ok {
		delete(r.instances, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.persist != nil {
		r.persist(key, e.instance)
	}
	e.cancel()
	if r.log != nil {
		r.log.Info("zone instance retired", zap.Int64("world_id", key.WorldID), zap.Int64("instance_id", key.InstanceID))
	}
}

// Count returns the number of live instances.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
