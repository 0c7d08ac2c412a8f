// Package directory implements the WorldDirectory (spec.md §4.2
// "WorldDirectory", §3 "AuthSession"/"WorldSession"): the process-wide
// session/name index and the single GUID allocator. Grounded on
// internal/world/state.go's by_session/by_char_id/by_name map-keyed
// bookkeeping, generalized from single-goroutine direct access to a
// mutex-guarded struct since every Connection goroutine addresses it
// concurrently (spec.md §4 "Ownership": "WorldDirectory exclusively owns
// the session and name indices and the GUID counter").
package directory

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/zone"
)

// AuthSessionTTL bounds how long an AuthSession survives unredeemed
// (spec.md §3 "expires_at (TTL <= 1 h)"; §8 item 10 "accepted up to and
// including t0+3600, rejected at t0+3601").
const AuthSessionTTL = time.Hour

var (
	// ErrAuthSessionNotFound covers both a missing and an already-redeemed
	// session — the caller cannot distinguish them, matching spec.md's
	// "reject if expired or missing".
	ErrAuthSessionNotFound = errors.New("directory: auth session not found")
	ErrAuthSessionExpired  = errors.New("directory: auth session expired")
	ErrSessionKeyMismatch  = errors.New("directory: session key mismatch")
	ErrNameTaken           = errors.New("directory: character name already bound to another account")
	ErrNoSuchSession       = errors.New("directory: no world session for account")
)

// Phase is a WorldSession's position in spec.md §3's lifecycle column:
// selecting / loading / in_world.
type Phase uint8

const (
	PhaseSelecting Phase = iota
	PhaseLoading
	PhaseInWorld
)

// AuthSession is a verified account not yet bound to a character (spec.md
// §3 "AuthSession"). Redeemed exactly once by ClientHelloWorld.
type AuthSession struct {
	AccountID  int64
	SessionKey [16]byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

func (a *AuthSession) expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// WorldSession is an account bound to a live character (spec.md §3
// "WorldSession"). ConnRef is an opaque handle to the owning Connection —
// directory stays ignorant of the net package's concrete type, matching
// spec.md §2's dependency order (WorldDirectory precedes Connection).
type WorldSession struct {
	AccountID     int64
	CharacterID   int64
	CharacterName string
	ConnRef       any
	EntityGUID    entity.GUID
	Zone          zone.Key
	Phase         Phase
}

// Directory is the WorldDirectory: the session/name indices and GUID
// counter, all behind one mutex.
type Directory struct {
	mu sync.Mutex

	guids *entity.Allocator

	auth     map[int64]*AuthSession  // account_id -> AuthSession
	sessions map[int64]*WorldSession // account_id -> WorldSession
	byName   map[string]int64        // lower(character_name) -> account_id
}

// New constructs an empty Directory over guids, the process-wide GUID
// allocator (spec.md §9 "Global counters": single-owner, never partitioned
// across zones).
func New(guids *entity.Allocator) *Directory {
	return &Directory{
		guids:    guids,
		auth:     make(map[int64]*AuthSession),
		sessions: make(map[int64]*WorldSession),
		byName:   make(map[string]int64),
	}
}

// CreateAuthSession stores an auth session keyed by accountID, holding
// sessionKey for RedeemAuthSession to compare (spec.md diagram "auth session stored in-memory, TTL
// t_0+3600s"). Replaces any prior unredeemed session for the account.
func (d *Directory) CreateAuthSession(accountID int64, sessionKey [16]byte, now time.Time) *AuthSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &AuthSession{
		AccountID:  accountID,
		SessionKey: sessionKey,
		CreatedAt:  now,
		ExpiresAt:  now.Add(AuthSessionTTL),
	}
	d.auth[accountID] = s
	return s
}

// RedeemAuthSession looks up the auth session for accountID, compares
// sessionKey byte-for-byte, and — on success — deletes it (spec.md §4.1
// "Session bind & TTL": "On success: delete the auth session
// (single-use)"). A second redeem of the same account after the first
// success returns ErrAuthSessionNotFound, satisfying spec.md §8 item 10
// ("only the first succeeds").
func (d *Directory) RedeemAuthSession(accountID int64, sessionKey [16]byte, now time.Time) (*AuthSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.auth[accountID]
	if !ok {
		return nil, ErrAuthSessionNotFound
	}
	if s.expired(now) {
		delete(d.auth, accountID)
		return nil, ErrAuthSessionExpired
	}
	if s.SessionKey != sessionKey {
		return nil, ErrSessionKeyMismatch
	}
	delete(d.auth, accountID)
	return s, nil
}

// AllocateGUID draws the next GUID of kind from the single process-wide
// counter.
func (d *Directory) AllocateGUID(kind entity.Kind) entity.GUID {
	return d.guids.Allocate(kind)
}

// BindWorldSession registers ws under both indices (spec.md §3 invariant:
// "the name index maps lower(name) -> account_id and is kept coherent with
// WorldSession insert/remove"). Fails if the character name is already
// bound to a different account.
func (d *Directory) BindWorldSession(ws *WorldSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(ws.CharacterName)
	if existing, ok := d.byName[key]; ok && existing != ws.AccountID {
		return ErrNameTaken
	}
	d.sessions[ws.AccountID] = ws
	d.byName[key] = ws.AccountID
	return nil
}

// UnbindWorldSession removes an account's WorldSession and its name-index
// entry (disconnect, character switch, or logout).
func (d *Directory) UnbindWorldSession(accountID int64) (*WorldSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ws, ok := d.sessions[accountID]
	if !ok {
		return nil, false
	}
	delete(d.sessions, accountID)
	if d.byName[strings.ToLower(ws.CharacterName)] == accountID {
		delete(d.byName, strings.ToLower(ws.CharacterName))
	}
	return ws, true
}

// BySession returns the WorldSession bound to accountID.
func (d *Directory) BySession(accountID int64) (*WorldSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws, ok := d.sessions[accountID]
	return ws, ok
}

// ByName resolves a character name to its owning account_id in O(1)
// (spec.md §8 item 5 / scenario S5 "whisper routing").
func (d *Directory) ByName(name string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[strings.ToLower(name)]
	return id, ok
}

// SetPhase advances accountID's WorldSession to phase (spec.md §3
// "Session binding is monotonic"). The caller is responsible for only
// calling this with forward transitions.
func (d *Directory) SetPhase(accountID int64, phase Phase) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws, ok := d.sessions[accountID]
	if !ok {
		return ErrNoSuchSession
	}
	ws.Phase = phase
	return nil
}

// SetWorldPlacement records the spawned entity GUID and zone coordinate on
// an account's WorldSession and marks it in_world (spec.md §3 "A
// WorldSession's entity.guid matches the GUID stored in its zone's entity
// table whenever phase == in_world").
func (d *Directory) SetWorldPlacement(accountID int64, guid entity.GUID, key zone.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws, ok := d.sessions[accountID]
	if !ok {
		return ErrNoSuchSession
	}
	ws.EntityGUID = guid
	ws.Zone = key
	ws.Phase = PhaseInWorld
	return nil
}

// SessionCount returns the number of bound WorldSessions, for metrics/tests.
func (d *Directory) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// AuthSessionCount returns the number of unredeemed AuthSessions.
func (d *Directory) AuthSessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.auth)
}

// AllSessions returns a snapshot of every bound WorldSession, for the
// shutdown persistence sweep (SPEC_FULL.md's graceful-shutdown feature):
// flushing every in_world character to the character store needs a full
// enumeration that no per-account lookup gives it.
func (d *Directory) AllSessions() []*WorldSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*WorldSession, 0, len(d.sessions))
	for _, ws := range d.sessions {
		out = append(out, ws)
	}
	return out
}
