// Package router implements the PacketRouter (spec.md §2 diagram): it
// maps each opcode to a handler closure over Deps, the same dependency-
// injection shape internal/handler/context.go uses for its ~50-manager
// Deps struct, narrowed here to what this core's module map actually
// needs: the WorldDirectory, the ZoneInstanceRegistry, and the two
// external stores spec.md §6 names.
package router

import (
	"context"
	"math/big"
	"time"

	"github.com/wildcore/server/internal/directory"
	"github.com/wildcore/server/internal/entity"
	"github.com/wildcore/server/internal/zone"
)

// storeTimeout bounds a single external-store call from a Connection's
// read loop. Character store calls are the only blocking I/O on that
// goroutine; spec.md §7 "external store failures" puts retry/backoff in
// the store layer, so the router only needs to not hang forever.
const storeTimeout = 5 * time.Second

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// AccountStore resolves the SRP6 verifier for an account (spec.md §6
// "account_by_email(email) -> (account_id, salt, verifier)?").
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (accountID int64, salt []byte, verifier *big.Int, found bool, err error)
}

// CharacterSummary is one row of ServerCharacterList (spec.md §6
// "characters_for(account_id) -> [character]").
type CharacterSummary struct {
	CharacterID int64
	Name        string
	Level       int32
	Zone        zone.Key
}

// CharacterPayload is the client-supplied ClientCharacterCreate body.
type CharacterPayload struct {
	Name string
}

// CharacterSnapshot is a character's full persistable state (spec.md §6
// "save_character(character) (position, level, xp, currencies)"; xp and
// currencies are out of this core's scope per spec.md's non-goals around
// progression systems, so only what the zone actor needs to re-place the
// entity is carried here).
type CharacterSnapshot struct {
	CharacterID int64
	AccountID   int64
	Name        string
	Level       int32
	Health      int32
	MaxHealth   int32
	FactionID   int32
	Position    entity.Vec3
	Zone        zone.Key

	// AccessLevel gates the GM/debug command family (SPEC_FULL.md §4),
	// mirroring the teacher's AccountRow.AccessLevel.
	AccessLevel int16
}

// CharacterStore is the external Character Store (spec.md §6). Grounded
// on internal/persist/character_repo.go's shape, generalized from the
// teacher's bcrypt/name-keyed accounts to SRP6 email/verifier accounts and
// from the teacher's full item/skill character blob to the fields this
// core's zone actors actually round-trip.
type CharacterStore interface {
	CharactersFor(ctx context.Context, accountID int64) ([]CharacterSummary, error)
	CreateCharacter(ctx context.Context, accountID int64, payload CharacterPayload) (CharacterSummary, error)
	SaveCharacter(ctx context.Context, snap CharacterSnapshot) error
	DeleteCharacter(ctx context.Context, characterID int64) error
	LoadCharacter(ctx context.Context, characterID int64) (CharacterSnapshot, error)
}

// Deps bundles everything a handler closure needs, mirroring the
// teacher's internal/handler.Deps dependency-injection idiom.
type Deps struct {
	Directory  *directory.Directory
	Zones      *zone.Registry
	Accounts   AccountStore
	Characters CharacterStore

	// ClientBuild is the build number baked into DeriveAuthKey (spec.md
	// §4.1 "a fixed derivation from the client build number"); spec.md §6
	// pins build 16042.
	ClientBuild int32

	// DefaultZone and DefaultContent place a freshly selected character
	// (spec.md is silent on zone assignment policy; a single default
	// shard keeps this core's scope to the connection/actor machinery
	// rather than a zone-selection algorithm).
	DefaultZone    zone.Key
	DefaultContent zone.ContentType
}
