// Package characterstore is the external Character Store (spec.md §6):
// Postgres-backed, via pgx/pgxpool like the teacher's internal/persist, with
// goose migrations. It is the SRP6-native replacement for the teacher's
// name/bcrypt account model — accounts are keyed by email and carry an SRP6
// salt/verifier pair instead of (or alongside) a password hash.
package characterstore

import (
	"github.com/wildcore/server/internal/persist"
	"go.uber.org/zap"
)

// Store implements both router.AccountStore and router.CharacterStore
// against a single Postgres pool.
type Store struct {
	db  *persist.DB
	log *zap.Logger
}

// New wraps an already-connected persist.DB (built with persist.NewDB,
// spec.md §6 reusing the teacher's pgxpool wiring rather than hand-rolling
// a second connection-pool setup for one more table family).
func New(db *persist.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}
