package characterstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wildcore/server/internal/net/srp6"
	"golang.org/x/crypto/bcrypt"
)

// AccountByEmail implements router.AccountStore, grounded on
// internal/persist/account_repo.go's Load, narrowed to the three fields the
// SRP6 handshake needs (spec.md §6 "account_by_email(email) -> (account_id,
// salt, verifier)?").
func (s *Store) AccountByEmail(ctx context.Context, email string) (accountID int64, salt []byte, verifier *big.Int, found bool, err error) {
	var verifierBytes []byte
	err = s.db.Pool.QueryRow(ctx,
		`SELECT id, salt, verifier FROM accounts WHERE email = $1 AND NOT banned`, email,
	).Scan(&accountID, &salt, &verifierBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, nil, false, nil
	}
	if err != nil {
		return 0, nil, nil, false, fmt.Errorf("characterstore: account lookup: %w", err)
	}
	return accountID, salt, new(big.Int).SetBytes(verifierBytes), true, nil
}

// RegisterAccount creates a new account, deriving both the SRP6 verifier the
// handshake checks against and a bcrypt hash of the raw password (spec.md §6
// account creation is out of the router's opcode surface — this is the
// operator-facing provisioning path, mirroring internal/persist/
// account_repo.go's AccountRepo.Create).
func (s *Store) RegisterAccount(ctx context.Context, email, password string) (int64, error) {
	v, err := srp6.ComputeVerifier(email, password)
	if err != nil {
		return 0, fmt.Errorf("characterstore: compute verifier: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("characterstore: hash password: %w", err)
	}

	var accountID int64
	err = s.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, salt, verifier, last_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		email, string(hash), v.Salt, v.Verifier.Bytes(), time.Now(),
	).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("characterstore: insert account: %w", err)
	}
	return accountID, nil
}

// SetAccessLevel grants/revokes the GM/debug command family gate (spec.md's
// Supplemented Features "GM/debug command opcode family ... gated on an
// account access-level flag").
func (s *Store) SetAccessLevel(ctx context.Context, accountID int64, level int16) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE accounts SET access_level = $2 WHERE id = $1`, accountID, level,
	)
	if err != nil {
		return fmt.Errorf("characterstore: set access level: %w", err)
	}
	return nil
}
