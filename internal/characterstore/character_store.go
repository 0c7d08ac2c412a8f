package characterstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wildcore/server/internal/router"
	"github.com/wildcore/server/internal/wserr"
	"github.com/wildcore/server/internal/zone"
)

const (
	defaultLevel     = 1
	defaultHealth    = 100
	defaultMaxHealth = 100
	defaultFactionID = 1
)

// CharactersFor implements router.CharacterStore, grounded on
// internal/persist/character_repo.go's LoadByAccount.
func (s *Store) CharactersFor(ctx context.Context, accountID int64) ([]router.CharacterSummary, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, name, level, world_id, instance_id
		 FROM characters WHERE account_id = $1 AND deleted_at IS NULL ORDER BY id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("characterstore: characters_for: %w", err)
	}
	defer rows.Close()

	var out []router.CharacterSummary
	for rows.Next() {
		var c router.CharacterSummary
		var worldID, instanceID int64
		if err := rows.Scan(&c.CharacterID, &c.Name, &c.Level, &worldID, &instanceID); err != nil {
			return nil, fmt.Errorf("characterstore: scan character: %w", err)
		}
		c.Zone = zone.Key{WorldID: worldID, InstanceID: instanceID}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCharacter implements router.CharacterStore, grounded on
// internal/persist/character_repo.go's Create, narrowed to the fields this
// core persists (spec.md's non-goals exclude progression/itemization, so no
// stats/inventory rows are seeded here).
func (s *Store) CreateCharacter(ctx context.Context, accountID int64, payload router.CharacterPayload) (router.CharacterSummary, error) {
	var characterID int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (account_id, name, level, health, max_health, faction_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		accountID, payload.Name, defaultLevel, defaultHealth, defaultMaxHealth, defaultFactionID,
	).Scan(&characterID)
	if err != nil {
		return router.CharacterSummary{}, fmt.Errorf("characterstore: create_character: %w", err)
	}
	return router.CharacterSummary{
		CharacterID: characterID,
		Name:        payload.Name,
		Level:       defaultLevel,
	}, nil
}

// SaveCharacter implements router.CharacterStore, grounded on
// internal/persist/character_repo.go's SaveCharacter.
func (s *Store) SaveCharacter(ctx context.Context, snap router.CharacterSnapshot) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE characters SET
			level = $1, health = $2, max_health = $3, faction_id = $4,
			pos_x = $5, pos_y = $6, pos_z = $7,
			world_id = $8, instance_id = $9, access_level = $10
		 WHERE id = $11`,
		snap.Level, snap.Health, snap.MaxHealth, snap.FactionID,
		snap.Position.X, snap.Position.Y, snap.Position.Z,
		snap.Zone.WorldID, snap.Zone.InstanceID, snap.AccessLevel,
		snap.CharacterID,
	)
	if err != nil {
		return fmt.Errorf("characterstore: save_character: %w", err)
	}
	return nil
}

// DeleteCharacter implements router.CharacterStore as a soft delete,
// grounded on internal/persist/character_repo.go's SoftDelete (the teacher's
// 7-day undelete grace is a CharacterConfig policy this core has no
// equivalent surface for yet, so deletion here is immediate).
func (s *Store) DeleteCharacter(ctx context.Context, characterID int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE characters SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		characterID,
	)
	if err != nil {
		return fmt.Errorf("characterstore: delete_character: %w", err)
	}
	return nil
}

// LoadCharacter implements router.CharacterStore, grounded on
// internal/persist/character_repo.go's LoadByName (keyed here by id, since
// spec.md §6's select flow carries a character_id, not a name).
func (s *Store) LoadCharacter(ctx context.Context, characterID int64) (router.CharacterSnapshot, error) {
	var snap router.CharacterSnapshot
	var worldID, instanceID int64
	err := s.db.Pool.QueryRow(ctx,
		`SELECT c.id, c.account_id, c.name, c.level, c.health, c.max_health, c.faction_id,
		        c.pos_x, c.pos_y, c.pos_z, c.world_id, c.instance_id, c.access_level
		 FROM characters c
		 WHERE c.id = $1 AND c.deleted_at IS NULL`,
		characterID,
	).Scan(
		&snap.CharacterID, &snap.AccountID, &snap.Name, &snap.Level, &snap.Health, &snap.MaxHealth, &snap.FactionID,
		&snap.Position.X, &snap.Position.Y, &snap.Position.Z, &worldID, &instanceID, &snap.AccessLevel,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return router.CharacterSnapshot{}, fmt.Errorf("characterstore: load_character: %w", wserr.ErrCharacterNotFound)
	}
	if err != nil {
		return router.CharacterSnapshot{}, fmt.Errorf("characterstore: load_character: %w", err)
	}
	snap.Zone = zone.Key{WorldID: worldID, InstanceID: instanceID}
	return snap, nil
}
