// Package users provides the data model and idempotent upsert for
// author records (spec.md §3 "User").
package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/widesky/widesky-ingest/internal/database"
)

// User is the first-known handle plus the complete set of handles the
// directory currently advertises for a DID.
type User struct {
	DID             string
	FirstKnownAs    string
	AlsoKnownAsFull []string
}

// Store provides idempotent user upserts backed by PostgreSQL.
type Store struct {
	db *database.DB
}

// NewStore creates a user Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Exists reports whether a row already exists for did. Used by the
// persistence stage's user-enrichment sidecar to decide whether a
// directory lookup is even necessary — per spec.md §4.3, this check is
// per-request, not batched, to shift load from the directory onto the
// local database.
func (s *Store) Exists(ctx context.Context, did string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE did = $1)`, did,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("users: exists %q: %w", did, err)
	}
	return exists, nil
}

// UpsertBatch inserts or widens a batch of users, one statement per
// row in a pipelined pgx.Batch (mirroring internal/records.Store's
// per-row batching). The batch runs as one implicit transaction: if
// any row fails, none of the batch is written and the first failure
// is returned. On conflict, also_known_as_full is replaced only if the
// incoming list has strictly greater cardinality than the stored one
// (spec.md §3's monotonic-widening invariant); the first-known handle
// is never overwritten.
func (s *Store) UpsertBatch(ctx context.Context, batch []User) error {
	if len(batch) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, u := range batch {
		b.Queue(`
			INSERT INTO users (did, first_known_as, also_known_as_full)
			VALUES ($1, $2, $3)
			ON CONFLICT (did) DO UPDATE
				SET also_known_as_full = CASE
					WHEN cardinality(EXCLUDED.also_known_as_full) > cardinality(users.also_known_as_full)
					THEN EXCLUDED.also_known_as_full
					ELSE users.also_known_as_full
				END
		`, u.DID, u.FirstKnownAs, u.AlsoKnownAsFull)
	}

	br := s.db.Pool.SendBatch(ctx, b)
	defer br.Close()

	for i := 0; i < len(batch); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("users: batch exec %d/%d: %w", i+1, len(batch), err)
		}
	}
	return nil
}
