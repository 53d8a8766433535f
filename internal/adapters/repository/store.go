// Package repository persists the match log, team ratings, and the replay
// checkpoint.
package repository

import (
	"context"
	"time"

	"github.com/ledomar/sideout/internal/domain/model"
)

// Store provides access to the three persisted collections the pipeline
// works with. Writes performed inside InTx commit together or not at all.
type Store interface {
	// InsertMatchIfAbsent appends a record to the match log keyed by its
	// match key. Inserting an existing key is a no-op, not an update;
	// the bool reports whether the record was newly inserted.
	InsertMatchIfAbsent(ctx context.Context, rec model.MatchRecord) (bool, error)

	// HasMatch reports whether a record with the key exists in the log.
	HasMatch(ctx context.Context, key string) (bool, error)

	// MatchesAfter returns log records strictly after the (date, key)
	// position in the canonical replay order: date ascending, ties broken
	// by match key string order.
	MatchesAfter(ctx context.Context, date time.Time, key string) ([]model.MatchRecord, error)

	// UnresolvedMatches returns records previously deferred for unknown
	// teams, in canonical order.
	UnresolvedMatches(ctx context.Context) ([]model.MatchRecord, error)

	// SetUnresolved flags or clears the deferred marker on the given keys.
	SetUnresolved(ctx context.Context, keys []string, unresolved bool) error

	// Team returns the team with the given id, or ErrTeamNotFound.
	Team(ctx context.Context, id string) (model.Team, error)

	// UpsertTeam writes a team's rating and cursor.
	UpsertTeam(ctx context.Context, team model.Team) error

	// Teams returns all registered teams ordered by rating descending.
	Teams(ctx context.Context) ([]model.Team, error)

	// Checkpoint returns the single global checkpoint, or ErrNoCheckpoint
	// before the first successful run.
	Checkpoint(ctx context.Context) (model.Checkpoint, error)

	// PutCheckpoint rewrites the global checkpoint.
	PutCheckpoint(ctx context.Context, cp model.Checkpoint) error

	// CountMatches and CountTeams expose store sizes for stats.
	CountMatches(ctx context.Context) (int64, error)
	CountTeams(ctx context.Context) (int64, error)

	// InTx runs fn against a transactional view of the store. fn returning
	// an error rolls back every write it made.
	InTx(ctx context.Context, fn func(Store) error) error
}
