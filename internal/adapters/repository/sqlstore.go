package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ledomar/sideout/internal/domain/model"
)

// SQLStore implements Store on sqlite through gorm. A single writer is
// assumed; run-level atomicity comes from InTx.
type SQLStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLStore, error) {
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: gormlogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.AutoMigrate(&matchRow{}, &teamRow{}, &checkpointRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an already opened and migrated gorm handle.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func gormlogger() logger.Interface {
	// gorm's own logging is noisy; the application logs at the pipeline
	// level instead.
	return logger.Default.LogMode(logger.Silent)
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// InsertMatchIfAbsent appends a record to the match log, ignoring
// conflicts on the primary key.
func (s *SQLStore) InsertMatchIfAbsent(ctx context.Context, rec model.MatchRecord) (bool, error) {
	row := toMatchRow(rec)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert match %q: %w", row.MatchKey, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasMatch reports whether a record with the key exists.
func (s *SQLStore) HasMatch(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&matchRow{}).
		Where("match_key = ?", key).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup match %q: %w", key, err)
	}
	return n > 0, nil
}

// MatchesAfter returns records strictly after (date, key) ordered by
// (date, match_key). A zero date with an empty key returns the whole log.
func (s *SQLStore) MatchesAfter(ctx context.Context, date time.Time, key string) ([]model.MatchRecord, error) {
	day := ""
	if !date.IsZero() {
		day = date.Format(model.DateLayout)
	}
	var rows []matchRow
	if err := s.db.WithContext(ctx).
		Where("date > ? OR (date = ? AND match_key > ?)", day, day, key).
		Order("date asc, match_key asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan match log: %w", err)
	}
	recs := make([]model.MatchRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, fromMatchRow(row))
	}
	return recs, nil
}

// UnresolvedMatches returns deferred records in canonical order.
func (s *SQLStore) UnresolvedMatches(ctx context.Context) ([]model.MatchRecord, error) {
	var rows []matchRow
	if err := s.db.WithContext(ctx).
		Where("unresolved = ?", true).
		Order("date asc, match_key asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan unresolved matches: %w", err)
	}
	recs := make([]model.MatchRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, fromMatchRow(row))
	}
	return recs, nil
}

// SetUnresolved flags or clears the deferred marker on the given keys.
func (s *SQLStore) SetUnresolved(ctx context.Context, keys []string, unresolved bool) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Model(&matchRow{}).
		Where("match_key IN ?", keys).
		Update("unresolved", unresolved).Error; err != nil {
		return fmt.Errorf("flag unresolved matches: %w", err)
	}
	return nil
}

// Team returns the team with the given id.
func (s *SQLStore) Team(ctx context.Context, id string) (model.Team, error) {
	var row teamRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Team{}, fmt.Errorf("team %q: %w", id, ErrTeamNotFound)
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("lookup team %q: %w", id, err)
	}
	return fromTeamRow(row), nil
}

// UpsertTeam writes a team's rating and cursor, creating the row if absent.
func (s *SQLStore) UpsertTeam(ctx context.Context, team model.Team) error {
	row := toTeamRow(team)
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "cursor", "cursor_date"}),
		}).
		Create(&row).Error; err != nil {
		return fmt.Errorf("upsert team %q: %w", team.ID, err)
	}
	return nil
}

// Teams returns all teams ordered by rating descending, ties broken by id
// for a stable standings order.
func (s *SQLStore) Teams(ctx context.Context) ([]model.Team, error) {
	var rows []teamRow
	if err := s.db.WithContext(ctx).
		Order("rating desc, id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan teams: %w", err)
	}
	teams := make([]model.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, fromTeamRow(row))
	}
	return teams, nil
}

// Checkpoint returns the global checkpoint.
func (s *SQLStore) Checkpoint(ctx context.Context) (model.Checkpoint, error) {
	var row checkpointRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", checkpointID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	cp := model.Checkpoint{
		LastMatchKey:  row.LastMatchKey,
		LastMatchDate: parseDay(row.LastMatchDate),
	}
	if row.LastIngestionTime != "" {
		if ts, err := time.Parse(time.RFC3339Nano, row.LastIngestionTime); err == nil {
			cp.LastIngestionTime = ts
		}
	}
	return cp, nil
}

// PutCheckpoint rewrites the global checkpoint row.
func (s *SQLStore) PutCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	row := checkpointRow{
		ID:                checkpointID,
		LastMatchKey:      cp.LastMatchKey,
		LastIngestionTime: cp.LastIngestionTime.UTC().Format(time.RFC3339Nano),
	}
	if !cp.LastMatchDate.IsZero() {
		row.LastMatchDate = cp.LastMatchDate.Format(model.DateLayout)
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_match_key", "last_match_date", "last_ingestion_time"}),
		}).
		Create(&row).Error; err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// CountMatches returns the match log size.
func (s *SQLStore) CountMatches(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&matchRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// CountTeams returns the number of registered teams.
func (s *SQLStore) CountTeams(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&teamRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count teams: %w", err)
	}
	return n, nil
}

// InTx runs fn against a transactional store view. All writes commit
// together; any error rolls every one of them back.
func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLStore{db: tx})
	})
}
