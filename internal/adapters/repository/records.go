package repository

import (
	"time"

	"github.com/ledomar/sideout/internal/domain/model"
)

// Row types mirror the logical schema. Dates are stored as YYYY-MM-DD text
// so that lexicographic order equals chronological order; timestamps as
// RFC3339Nano text.

type matchRow struct {
	MatchKey   string `gorm:"column:match_key;type:text;primaryKey"`
	Date       string `gorm:"column:date;type:text;not null;index"`
	TeamA      string `gorm:"column:team_a;type:text;not null"`
	TeamB      string `gorm:"column:team_b;type:text;not null"`
	SetsA      int    `gorm:"column:sets_a;not null"`
	SetsB      int    `gorm:"column:sets_b;not null"`
	Unresolved bool   `gorm:"column:unresolved;not null;default:false;index"`
}

func (matchRow) TableName() string {
	return "match_records"
}

type teamRow struct {
	ID         string  `gorm:"column:id;type:text;primaryKey"`
	Rating     float64 `gorm:"column:rating;not null"`
	Cursor     string  `gorm:"column:cursor;type:text;not null;default:''"`
	CursorDate string  `gorm:"column:cursor_date;type:text;not null;default:''"`
}

func (teamRow) TableName() string {
	return "teams"
}

// checkpointRow holds the single global checkpoint under a fixed id.
type checkpointRow struct {
	ID                int    `gorm:"column:id;primaryKey"`
	LastMatchKey      string `gorm:"column:last_match_key;type:text;not null;default:''"`
	LastMatchDate     string `gorm:"column:last_match_date;type:text;not null;default:''"`
	LastIngestionTime string `gorm:"column:last_ingestion_time;type:text;not null"`
}

func (checkpointRow) TableName() string {
	return "checkpoints"
}

const checkpointID = 1

func toMatchRow(rec model.MatchRecord) matchRow {
	return matchRow{
		MatchKey: rec.Key(),
		Date:     rec.Date.Format(model.DateLayout),
		TeamA:    rec.TeamA,
		TeamB:    rec.TeamB,
		SetsA:    rec.SetsA,
		SetsB:    rec.SetsB,
	}
}

func fromMatchRow(row matchRow) model.MatchRecord {
	return model.MatchRecord{
		MatchKey: row.MatchKey,
		Date:     parseDay(row.Date),
		TeamA:    row.TeamA,
		TeamB:    row.TeamB,
		SetsA:    row.SetsA,
		SetsB:    row.SetsB,
	}
}

func toTeamRow(team model.Team) teamRow {
	row := teamRow{
		ID:     team.ID,
		Rating: team.Rating,
		Cursor: team.Cursor,
	}
	if !team.CursorDate.IsZero() {
		row.CursorDate = team.CursorDate.Format(model.DateLayout)
	}
	return row
}

func fromTeamRow(row teamRow) model.Team {
	return model.Team{
		ID:         row.ID,
		Rating:     row.Rating,
		Cursor:     row.Cursor,
		CursorDate: parseDay(row.CursorDate),
	}
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
