// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical day-granularity date encoding. Lexicographic
// order of encoded dates equals chronological order, which the replay order
// relies on.
const DateLayout = "2006-01-02"

// Team holds the current competitive strength of one league team.
type Team struct {
	ID         string    // stable external identifier
	Rating     float64   // current strength score
	Cursor     string    // match key of the last match folded into Rating, "" if none
	CursorDate time.Time // date of that match, zero if none
}

// MatchRecord is one completed best-of-five match between two teams.
// TeamA/TeamB preserve the home/away distinction, the rating formula does
// not privilege either side.
type MatchRecord struct {
	MatchKey string    // deterministic composite key, see BuildMatchKey
	Date     time.Time // day granularity
	TeamA    string
	TeamB    string
	SetsA    int
	SetsB    int
}

// Checkpoint marks the boundary up to and including which the ingestion
// pipeline has folded matches into team ratings. A single checkpoint exists
// per store.
type Checkpoint struct {
	LastMatchKey      string
	LastMatchDate     time.Time
	LastIngestionTime time.Time
}

// BuildMatchKey derives the deduplication key for a match from its natural
// identity. The key is stable across re-ingestions of the same feed and is
// never reassigned.
func BuildMatchKey(date time.Time, teamA, teamB string) string {
	return fmt.Sprintf("%s/%s/%s", date.Format(DateLayout), teamA, teamB)
}

// Key returns the record's match key, deriving it when unset.
func (m MatchRecord) Key() string {
	if m.MatchKey != "" {
		return m.MatchKey
	}
	return BuildMatchKey(m.Date, m.TeamA, m.TeamB)
}

// Winner returns the id of the side holding three sets, or "" for a record
// that is not a completed best-of-five result.
func (m MatchRecord) Winner() string {
	switch {
	case m.SetsA == 3 && m.SetsB != 3:
		return m.TeamA
	case m.SetsB == 3 && m.SetsA != 3:
		return m.TeamB
	default:
		return ""
	}
}

// Validate checks the identity fields required before a record may enter
// the match log. Score shape is validated by the rating engine at replay
// time, not here.
func (m MatchRecord) Validate() error {
	switch {
	case strings.TrimSpace(m.TeamA) == "":
		return fmt.Errorf("match %q: missing team_a", m.MatchKey)
	case strings.TrimSpace(m.TeamB) == "":
		return fmt.Errorf("match %q: missing team_b", m.MatchKey)
	case m.TeamA == m.TeamB:
		return fmt.Errorf("match %q: team playing itself", m.MatchKey)
	case m.Date.IsZero():
		return fmt.Errorf("match %q: missing date", m.MatchKey)
	}
	return nil
}

// Less reports whether a sorts strictly before b in the canonical replay
// order: by date, ties broken by match key string order. Both the store and
// the pipeline must agree on this order bit-for-bit.
func Less(a, b MatchRecord) bool {
	da, db := a.Date.Format(DateLayout), b.Date.Format(DateLayout)
	if da != db {
		return da < db
	}
	return a.Key() < b.Key()
}

// After reports whether the record sorts strictly after the (date, key)
// position, the shape stored in a checkpoint.
func (m MatchRecord) After(date time.Time, key string) bool {
	dm, dc := m.Date.Format(DateLayout), date.Format(DateLayout)
	if dm != dc {
		return dm > dc
	}
	return m.Key() > key
}
