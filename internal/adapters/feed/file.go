package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ledomar/sideout/internal/domain/model"
)

// wire shapes of the JSON feed document.
type fileDocument struct {
	Teams   []string    `json:"teams"`
	Matches []fileMatch `json:"matches"`
}

type fileMatch struct {
	Date  string `json:"date"` // YYYY-MM-DD
	TeamA string `json:"team_a"`
	TeamB string `json:"team_b"`
	SetsA int    `json:"sets_a"`
	SetsB int    `json:"sets_b"`
}

// FileSource reads a normalized feed document from a JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a feed source over the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads and decodes the feed document. Set scores are passed through
// as observed; the rating engine validates their shape at replay time.
func (s *FileSource) Fetch(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, fmt.Errorf("feed fetch cancelled: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("read feed %q: %w", s.path, err)
	}

	var raw fileDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode feed %q: %w", s.path, err)
	}

	doc := Document{Teams: raw.Teams}
	for i, m := range raw.Matches {
		date, err := time.Parse(model.DateLayout, m.Date)
		if err != nil {
			return Document{}, fmt.Errorf("feed %q: match %d: bad date %q: %w", s.path, i, m.Date, err)
		}
		rec := model.MatchRecord{
			Date:  date,
			TeamA: m.TeamA,
			TeamB: m.TeamB,
			SetsA: m.SetsA,
			SetsB: m.SetsB,
		}
		rec.MatchKey = rec.Key()
		doc.Matches = append(doc.Matches, rec)
	}
	return doc, nil
}
