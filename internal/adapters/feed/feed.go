// Package feed defines the result-feed boundary: a source of already
// normalized match results. The core never parses markup; a scraper sits
// behind the same interface.
package feed

import (
	"context"

	"github.com/ledomar/sideout/internal/domain/model"
)

// Document is one normalized feed snapshot: the known team ids plus the
// observed match results.
type Document struct {
	Teams   []string
	Matches []model.MatchRecord
}

// Source produces normalized match results for ingestion.
type Source interface {
	// Fetch returns the current feed snapshot, honoring ctx for
	// cancellation.
	Fetch(ctx context.Context) (Document, error)
}
