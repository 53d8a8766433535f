// feedgen generates a synthetic normalized result feed for local runs and
// ingestion load checks.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ledomar/sideout/internal/domain/model"
)

// Default generation constants.
const (
	defaultTeams      = 8
	defaultMatches    = 100
	defaultStart      = "2025-01-01"
	defaultOutput     = "feed.json"
	matchesPerDay     = 4
	defaultRandomSeed = 42
)

type feedMatch struct {
	Date  string `json:"date"`
	TeamA string `json:"team_a"`
	TeamB string `json:"team_b"`
	SetsA int    `json:"sets_a"`
	SetsB int    `json:"sets_b"`
}

type feedDocument struct {
	Teams   []string    `json:"teams"`
	Matches []feedMatch `json:"matches"`
}

// loserSets are the possible set counts for the losing side.
var loserSets = []int{0, 1, 2}

func main() {
	var (
		numTeams   = flag.Int("teams", defaultTeams, "Number of teams to generate")
		numMatches = flag.Int("matches", defaultMatches, "Number of match results to generate")
		start      = flag.String("start", defaultStart, "Date of the first match day (YYYY-MM-DD)")
		output     = flag.String("output", defaultOutput, "Output file for the feed document")
		seed       = flag.Int64("seed", defaultRandomSeed, "Random seed (deterministic output for a fixed seed)")
	)
	flag.Parse()

	if *numTeams < 2 {
		os.Stderr.WriteString("need at least two teams\n")
		os.Exit(1)
	}
	startDay, err := time.Parse(model.DateLayout, *start)
	if err != nil {
		os.Stderr.WriteString("bad start date: " + err.Error() + "\n")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // deterministic seed for reproducible feeds

	doc := generate(rng, *numTeams, *numMatches, startDay)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		os.Stderr.WriteString("encode feed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil { //nolint:gosec // local tooling output
		os.Stderr.WriteString("write feed: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("wrote %d teams and %d matches to %s\n", len(doc.Teams), len(doc.Matches), *output)
}

// generate builds a feed with unique team ids and valid best-of-five
// results spread over consecutive match days. Pairings are drawn at random
// but never pair a team with itself, and no (day, pairing) repeats, so
// every generated match key is unique.
func generate(rng *rand.Rand, numTeams, numMatches int, startDay time.Time) feedDocument {
	teams := make([]string, numTeams)
	for i := range teams {
		teams[i] = "team-" + uuid.New().String()[:8]
	}

	doc := feedDocument{Teams: teams}
	seen := make(map[string]bool)

	day := startDay
	onThisDay := 0
	for len(doc.Matches) < numMatches {
		if onThisDay == matchesPerDay {
			day = day.AddDate(0, 0, 1)
			onThisDay = 0
		}

		a := rng.Intn(numTeams)
		b := rng.Intn(numTeams)
		if a == b {
			continue
		}
		key := model.BuildMatchKey(day, teams[a], teams[b])
		if seen[key] {
			day = day.AddDate(0, 0, 1)
			onThisDay = 0
			continue
		}
		seen[key] = true

		setsA, setsB := 3, loserSets[rng.Intn(len(loserSets))]
		if rng.Intn(2) == 0 {
			setsA, setsB = setsB, setsA
		}

		doc.Matches = append(doc.Matches, feedMatch{
			Date:  day.Format(model.DateLayout),
			TeamA: teams[a],
			TeamB: teams[b],
			SetsA: setsA,
			SetsB: setsB,
		})
		onThisDay++
	}
	return doc
}
