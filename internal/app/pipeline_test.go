package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/ledomar/sideout/internal/adapters/repository"
	pipeline "github.com/ledomar/sideout/internal/app"
	model "github.com/ledomar/sideout/internal/domain/model"
	rating "github.com/ledomar/sideout/internal/domain/rating"
	"github.com/ledomar/sideout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	store, err := repository.Open(filepath.Join(t.TempDir(), "ladder.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newPipeline(t *testing.T, store *repository.SQLStore) *pipeline.Pipeline {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return pipeline.New(store, pipeline.WithInitialRating(500))
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func match(t *testing.T, date, teamA, teamB string, setsA, setsB int) model.MatchRecord {
	t.Helper()
	return model.MatchRecord{
		Date:  day(t, date),
		TeamA: teamA,
		TeamB: teamB,
		SetsA: setsA,
		SetsB: setsB,
	}
}

func teamRating(t *testing.T, store *repository.SQLStore, id string) float64 {
	t.Helper()
	team, err := store.Team(context.Background(), id)
	if err != nil {
		t.Fatalf("lookup %q: %v", id, err)
	}
	return team.Rating
}

func TestPipeline_MergeAndReplay(t *testing.T) {
	Convey("Given a pipeline with two registered teams", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)

		registered, err := p.EnsureTeams(ctx, []string{"alpha", "beta"})
		So(err, ShouldBeNil)
		So(registered, ShouldEqual, 2)

		Convey("When A beats B 3-0", func() {
			summary, err := p.Run(ctx, []model.MatchRecord{
				match(t, "2025-10-03", "alpha", "beta", 3, 0),
			})

			Convey("Then the transfer lands on both teams", func() {
				So(err, ShouldBeNil)
				So(summary.Merged, ShouldEqual, 1)
				So(summary.Applied, ShouldEqual, 1)
				So(teamRating(t, store, "alpha"), ShouldAlmostEqual, 512.5, 1e-9)
				So(teamRating(t, store, "beta"), ShouldAlmostEqual, 487.5, 1e-9)
			})

			Convey("And both cursors point at the match", func() {
				So(err, ShouldBeNil)
				team, err := store.Team(ctx, "alpha")
				So(err, ShouldBeNil)
				So(team.Cursor, ShouldEqual, "2025-10-03/alpha/beta")
			})

			Convey("And the checkpoint records the boundary", func() {
				So(err, ShouldBeNil)
				cp, err := store.Checkpoint(ctx)
				So(err, ShouldBeNil)
				So(cp.LastMatchKey, ShouldEqual, "2025-10-03/alpha/beta")
				So(cp.LastIngestionTime.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the same record is ingested in a second batch", func() {
			rec := match(t, "2025-10-03", "alpha", "beta", 3, 0)

			first, err := p.Run(ctx, []model.MatchRecord{rec})
			So(err, ShouldBeNil)
			afterFirstA := teamRating(t, store, "alpha")
			afterFirstB := teamRating(t, store, "beta")

			second, err := p.Run(ctx, []model.MatchRecord{rec})

			Convey("Then the second run is a no-op on ratings", func() {
				So(err, ShouldBeNil)
				So(first.Merged, ShouldEqual, 1)
				So(second.Merged, ShouldEqual, 0)
				So(second.Duplicates, ShouldEqual, 1)
				So(second.Applied, ShouldEqual, 0)
				So(teamRating(t, store, "alpha"), ShouldEqual, afterFirstA)
				So(teamRating(t, store, "beta"), ShouldEqual, afterFirstB)
			})
		})

		Convey("When records arrive out of chronological order in one batch", func() {
			_, err := p.Run(ctx, []model.MatchRecord{
				match(t, "2025-10-05", "alpha", "beta", 0, 3),
				match(t, "2025-10-03", "alpha", "beta", 3, 0),
			})

			Convey("Then replay follows (date, match key) order, not batch order", func() {
				So(err, ShouldBeNil)
				// The 10-03 win is applied first from even ratings, the
				// 10-05 loss second from the shifted ones; the final state
				// must equal that exact fold.
				engine := rating.New()
				a1, b1, err := engine.Apply(500, 500, 3, 0)
				So(err, ShouldBeNil)
				a2, b2, err := engine.Apply(a1, b1, 0, 3)
				So(err, ShouldBeNil)
				So(teamRating(t, store, "alpha"), ShouldAlmostEqual, a2, 1e-9)
				So(teamRating(t, store, "beta"), ShouldAlmostEqual, b2, 1e-9)
			})
		})
	})
}

func TestPipeline_ReplayDeterminismAcrossRuns(t *testing.T) {
	Convey("Given the same match log ingested in one run and split across two", t, func() {
		ctx := context.Background()
		recs := []model.MatchRecord{
			match(t, "2025-10-03", "alpha", "beta", 3, 1),
			match(t, "2025-10-04", "beta", "gamma", 3, 2),
			match(t, "2025-10-05", "gamma", "alpha", 0, 3),
		}

		oneStore := newStore(t)
		one := newPipeline(t, oneStore)
		_, err := one.EnsureTeams(ctx, []string{"alpha", "beta", "gamma"})
		So(err, ShouldBeNil)
		_, err = one.Run(ctx, recs)
		So(err, ShouldBeNil)

		splitStore := newStore(t)
		split := newPipeline(t, splitStore)
		_, err = split.EnsureTeams(ctx, []string{"alpha", "beta", "gamma"})
		So(err, ShouldBeNil)
		_, err = split.Run(ctx, recs[:1])
		So(err, ShouldBeNil)
		_, err = split.Run(ctx, recs[1:])
		So(err, ShouldBeNil)

		Convey("Then final ratings are identical", func() {
			for _, id := range []string{"alpha", "beta", "gamma"} {
				So(teamRating(t, splitStore, id), ShouldAlmostEqual, teamRating(t, oneStore, id), 1e-9)
			}
		})
	})
}

func TestPipeline_CheckpointMonotonicity(t *testing.T) {
	Convey("Given a pipeline that has committed a run", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)
		_, err := p.EnsureTeams(ctx, []string{"alpha", "beta"})
		So(err, ShouldBeNil)

		_, err = p.Run(ctx, []model.MatchRecord{
			match(t, "2025-10-04", "alpha", "beta", 3, 0),
		})
		So(err, ShouldBeNil)
		cp1, err := store.Checkpoint(ctx)
		So(err, ShouldBeNil)

		Convey("When a run has nothing new to replay", func() {
			_, err := p.Run(ctx, nil)
			So(err, ShouldBeNil)
			cp2, err := store.Checkpoint(ctx)
			So(err, ShouldBeNil)

			Convey("Then the boundary stays put and only the run stamp moves", func() {
				So(cp2.LastMatchKey, ShouldEqual, cp1.LastMatchKey)
				So(cp2.LastMatchDate.Equal(cp1.LastMatchDate), ShouldBeTrue)
				So(cp2.LastIngestionTime.Before(cp1.LastIngestionTime), ShouldBeFalse)
			})
		})

		Convey("When a later match arrives", func() {
			_, err := p.Run(ctx, []model.MatchRecord{
				match(t, "2025-10-06", "beta", "alpha", 3, 2),
			})
			So(err, ShouldBeNil)
			cp2, err := store.Checkpoint(ctx)
			So(err, ShouldBeNil)

			Convey("Then the boundary moves forward", func() {
				So(cp2.LastMatchDate.After(cp1.LastMatchDate), ShouldBeTrue)
				So(cp2.LastMatchKey, ShouldEqual, "2025-10-06/beta/alpha")
			})
		})
	})
}

func TestPipeline_UnknownTeamDeferral(t *testing.T) {
	Convey("Given a match referencing an unregistered team", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)
		_, err := p.EnsureTeams(ctx, []string{"alpha"})
		So(err, ShouldBeNil)

		summary, err := p.Run(ctx, []model.MatchRecord{
			match(t, "2025-10-03", "alpha", "ghost", 3, 0),
		})

		Convey("Then the record is deferred, not fatal", func() {
			So(err, ShouldBeNil)
			So(summary.Deferred, ShouldEqual, 1)
			So(summary.Applied, ShouldEqual, 0)
			So(teamRating(t, store, "alpha"), ShouldEqual, 500.0)
		})

		Convey("And the checkpoint still advances past it", func() {
			So(err, ShouldBeNil)
			cp, err := store.Checkpoint(ctx)
			So(err, ShouldBeNil)
			So(cp.LastMatchKey, ShouldEqual, "2025-10-03/alpha/ghost")
		})

		Convey("When the team is registered later", func() {
			So(err, ShouldBeNil)
			_, err := p.EnsureTeams(ctx, []string{"ghost"})
			So(err, ShouldBeNil)

			retry, err := p.Run(ctx, nil)

			Convey("Then the deferred record is applied on the next run", func() {
				So(err, ShouldBeNil)
				So(retry.Retried, ShouldEqual, 1)
				So(retry.Applied, ShouldEqual, 1)
				So(teamRating(t, store, "alpha"), ShouldAlmostEqual, 512.5, 1e-9)
				So(teamRating(t, store, "ghost"), ShouldAlmostEqual, 487.5, 1e-9)

				deferred, err := store.UnresolvedMatches(ctx)
				So(err, ShouldBeNil)
				So(len(deferred), ShouldEqual, 0)
			})

			Convey("And a further empty run does not re-apply it", func() {
				So(err, ShouldBeNil)
				again, err := p.Run(ctx, nil)
				So(err, ShouldBeNil)
				So(again.Applied, ShouldEqual, 0)
				So(teamRating(t, store, "alpha"), ShouldAlmostEqual, 512.5, 1e-9)
			})
		})
	})
}

func TestPipeline_MalformedScoreIsFatal(t *testing.T) {
	Convey("Given a merged record with an impossible set score", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)
		_, err := p.EnsureTeams(ctx, []string{"alpha", "beta"})
		So(err, ShouldBeNil)

		_, err = p.Run(ctx, []model.MatchRecord{
			match(t, "2025-10-03", "alpha", "beta", 3, 3),
		})

		Convey("Then the run fails with a validation error", func() {
			So(errors.Is(err, rating.ErrInvalidScore), ShouldBeTrue)
		})

		Convey("And nothing was committed", func() {
			So(teamRating(t, store, "alpha"), ShouldEqual, 500.0)
			So(teamRating(t, store, "beta"), ShouldEqual, 500.0)
			_, cpErr := store.Checkpoint(ctx)
			So(errors.Is(cpErr, repository.ErrNoCheckpoint), ShouldBeTrue)
		})
	})
}

func TestPipeline_EnsureTeamsIsIdempotent(t *testing.T) {
	Convey("Given a team whose rating has moved", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)
		_, err := p.EnsureTeams(ctx, []string{"alpha", "beta"})
		So(err, ShouldBeNil)

		_, err = p.Run(ctx, []model.MatchRecord{
			match(t, "2025-10-03", "alpha", "beta", 3, 0),
		})
		So(err, ShouldBeNil)

		Convey("When the team registry is replayed", func() {
			registered, err := p.EnsureTeams(ctx, []string{"alpha", "beta"})

			Convey("Then existing ratings are untouched", func() {
				So(err, ShouldBeNil)
				So(registered, ShouldEqual, 0)
				So(teamRating(t, store, "alpha"), ShouldAlmostEqual, 512.5, 1e-9)
			})
		})
	})
}

func TestPipeline_Standings(t *testing.T) {
	Convey("Given three teams with played matches", t, func() {
		ctx := context.Background()
		store := newStore(t)
		p := newPipeline(t, store)
		_, err := p.EnsureTeams(ctx, []string{"alpha", "beta", "gamma"})
		So(err, ShouldBeNil)

		_, err = p.Run(ctx, []model.MatchRecord{
			match(t, "2025-10-03", "alpha", "beta", 3, 0),
			match(t, "2025-10-04", "alpha", "gamma", 3, 1),
		})
		So(err, ShouldBeNil)

		Convey("When the standings are read", func() {
			rows, err := p.Standings(ctx, 0)

			Convey("Then teams come best rating first with dense ranks", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 3)
				So(rows[0].TeamID, ShouldEqual, "alpha")
				So(rows[0].Rank, ShouldEqual, 1)
				So(rows[1].Rank, ShouldEqual, 2)
				So(rows[0].Rating, ShouldBeGreaterThan, rows[1].Rating)
			})
		})

		Convey("When a limit is applied", func() {
			rows, err := p.Standings(ctx, 1)

			Convey("Then only the leader is returned", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].TeamID, ShouldEqual, "alpha")
			})
		})
	})
}
