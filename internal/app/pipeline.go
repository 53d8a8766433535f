// Package pipeline implements the ingestion and checkpoint state machine:
// it merges freshly observed match records into the durable match log
// exactly once, replays the log's unprocessed tail through the rating
// engine, and advances the global checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledomar/sideout/internal/adapters/repository"
	"github.com/ledomar/sideout/internal/domain/model"
	"github.com/ledomar/sideout/internal/domain/rating"
	"github.com/ledomar/sideout/internal/domain/types"
	"github.com/ledomar/sideout/pkg/logger"
	"github.com/ledomar/sideout/pkg/metrics"
)

// defaultInitialRating is the strength score every team starts from.
const defaultInitialRating = 500.0

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithEngine sets a custom rating engine.
func WithEngine(engine *rating.Engine) Option {
	return func(p *Pipeline) {
		if engine != nil {
			p.engine = engine
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithInitialRating sets the rating assigned to newly registered teams.
func WithInitialRating(r float64) Option {
	return func(p *Pipeline) {
		if r > 0 {
			p.initialRating = r
		}
	}
}

// Pipeline owns one ingestion run at a time. Runs are serialized: a run
// completes fully (merge + replay + commit) before another may begin.
type Pipeline struct {
	mu sync.Mutex

	store         repository.Store
	engine        *rating.Engine
	log           logger.Logger
	initialRating float64
}

// New constructs a Pipeline over the given store.
func New(store repository.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		engine:        rating.New(),
		initialRating: defaultInitialRating,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get()
	}
	return p
}

// RunSummary reports what one ingestion run did.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Merged     int              `json:"merged"`     // new records inserted into the log
	Duplicates int              `json:"duplicates"` // re-ingested records discarded
	Applied    int              `json:"applied"`    // records folded into ratings
	Deferred   int              `json:"deferred"`   // records parked for unknown teams
	Retried    int              `json:"retried"`    // previously deferred records applied
	Checkpoint model.Checkpoint `json:"-"`
}

// EnsureTeams registers the given team ids at the initial rating. Already
// registered teams are left untouched. This is the Team Registry boundary:
// the pipeline itself never resolves display names.
func (p *Pipeline) EnsureTeams(ctx context.Context, ids []string) (int, error) {
	registered := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		_, err := p.store.Team(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrTeamNotFound) {
			return registered, fmt.Errorf("ensure team %q: %w", id, err)
		}
		if err := p.store.UpsertTeam(ctx, model.Team{ID: id, Rating: p.initialRating}); err != nil {
			return registered, fmt.Errorf("register team %q: %w", id, err)
		}
		p.log.Info(ctx, "registered team",
			logger.String("team", id),
			logger.Float64("rating", p.initialRating),
		)
		registered++
	}
	return registered, nil
}

// Run executes one full ingestion run over the batch: merge, replay,
// commit. Failing before the commit leaves previously committed state
// untouched; the next run re-derives the same replay deterministically.
func (p *Pipeline) Run(ctx context.Context, batch []model.MatchRecord) (RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	log := p.log.Named("run")

	log.Info(ctx, "ingestion run starting",
		logger.String("run_id", summary.RunID),
		logger.Int("batch", len(batch)),
	)

	if err := p.merge(ctx, batch, &summary); err != nil {
		metrics.RecordRunFailure()
		return summary, err
	}

	rep, err := p.replay(ctx, &summary)
	if err != nil {
		metrics.RecordRunFailure()
		return summary, err
	}

	if err := p.commit(ctx, rep, &summary); err != nil {
		metrics.RecordRunFailure()
		return summary, fmt.Errorf("commit: %w", err)
	}

	p.updateStoreGauges(ctx)
	metrics.RecordRunDuration(time.Since(start).Seconds())

	log.Info(ctx, "ingestion run committed",
		logger.String("run_id", summary.RunID),
		logger.Int("merged", summary.Merged),
		logger.Int("duplicates", summary.Duplicates),
		logger.Int("applied", summary.Applied),
		logger.Int("deferred", summary.Deferred),
		logger.Int("retried", summary.Retried),
		logger.String("checkpoint", summary.Checkpoint.LastMatchKey),
	)
	return summary, nil
}

// merge is phase A: insert each observed record keyed by its match key.
// Records whose key already exists are discarded, so re-ingesting the same
// feed twice is a no-op. Each insert is individually durable, which makes a
// partially merged batch safe to retry.
func (p *Pipeline) merge(ctx context.Context, batch []model.MatchRecord, summary *RunSummary) error {
	for _, rec := range batch {
		if err := rec.Validate(); err != nil {
			p.log.Warn(ctx, "discarding feed record with broken identity", logger.Error(err))
			continue
		}
		rec.MatchKey = rec.Key()

		inserted, err := p.store.InsertMatchIfAbsent(ctx, rec)
		if err != nil {
			return fmt.Errorf("merge %q: %w", rec.MatchKey, err)
		}
		if inserted {
			summary.Merged++
			metrics.RecordMatchMerged()
		} else {
			summary.Duplicates++
			metrics.RecordMatchDuplicate()
		}
	}
	return nil
}

// replayState accumulates the effects of phase B before the commit.
type replayState struct {
	teams       map[string]model.Team // run-local snapshot of touched teams
	dirty       map[string]bool
	deferKeys   []string // tail records parked for unknown teams
	resolveKeys []string // previously deferred records applied this run
	checkpoint  model.Checkpoint
}

// replay is phase B: re-attempt previously deferred records, then walk the
// log strictly after the stored checkpoint in (date, match key) order,
// folding each record into the run-local team snapshot. Nothing is
// persisted here.
func (p *Pipeline) replay(ctx context.Context, summary *RunSummary) (*replayState, error) {
	cp, err := p.store.Checkpoint(ctx)
	if err != nil && !errors.Is(err, repository.ErrNoCheckpoint) {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	rep := &replayState{
		teams:      make(map[string]model.Team),
		dirty:      make(map[string]bool),
		checkpoint: cp,
	}

	// Previously deferred records first. They sit at or before the
	// checkpoint and stay parked until both teams resolve.
	deferred, err := p.store.UnresolvedMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("read deferred records: %w", err)
	}
	for _, rec := range deferred {
		applied, err := p.apply(ctx, rep, rec)
		if err != nil {
			return nil, err
		}
		if applied {
			rep.resolveKeys = append(rep.resolveKeys, rec.Key())
			summary.Retried++
			summary.Applied++
			metrics.RecordMatchRetried()
			metrics.RecordMatchApplied()
		}
	}

	// The unprocessed tail in canonical order.
	tail, err := p.store.MatchesAfter(ctx, cp.LastMatchDate, cp.LastMatchKey)
	if err != nil {
		return nil, fmt.Errorf("read log tail: %w", err)
	}
	for _, rec := range tail {
		applied, err := p.apply(ctx, rep, rec)
		if err != nil {
			return nil, err
		}
		if applied {
			summary.Applied++
			metrics.RecordMatchApplied()
		} else {
			rep.deferKeys = append(rep.deferKeys, rec.Key())
			summary.Deferred++
			metrics.RecordMatchDeferred()
			p.log.Warn(ctx, "deferring match with unknown team",
				logger.String("match", rec.Key()),
				logger.String("team_a", rec.TeamA),
				logger.String("team_b", rec.TeamB),
			)
		}
		// The checkpoint advances over deferred records too: they stay
		// tracked by the unresolved flag, not by the checkpoint.
		rep.checkpoint.LastMatchKey = rec.Key()
		rep.checkpoint.LastMatchDate = rec.Date
	}

	return rep, nil
}

// apply folds one record into the run-local snapshot. It returns false when
// either team is unknown (the record is not yet actionable) and an error
// only for a malformed set score, which is fatal to the run.
func (p *Pipeline) apply(ctx context.Context, rep *replayState, rec model.MatchRecord) (bool, error) {
	teamA, okA, err := p.team(ctx, rep, rec.TeamA)
	if err != nil {
		return false, err
	}
	teamB, okB, err := p.team(ctx, rep, rec.TeamB)
	if err != nil {
		return false, err
	}
	if !okA || !okB {
		return false, nil
	}

	newA, newB, err := p.engine.Apply(teamA.Rating, teamB.Rating, rec.SetsA, rec.SetsB)
	if err != nil {
		metrics.RecordValidationError()
		return false, fmt.Errorf("match %q: %w", rec.Key(), err)
	}

	teamA.Rating, teamB.Rating = newA, newB
	teamA.Cursor, teamB.Cursor = rec.Key(), rec.Key()
	teamA.CursorDate, teamB.CursorDate = rec.Date, rec.Date

	rep.teams[teamA.ID] = teamA
	rep.teams[teamB.ID] = teamB
	rep.dirty[teamA.ID] = true
	rep.dirty[teamB.ID] = true
	return true, nil
}

// team resolves an id against the run-local snapshot, falling back to the
// store. An unknown team is not an error.
func (p *Pipeline) team(ctx context.Context, rep *replayState, id string) (model.Team, bool, error) {
	if t, ok := rep.teams[id]; ok {
		return t, true, nil
	}
	t, err := p.store.Team(ctx, id)
	if errors.Is(err, repository.ErrTeamNotFound) {
		return model.Team{}, false, nil
	}
	if err != nil {
		return model.Team{}, false, fmt.Errorf("resolve team %q: %w", id, err)
	}
	rep.teams[id] = t
	return t, true, nil
}

// commit persists every effect of the run in one transaction: dirty teams,
// deferred-flag changes, and the advanced checkpoint. The checkpoint is
// written last so it can never get ahead of team state.
func (p *Pipeline) commit(ctx context.Context, rep *replayState, summary *RunSummary) error {
	rep.checkpoint.LastIngestionTime = time.Now().UTC()

	err := p.store.InTx(ctx, func(tx repository.Store) error {
		ids := make([]string, 0, len(rep.dirty))
		for id := range rep.dirty {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := tx.UpsertTeam(ctx, rep.teams[id]); err != nil {
				return err
			}
		}
		if err := tx.SetUnresolved(ctx, rep.deferKeys, true); err != nil {
			return err
		}
		if err := tx.SetUnresolved(ctx, rep.resolveKeys, false); err != nil {
			return err
		}
		return tx.PutCheckpoint(ctx, rep.checkpoint)
	})
	if err != nil {
		return err
	}

	summary.Checkpoint = rep.checkpoint
	metrics.UpdateLastIngestionUnix(rep.checkpoint.LastIngestionTime.Unix())
	return nil
}

func (p *Pipeline) updateStoreGauges(ctx context.Context) {
	if n, err := p.store.CountTeams(ctx); err == nil {
		metrics.UpdateTeamsTotal(n)
	}
	if n, err := p.store.CountMatches(ctx); err == nil {
		metrics.UpdateMatchLogSize(n)
	}
}

// Standings returns the current league table, best rating first. n <= 0
// returns every team.
func (p *Pipeline) Standings(ctx context.Context, n int) ([]types.Standing, error) {
	teams, err := p.store.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("read standings: %w", err)
	}
	if n > 0 && n < len(teams) {
		teams = teams[:n]
	}
	rows := make([]types.Standing, len(teams))
	for i, t := range teams {
		rows[i] = types.Standing{
			Rank:         i + 1,
			TeamID:       t.ID,
			Rating:       t.Rating,
			LastMatchKey: t.Cursor,
		}
	}
	return rows, nil
}

// GetStats returns store counters for monitoring.
func (p *Pipeline) GetStats() map[string]interface{} {
	ctx := context.Background()
	stats := map[string]interface{}{}

	if n, err := p.store.CountTeams(ctx); err == nil {
		stats["teams"] = n
	}
	if n, err := p.store.CountMatches(ctx); err == nil {
		stats["matches"] = n
	}
	if cp, err := p.store.Checkpoint(ctx); err == nil {
		stats["checkpoint_key"] = cp.LastMatchKey
		stats["checkpoint_date"] = cp.LastMatchDate.Format(model.DateLayout)
		stats["last_ingestion"] = cp.LastIngestionTime.Format(time.RFC3339)
	}
	return stats
}
