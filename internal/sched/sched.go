// Package sched runs analysis jobs on a fixed pool of workers, each owning
// one engine process. Jobs dedup on identity: submitting work that is
// already queued or running returns a handle to the live job instead of a
// new one.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chessmirror/chessmirror/internal/cache"
	"github.com/chessmirror/chessmirror/internal/classify"
	"github.com/chessmirror/chessmirror/internal/engine"
	"github.com/chessmirror/chessmirror/internal/game"
	"github.com/chessmirror/chessmirror/internal/gamestore"
	"github.com/chessmirror/chessmirror/internal/metrics"
	"github.com/chessmirror/chessmirror/internal/progress"
	"github.com/chessmirror/chessmirror/internal/traits"
)

var (
	// ErrInvalidRequest means the submission is missing its owner.
	ErrInvalidRequest = errors.New("sched: user and platform are required")

	// ErrEmptyTarget means the submission names no games.
	ErrEmptyTarget = errors.New("sched: no games targeted")

	// ErrBatchTooLarge means an explicit batch exceeds the configured cap.
	ErrBatchTooLarge = errors.New("sched: batch exceeds configured cap")

	// ErrOwnerBusy means a job with a different target is already live for
	// this owner and kind. Progress is tracked per owner and kind, so a
	// second concurrent job would have nowhere to report.
	ErrOwnerBusy = errors.New("sched: another job is already live for this owner and kind")
)

// Config holds scheduler tuning.
type Config struct {
	Workers       int
	BatchCap      int
	EngineDepth   int
	EngineRetries int
	RetryBackoff  time.Duration
	ResultTTL     time.Duration
}

// Deps are the collaborators the scheduler drives.
type Deps struct {
	Store      gamestore.Store
	Cache      *cache.Cache
	Tracker    *progress.Tracker
	Engines    engine.Factory
	Classifier *classify.Classifier
	Scorer     *traits.Scorer
	Archive    *gamestore.Archive // optional
	Log        zerolog.Logger
}

// Scheduler accepts analysis requests and executes them with bounded
// concurrency.
type Scheduler struct {
	cfg Config
	d   Deps
	log zerolog.Logger

	queue *jobQueue

	// jobs holds at most one live job per (user, platform, kind), matching
	// the progress tracker's entry granularity.
	mu   sync.Mutex
	jobs map[progress.Identity]*Job
}

// New creates a scheduler. Call Run to start its workers.
func New(cfg Config, d Deps) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.EngineRetries < 1 {
		cfg.EngineRetries = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &Scheduler{
		cfg:   cfg,
		d:     d,
		log:   d.Log,
		queue: newJobQueue(),
		jobs:  make(map[progress.Identity]*Job),
	}
}

func progressID(r Request) progress.Identity {
	return progress.Identity{User: r.User, Platform: r.Platform, Kind: r.Kind}
}

// Submit validates and enqueues a request. A request whose identity matches
// a live job returns the live job's handle with Coalesced set; no duplicate
// work is scheduled. A request for the same owner and kind but a different
// target is refused with ErrOwnerBusy while the live job runs, so the two
// never fight over the shared progress entry.
func (s *Scheduler) Submit(req Request) (*Handle, error) {
	if req.User == "" || req.Platform == "" {
		return nil, ErrInvalidRequest
	}
	if !req.All && len(req.GameIDs) == 0 {
		return nil, ErrEmptyTarget
	}
	if !req.All && s.cfg.BatchCap > 0 && len(req.GameIDs) > s.cfg.BatchCap {
		return nil, ErrBatchTooLarge
	}

	identity := req.Identity()
	pid := progressID(req)

	s.mu.Lock()
	if live, ok := s.jobs[pid]; ok {
		s.mu.Unlock()
		if live.identity != identity {
			return nil, ErrOwnerBusy
		}
		metrics.RecordJobCoalesced()
		s.log.Debug().
			Str("user", req.User).
			Str("platform", req.Platform).
			Str("job_id", live.id).
			Msg("submission coalesced into live job")
		return &Handle{job: live, Coalesced: true}, nil
	}
	j := newJob(req)
	s.jobs[pid] = j
	s.mu.Unlock()

	s.d.Tracker.Begin(pid, len(req.GameIDs))
	s.queue.Enqueue(j)
	metrics.RecordJobSubmitted()
	metrics.SetQueueDepth(s.queue.Len())

	s.log.Info().
		Str("user", req.User).
		Str("platform", req.Platform).
		Str("kind", req.Kind).
		Int("games", len(req.GameIDs)).
		Bool("all", req.All).
		Str("job_id", j.id).
		Msg("analysis job submitted")
	return &Handle{job: j}, nil
}

// Cancel flags the live job for (user, platform, kind). Queued jobs are
// dropped before they start; a running job stops after its current game.
// Returns false when nothing matched.
func (s *Scheduler) Cancel(user, platform, kind string) bool {
	s.mu.Lock()
	j := s.jobs[progress.Identity{User: user, Platform: platform, Kind: kind}]
	s.mu.Unlock()

	if j == nil {
		return false
	}
	j.cancelled.Store(true)
	s.log.Info().Str("job_id", j.id).Str("user", user).Msg("job cancelled")
	return true
}

// Run starts the worker pool and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Int("workers", s.cfg.Workers).Msg("scheduler starting")
	stop := context.AfterFunc(ctx, s.queue.close)
	defer stop()
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.runWorker(ctx, n)
		}(i)
	}
	wg.Wait()
	s.log.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runWorker(ctx context.Context, n int) {
	log := s.log.With().Int("worker", n).Logger()

	var ev engine.Evaluator
	defer func() {
		if ev != nil {
			ev.Close()
		}
	}()

	for {
		j, err := s.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		metrics.SetQueueDepth(s.queue.Len())

		if j.cancelled.Load() {
			s.finalize(j, Result{Status: StatusCancelled})
			continue
		}

		if ev == nil {
			ev, err = s.acquireEvaluator(ctx, log)
			if err != nil {
				log.Error().Err(err).Str("job_id", j.id).Msg("no engine available, failing job")
				s.finalize(j, Result{
					Status:   StatusFailed,
					Failures: []GameFailure{{Reason: "engine unavailable: " + err.Error()}},
				})
				continue
			}
		}

		if !s.runJob(ctx, log, j, ev) {
			ev.Close()
			ev = nil
		}
	}
}

// acquireEvaluator starts an engine with bounded retries and doubling
// backoff between attempts.
func (s *Scheduler) acquireEvaluator(ctx context.Context, log zerolog.Logger) (engine.Evaluator, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.EngineRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Dur("backoff", backoff).Msg("engine start failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		ev, err := s.d.Engines()
		if err == nil {
			return ev, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type analyzedGame struct {
	g         *game.Game
	evals     []game.MoveEvaluation
	qualities []game.MoveQuality
}

// runJob executes one job end to end. The returned bool reports whether the
// evaluator is still usable; false makes the worker restart its engine.
func (s *Scheduler) runJob(ctx context.Context, log zerolog.Logger, j *Job, ev engine.Evaluator) bool {
	engineOK := true
	j.setStatus(StatusRunning)
	req := j.req
	pid := progressID(req)
	log = log.With().Str("job_id", j.id).Str("user", req.User).Str("platform", req.Platform).Logger()

	ids := req.GameIDs
	if req.All {
		var err error
		ids, err = s.d.Store.ListGameIDs(ctx, req.User, req.Platform)
		if err != nil {
			log.Error().Err(err).Msg("listing games failed")
			s.finalize(j, Result{
				Status:   StatusFailed,
				Failures: []GameFailure{{Reason: "list games: " + err.Error()}},
			})
			return engineOK
		}
		// ListGameIDs is oldest first; keep the most recent under the cap.
		if s.cfg.BatchCap > 0 && len(ids) > s.cfg.BatchCap {
			ids = ids[len(ids)-s.cfg.BatchCap:]
		}
	}
	if len(ids) == 0 {
		s.finalize(j, Result{Status: StatusSucceeded})
		return engineOK
	}

	s.d.Tracker.SetTotal(pid, len(ids))
	s.d.Tracker.SetPhase(pid, progress.PhaseAnalyzing)

	var (
		done     []analyzedGame
		failures []GameFailure
	)

	for i, id := range ids {
		if ctx.Err() != nil || j.cancelled.Load() {
			s.finalize(j, Result{Status: StatusCancelled, Failures: failures})
			return engineOK
		}

		g, err := s.d.Store.FetchGame(ctx, req.User, req.Platform, id)
		if err != nil {
			failures = append(failures, GameFailure{GameID: id, Reason: "fetch: " + err.Error()})
			metrics.RecordGameFailed()
			s.d.Tracker.GameDone(pid)
			continue
		}

		evals, qualities, err := s.analyzeGame(ctx, j, ev, g)
		if errors.Is(err, context.Canceled) {
			s.finalize(j, Result{Status: StatusCancelled, Failures: failures})
			return engineOK
		}
		s.d.Tracker.GameDone(pid)
		if err != nil {
			failures = append(failures, GameFailure{GameID: id, Reason: err.Error()})
			metrics.RecordGameFailed()
			if errors.Is(err, engine.ErrEngineUnavailable) {
				engineOK = false
				for _, rest := range ids[i+1:] {
					failures = append(failures, GameFailure{GameID: rest, Reason: "engine unavailable"})
					metrics.RecordGameFailed()
					s.d.Tracker.GameDone(pid)
				}
				break
			}
			continue
		}
		done = append(done, analyzedGame{g: g, evals: evals, qualities: qualities})
	}

	s.d.Tracker.SetPhase(pid, progress.PhaseScoring)

	owner := cache.OwnerKey(req.User, req.Platform)
	if len(done) > 0 {
		// New artifacts supersede whatever the owner had cached, including
		// the stats aggregate.
		s.d.Cache.InvalidateOwner(owner)
	}

	var analyzedIDs []string
	for _, a := range done {
		set := s.scoreGame(a.g, a.qualities)
		if err := s.d.Store.SaveAnalysis(ctx, req.User, req.Platform, a.g.ID, set, a.evals); err != nil {
			log.Error().Err(err).Str("game_id", a.g.ID).Msg("saving analysis failed")
			failures = append(failures, GameFailure{GameID: a.g.ID, Reason: "save: " + err.Error()})
			metrics.RecordGameFailed()
			continue
		}
		s.d.Cache.Put(cache.ResultKey(owner, a.g.ID), owner, set, s.cfg.ResultTTL, game.ValidTraitScoreSet)
		if s.d.Archive != nil {
			rec := gamestore.AnalysisRecord{
				User:      req.User,
				Platform:  req.Platform,
				GameID:    a.g.ID,
				Traits:    set,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.d.Archive.Append(rec); err != nil {
				log.Warn().Err(err).Str("game_id", a.g.ID).Msg("archive append failed")
			}
		}
		analyzedIDs = append(analyzedIDs, a.g.ID)
		metrics.RecordGameAnalyzed()
	}

	status := StatusSucceeded
	switch {
	case len(analyzedIDs) == 0 && len(failures) > 0:
		status = StatusFailed
	case len(failures) > 0:
		status = StatusPartiallySucceeded
	}

	log.Info().
		Str("status", status.String()).
		Int("analyzed", len(analyzedIDs)).
		Int("failed", len(failures)).
		Msg("job finished")
	s.finalize(j, Result{Status: status, Analyzed: analyzedIDs, Failures: failures})
	return engineOK
}

// analyzeGame evaluates every position of g once (start position plus each
// post-move position) and classifies each move. Both scores for a move are
// normalized to the mover's perspective: the pre-move score already is, the
// post-move score is the opponent's and gets negated.
func (s *Scheduler) analyzeGame(ctx context.Context, j *Job, ev engine.Evaluator, g *game.Game) ([]game.MoveEvaluation, []game.MoveQuality, error) {
	if len(g.Moves) == 0 {
		return nil, nil, errors.New("game has no moves")
	}

	fens := make([]string, 0, len(g.Moves)+1)
	fens = append(fens, game.StartFEN)
	for _, m := range g.Moves {
		fens = append(fens, m.FENAfter)
	}

	positions := make([]engine.Evaluation, len(fens))
	lowConf := make([]bool, len(fens))
	for i, fen := range fens {
		if ctx.Err() != nil || j.cancelled.Load() {
			return nil, nil, context.Canceled
		}
		res, low, err := s.evaluate(ctx, ev, fen)
		if err != nil {
			return nil, nil, err
		}
		positions[i] = res
		lowConf[i] = low
	}

	evals := make([]game.MoveEvaluation, len(g.Moves))
	qualities := make([]game.MoveQuality, len(g.Moves))
	for i := range g.Moves {
		before := positions[i].Score
		after := positions[i+1].Score.Negate()
		evals[i] = game.MoveEvaluation{
			Index:         i,
			ScoreBefore:   before,
			ScoreAfter:    after,
			Depth:         positions[i+1].Depth,
			BestLine:      positions[i].BestLine,
			LowConfidence: lowConf[i] || lowConf[i+1],
		}
		qualities[i] = s.d.Classifier.Classify(before, after)
	}
	return evals, qualities, nil
}

// evaluate runs one engine search. A timeout gets one retry at half depth;
// success there marks the result low-confidence instead of failing the game.
func (s *Scheduler) evaluate(ctx context.Context, ev engine.Evaluator, fen string) (engine.Evaluation, bool, error) {
	start := time.Now()
	res, err := ev.Evaluate(ctx, fen, s.cfg.EngineDepth)
	metrics.RecordEngineEval()
	metrics.RecordEvalDuration(time.Since(start).Seconds())
	if err == nil {
		return res, false, nil
	}
	if !errors.Is(err, engine.ErrEngineTimeout) {
		return engine.Evaluation{}, false, err
	}

	metrics.RecordEngineTimeout()
	retryDepth := s.cfg.EngineDepth / 2
	if retryDepth < 2 {
		retryDepth = 2
	}
	start = time.Now()
	res, err = ev.Evaluate(ctx, fen, retryDepth)
	metrics.RecordEngineEval()
	metrics.RecordEvalDuration(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, engine.ErrEngineTimeout) {
			metrics.RecordEngineTimeout()
		}
		return engine.Evaluation{}, false, err
	}
	return res, true, nil
}

// scoreGame builds trait samples from the owner's half-moves only. White
// moves sit at even indices when the game starts from the standard position.
func (s *Scheduler) scoreGame(g *game.Game, qualities []game.MoveQuality) *game.TraitScoreSet {
	userWhite := g.UserIsWhite()
	samples := make([]traits.Sample, 0, (len(g.Moves)+1)/2)
	for i, m := range g.Moves {
		if (i%2 == 0) != userWhite {
			continue
		}
		samples = append(samples, traits.Sample{
			Quality:   qualities[i],
			Forcing:   m.Forcing(),
			Piece:     m.Piece,
			TimeSpent: m.TimeSpent,
		})
	}
	return s.d.Scorer.Score(samples)
}

// finalize records the terminal result, releases the identity for future
// submissions, and wakes every handle waiting on the job.
func (s *Scheduler) finalize(j *Job, res Result) {
	j.mu.Lock()
	j.result = res
	j.mu.Unlock()
	j.setStatus(res.Status)

	pid := progressID(j.req)
	s.mu.Lock()
	if s.jobs[pid] == j {
		delete(s.jobs, pid)
	}
	s.mu.Unlock()

	s.d.Tracker.Complete(pid, res.ErrorSummary())
	metrics.RecordJobCompleted(res.Status.String())
	close(j.done)
}
