// Package engine wraps UCI chess engine processes behind the Evaluator
// contract used by the analysis scheduler. Each scheduler worker owns one
// long-lived engine process to avoid per-move spawn cost.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/chessmirror/chessmirror/internal/game"
)

var (
	// ErrEngineUnavailable means the engine process cannot be located or
	// started. Fatal to the affected job after bounded retries.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrEngineTimeout means a single evaluation exceeded its move-time
	// budget with no result.
	ErrEngineTimeout = errors.New("engine evaluation timed out")
)

// Config holds explicit engine parameters. Nothing here is globally
// hardcoded, so analysis behavior is reproducible with fixed values.
type Config struct {
	Path       string
	Depth      int
	SkillLevel int // 0-20, caps effective search depth
	MoveTime   time.Duration
	Threads    int
	HashMB     int
}

// Evaluation is the engine's verdict on one position, from the perspective
// of the side to move in the given FEN.
type Evaluation struct {
	Score    game.Score
	BestLine []string
	Depth    int
}

// Evaluator evaluates positions. Each call is independent and stateless
// from the caller's point of view.
type Evaluator interface {
	// Evaluate searches fen to the given depth within the configured
	// move-time budget.
	Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error)
	Close()
}

// Factory hands out one evaluator per scheduler worker.
type Factory func() (Evaluator, error)

// NewFactory builds a Factory producing UCI evaluators for cfg. The binary
// path must already be resolved.
func NewFactory(cfg Config, log zerolog.Logger) Factory {
	return func() (Evaluator, error) {
		return newUCIEvaluator(cfg, log)
	}
}

type goResult struct {
	results *uci.Results
	err     error
}

// uciEngine is the slice of uci.Engine the evaluator drives. The process
// has one shared command pipe, so at most one search may use it at a time.
type uciEngine interface {
	SetFEN(fen string) error
	GoDepth(depth int) (*uci.Results, error)
	Close()
}

type processEngine struct {
	eng *uci.Engine
}

func (p processEngine) SetFEN(fen string) error { return p.eng.SetFEN(fen) }

func (p processEngine) GoDepth(depth int) (*uci.Results, error) {
	return p.eng.GoDepth(depth, uci.HighestDepthOnly)
}

func (p processEngine) Close() { p.eng.Close() }

func startProcess(cfg Config) (uciEngine, error) {
	eng, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrEngineUnavailable, cfg.Path, err)
	}
	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return nil, fmt.Errorf("%w: set options: %v", ErrEngineUnavailable, err)
	}
	return processEngine{eng: eng}, nil
}

type uciEvaluator struct {
	start func() (uciEngine, error)
	eng   uciEngine
	cfg   Config
	log   zerolog.Logger
}

func newUCIEvaluator(cfg Config, log zerolog.Logger) (*uciEvaluator, error) {
	e := &uciEvaluator{
		start: func() (uciEngine, error) { return startProcess(cfg) },
		cfg:   cfg,
		log:   log,
	}
	eng, err := e.start()
	if err != nil {
		return nil, err
	}
	e.eng = eng
	return e, nil
}

// effectiveDepth caps the search depth by the configured skill level so that
// a reduced-strength configuration is reproducible rather than random.
func (e *uciEvaluator) effectiveDepth(depth int) int {
	if e.cfg.SkillLevel >= 20 {
		return depth
	}
	scaled := depth * (e.cfg.SkillLevel + 5) / 25
	if scaled < 2 {
		scaled = 2
	}
	return scaled
}

func (e *uciEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	if e.eng == nil {
		eng, err := e.start()
		if err != nil {
			return Evaluation{}, err
		}
		e.eng = eng
	}
	if err := e.eng.SetFEN(fen); err != nil {
		return Evaluation{}, fmt.Errorf("%w: set position: %v", ErrEngineUnavailable, err)
	}

	searchDepth := e.effectiveDepth(depth)

	done := make(chan goResult, 1)
	go func(eng uciEngine) {
		results, err := eng.GoDepth(searchDepth)
		done <- goResult{results: results, err: err}
	}(e.eng)

	budget := e.cfg.MoveTime
	if budget <= 0 {
		budget = 10 * time.Second
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		e.discard()
		return Evaluation{}, ctx.Err()
	case <-timer.C:
		e.discard()
		return Evaluation{}, fmt.Errorf("%w: depth %d budget %s", ErrEngineTimeout, searchDepth, budget)
	case res := <-done:
		if res.err != nil {
			return Evaluation{}, fmt.Errorf("%w: search: %v", ErrEngineUnavailable, res.err)
		}
		return e.toEvaluation(res.results, searchDepth)
	}
}

// discard kills an engine whose search was abandoned. The search goroutine
// is still reading the process pipe; killing the process unblocks it, and
// the next Evaluate starts a fresh process, so an abandoned search never
// shares a pipe with a live one.
func (e *uciEvaluator) discard() {
	e.log.Warn().Msg("discarding engine process after abandoned search")
	e.eng.Close()
	e.eng = nil
}

func (e *uciEvaluator) toEvaluation(results *uci.Results, searchDepth int) (Evaluation, error) {
	if results == nil || len(results.Results) == 0 {
		return Evaluation{}, fmt.Errorf("%w: no results from engine", ErrEngineUnavailable)
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	ev := Evaluation{Depth: searchDepth, BestLine: best.BestMoves}
	if best.Mate {
		ev.Score = game.Score{MateIn: best.Score}
	} else {
		ev.Score = game.Score{CP: best.Score}
	}
	return ev, nil
}

func (e *uciEvaluator) Close() {
	if e.eng != nil {
		e.eng.Close()
		e.eng = nil
	}
}
