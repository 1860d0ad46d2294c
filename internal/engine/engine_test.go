package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/chessmirror/chessmirror/internal/game"
)

type fakeEngine struct {
	stall  chan struct{} // when non-nil, GoDepth blocks until it is closed
	closed atomic.Bool
	calls  atomic.Int64
}

func (f *fakeEngine) SetFEN(string) error { return nil }

func (f *fakeEngine) GoDepth(depth int) (*uci.Results, error) {
	f.calls.Add(1)
	if f.stall != nil {
		<-f.stall
		return nil, errors.New("search aborted")
	}
	return &uci.Results{Results: []uci.ScoreResult{
		{Depth: depth, Score: 31, BestMoves: []string{"e2e4"}},
	}}, nil
}

func (f *fakeEngine) Close() { f.closed.Store(true) }

func newFakeEvaluator(start func() (uciEngine, error)) *uciEvaluator {
	return &uciEvaluator{
		start: start,
		cfg:   Config{MoveTime: 30 * time.Millisecond, SkillLevel: 20},
		log:   zerolog.Nop(),
	}
}

// A timed-out search leaves a goroutine reading the engine's pipe, so the
// process must be discarded and the next call must run on a fresh one.
func TestEvaluateTimeoutDiscardsEngine(t *testing.T) {
	stalled := &fakeEngine{stall: make(chan struct{})}
	defer close(stalled.stall)
	fresh := &fakeEngine{}

	engines := []*fakeEngine{stalled, fresh}
	var started int
	e := newFakeEvaluator(func() (uciEngine, error) {
		eng := engines[started]
		started++
		return eng, nil
	})

	if _, err := e.Evaluate(context.Background(), game.StartFEN, 8); !errors.Is(err, ErrEngineTimeout) {
		t.Fatalf("Evaluate err = %v, want ErrEngineTimeout", err)
	}
	if !stalled.closed.Load() {
		t.Fatal("timed-out engine process was not discarded")
	}

	ev, err := e.Evaluate(context.Background(), game.StartFEN, 4)
	if err != nil {
		t.Fatalf("Evaluate after timeout: %v", err)
	}
	if ev.Score.CP != 31 || ev.Depth != 4 {
		t.Errorf("evaluation = %+v, want cp 31 at depth 4", ev)
	}
	if started != 2 {
		t.Errorf("engine processes started = %d, want 2", started)
	}
	if n := stalled.calls.Load(); n != 1 {
		t.Errorf("abandoned engine searched %d times, want 1", n)
	}
	if n := fresh.calls.Load(); n != 1 {
		t.Errorf("fresh engine searched %d times, want 1", n)
	}
}

func TestEvaluateCancelDiscardsEngine(t *testing.T) {
	stalled := &fakeEngine{stall: make(chan struct{})}
	defer close(stalled.stall)
	e := newFakeEvaluator(func() (uciEngine, error) { return stalled, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if _, err := e.Evaluate(ctx, game.StartFEN, 8); !errors.Is(err, context.Canceled) {
		t.Fatalf("Evaluate err = %v, want context.Canceled", err)
	}
	if !stalled.closed.Load() {
		t.Error("cancelled engine process was not discarded")
	}
}

func TestEvaluateRestartFailure(t *testing.T) {
	stalled := &fakeEngine{stall: make(chan struct{})}
	defer close(stalled.stall)

	var started bool
	e := newFakeEvaluator(func() (uciEngine, error) {
		if !started {
			started = true
			return stalled, nil
		}
		return nil, fmt.Errorf("%w: start", ErrEngineUnavailable)
	})

	if _, err := e.Evaluate(context.Background(), game.StartFEN, 8); !errors.Is(err, ErrEngineTimeout) {
		t.Fatalf("Evaluate err = %v, want ErrEngineTimeout", err)
	}
	if _, err := e.Evaluate(context.Background(), game.StartFEN, 4); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("Evaluate with dead engine err = %v, want ErrEngineUnavailable", err)
	}
}
