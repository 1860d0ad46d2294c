// Package progress tracks per-identity analysis progress for polling
// clients. One entry exists per (user, platform, analysis kind); a missing
// entry always means no active job, never "unknown".
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Phase is the coarse stage of an analysis job. Transitions are monotonic
// forward only.
type Phase int

const (
	PhaseFetching Phase = iota
	PhaseAnalyzing
	PhaseScoring
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseScoring:
		return "scoring"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Identity keys progress entries.
type Identity struct {
	User     string
	Platform string
	Kind     string
}

// State is what polling clients observe. The absent state reports Complete
// with GamesTotal 0, so callers distinguish "nothing is happening" from a
// finished job by the total.
type State struct {
	Phase      Phase
	GamesTotal int
	GamesDone  int
	StartedAt  time.Time
	Error      string // non-empty when the job finished with failures
}

type entry struct {
	mu          sync.Mutex
	state       State
	completedAt time.Time
}

// Tracker is the process-wide progress store. The identity map is the only
// structure shared across workers; each entry is mutated only by the worker
// running that identity's job, so locking is per entry plus the map itself.
type Tracker struct {
	mu      sync.Mutex
	entries map[Identity]*entry

	grace time.Duration
	sweep time.Duration
	log   zerolog.Logger
}

// NewTracker creates a tracker retaining completed entries for grace before
// purging them.
func NewTracker(grace time.Duration, log zerolog.Logger) *Tracker {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Tracker{
		entries: make(map[Identity]*entry),
		grace:   grace,
		sweep:   30 * time.Second,
		log:     log,
	}
}

// Begin inserts a fresh Fetching entry for id, replacing any prior entry.
func (t *Tracker) Begin(id Identity, total int) {
	e := &entry{state: State{
		Phase:      PhaseFetching,
		GamesTotal: total,
		StartedAt:  time.Now(),
	}}
	t.mu.Lock()
	t.entries[id] = e
	t.mu.Unlock()
}

func (t *Tracker) get(id Identity) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id]
}

// SetTotal updates the games-total once the target set is known.
func (t *Tracker) SetTotal(id Identity, total int) {
	if e := t.get(id); e != nil {
		e.mu.Lock()
		e.state.GamesTotal = total
		e.mu.Unlock()
	}
}

// SetPhase advances the phase. Backward transitions are ignored.
func (t *Tracker) SetPhase(id Identity, p Phase) {
	if e := t.get(id); e != nil {
		e.mu.Lock()
		if p > e.state.Phase {
			e.state.Phase = p
		}
		e.mu.Unlock()
	}
}

// GameDone increments the completed-games counter.
func (t *Tracker) GameDone(id Identity) {
	if e := t.get(id); e != nil {
		e.mu.Lock()
		if e.state.GamesDone < e.state.GamesTotal {
			e.state.GamesDone++
		}
		e.mu.Unlock()
	}
}

// Complete marks the job finished. Failures land here too, with a summary,
// so polling never observes an indefinitely stuck state.
func (t *Tracker) Complete(id Identity, errSummary string) {
	if e := t.get(id); e != nil {
		e.mu.Lock()
		e.state.Phase = PhaseComplete
		e.state.Error = errSummary
		e.completedAt = time.Now()
		e.mu.Unlock()
	}
}

// Get returns the current state for id. A missing entry reports Complete
// with zero totals.
func (t *Tracker) Get(id Identity) State {
	e := t.get(id)
	if e == nil {
		return State{Phase: PhaseComplete}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run sweeps completed entries past the grace period until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.purgeExpired(time.Now())
		}
	}
}

func (t *Tracker) purgeExpired(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		e.mu.Lock()
		done := e.state.Phase == PhaseComplete && !e.completedAt.IsZero() && now.Sub(e.completedAt) > t.grace
		e.mu.Unlock()
		if done {
			delete(t.entries, id)
			t.log.Debug().
				Str("user", id.User).
				Str("platform", id.Platform).
				Str("kind", id.Kind).
				Msg("purged completed progress entry")
		}
	}
}

// Len returns the number of live entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
