package progress

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var testID = Identity{User: "alice", Platform: "lichess", Kind: "traits"}

func newTestTracker(grace time.Duration) *Tracker {
	return NewTracker(grace, zerolog.Nop())
}

func TestAbsentMeansNoActiveJob(t *testing.T) {
	tr := newTestTracker(time.Minute)

	st := tr.Get(testID)
	if st.Phase != PhaseComplete {
		t.Errorf("absent phase = %v, want complete", st.Phase)
	}
	if st.GamesTotal != 0 || st.GamesDone != 0 {
		t.Errorf("absent totals = %d/%d, want 0/0", st.GamesDone, st.GamesTotal)
	}
}

func TestLifecycle(t *testing.T) {
	tr := newTestTracker(time.Minute)

	tr.Begin(testID, 0)
	if st := tr.Get(testID); st.Phase != PhaseFetching {
		t.Fatalf("phase after Begin = %v, want fetching", st.Phase)
	}

	tr.SetTotal(testID, 3)
	tr.SetPhase(testID, PhaseAnalyzing)
	tr.GameDone(testID)
	tr.GameDone(testID)

	st := tr.Get(testID)
	if st.Phase != PhaseAnalyzing || st.GamesTotal != 3 || st.GamesDone != 2 {
		t.Fatalf("state = %+v, want analyzing 2/3", st)
	}

	// Backward transitions are ignored.
	tr.SetPhase(testID, PhaseScoring)
	tr.SetPhase(testID, PhaseFetching)
	if st := tr.Get(testID); st.Phase != PhaseScoring {
		t.Fatalf("phase after backward transition = %v, want scoring", st.Phase)
	}

	tr.GameDone(testID)
	tr.Complete(testID, "")
	st = tr.Get(testID)
	if st.Phase != PhaseComplete || st.GamesDone != 3 || st.GamesTotal != 3 {
		t.Fatalf("terminal state = %+v, want complete 3/3", st)
	}
	if st.Error != "" {
		t.Errorf("error summary = %q, want empty", st.Error)
	}
}

func TestFailureLandsInComplete(t *testing.T) {
	tr := newTestTracker(time.Minute)

	tr.Begin(testID, 2)
	tr.SetPhase(testID, PhaseAnalyzing)
	tr.Complete(testID, "engine unavailable")

	st := tr.Get(testID)
	if st.Phase != PhaseComplete {
		t.Fatalf("failed job phase = %v, want complete", st.Phase)
	}
	if st.Error != "engine unavailable" {
		t.Errorf("error summary = %q", st.Error)
	}
}

func TestGracePeriodPurge(t *testing.T) {
	tr := newTestTracker(50 * time.Millisecond)

	tr.Begin(testID, 1)
	tr.Complete(testID, "")

	// Within the grace period the terminal state is still observable.
	tr.purgeExpired(time.Now())
	if st := tr.Get(testID); st.GamesTotal != 1 {
		t.Fatalf("entry purged before grace elapsed: %+v", st)
	}

	// After the grace period it falls back to the absent state.
	tr.purgeExpired(time.Now().Add(time.Second))
	st := tr.Get(testID)
	if st.GamesTotal != 0 || st.Phase != PhaseComplete {
		t.Fatalf("state after purge = %+v, want absent", st)
	}
	if tr.Len() != 0 {
		t.Errorf("Len = %d, want 0", tr.Len())
	}

	// Incomplete entries are never purged.
	tr.Begin(testID, 1)
	tr.purgeExpired(time.Now().Add(time.Hour))
	if tr.Len() != 1 {
		t.Error("running entry was purged")
	}
}
