package classify

import (
	"testing"

	"github.com/chessmirror/chessmirror/internal/game"
)

func cp(v int) game.Score { return game.Score{CP: v} }

func TestClassifyBands(t *testing.T) {
	c, err := New(DefaultBands())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		before game.Score
		after  game.Score
		want   game.MoveQuality
	}{
		{"no loss", cp(30), cp(30), game.QualityBest},
		{"small gain", cp(10), cp(25), game.QualityBest},
		{"delta 10", cp(50), cp(40), game.QualityBest},
		{"delta 19", cp(19), cp(0), game.QualityBest},
		{"delta 20", cp(20), cp(0), game.QualityGood},
		{"delta 49", cp(49), cp(0), game.QualityGood},
		{"delta 50", cp(50), cp(0), game.QualityInaccuracy},
		{"delta 99", cp(99), cp(0), game.QualityInaccuracy},
		{"delta 100", cp(150), cp(50), game.QualityMistake},
		{"delta 299", cp(299), cp(0), game.QualityMistake},
		{"delta 300", cp(200), cp(-100), game.QualityBlunder},
		{"delta 1000", cp(500), cp(-500), game.QualityBlunder},
		{"winning to lost", cp(50), cp(-320), game.QualityBlunder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.before, tt.after); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.before, tt.after, got, tt.want)
			}
		})
	}
}

func TestClassifyMateHandling(t *testing.T) {
	c, err := New(DefaultBands())
	if err != nil {
		t.Fatal(err)
	}

	// Handing the opponent a forced mate is always a blunder.
	if got := c.Classify(cp(80), game.Score{MateIn: -5}); got != game.QualityBlunder {
		t.Errorf("mate-creating move = %v, want blunder", got)
	}
	// Even from an equal position.
	if got := c.Classify(cp(0), game.Score{MateIn: -2}); got != game.QualityBlunder {
		t.Errorf("mate-creating move from equality = %v, want blunder", got)
	}

	// Once mated, continuations are neither fresh blunders nor best moves;
	// labeling them best would inflate the best-move rate in lost games.
	if got := c.Classify(game.Score{MateIn: -4}, game.Score{MateIn: -3}); got != game.QualityGood {
		t.Errorf("forced-loss continuation = %v, want good", got)
	}
	if got := c.Classify(game.Score{MateIn: -4}, game.Score{MateIn: -1}); got != game.QualityGood {
		t.Errorf("forced-loss continuation shortening = %v, want good", got)
	}
	if got := c.Classify(game.Score{MateIn: -4}, cp(-900)); got != game.QualityGood {
		t.Errorf("forced-loss continuation escaping to lost eval = %v, want good", got)
	}

	// Delivering mate is best.
	if got := c.Classify(game.Score{MateIn: 3}, game.Score{MateIn: 2}); got != game.QualityBest {
		t.Errorf("mate delivery = %v, want best", got)
	}
}

// Every delta over a wide range must map to exactly one label and severity
// must be monotonic in the delta.
func TestClassifyExhaustiveMonotonic(t *testing.T) {
	c, err := New(DefaultBands())
	if err != nil {
		t.Fatal(err)
	}

	prev := game.QualityBest
	for delta := -2000; delta <= 2000; delta++ {
		got := c.Classify(cp(0), cp(-delta))
		if got < game.QualityBest || got > game.QualityBlunder {
			t.Fatalf("delta %d unclassified: %v", delta, got)
		}
		if delta > -2000 && got < prev {
			t.Fatalf("severity not monotonic at delta %d: %v after %v", delta, got, prev)
		}
		prev = got
	}
}

func TestBandsValidate(t *testing.T) {
	bad := []Bands{
		{Good: 0, Inaccuracy: 50, Mistake: 100, Blunder: 300},
		{Good: 50, Inaccuracy: 50, Mistake: 100, Blunder: 300},
		{Good: 20, Inaccuracy: 50, Mistake: 40, Blunder: 300},
		{Good: 20, Inaccuracy: 50, Mistake: 100, Blunder: 100},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", b)
		}
	}
	if err := DefaultBands().Validate(); err != nil {
		t.Errorf("default bands invalid: %v", err)
	}
}
