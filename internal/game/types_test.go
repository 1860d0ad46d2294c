package game

import "testing"

func TestScoreCentipawns(t *testing.T) {
	cases := []struct {
		name  string
		score Score
		want  int
	}{
		{"plain cp", Score{CP: 42}, 42},
		{"negative cp", Score{CP: -310}, -310},
		{"mate in 1", Score{MateIn: 1}, MateMagnitude - 1},
		{"mate in 5", Score{MateIn: 5}, MateMagnitude - 5},
		{"mated in 1", Score{MateIn: -1}, -MateMagnitude + 1},
		{"mated in 3", Score{MateIn: -3}, -MateMagnitude + 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.score.Centipawns(); got != tc.want {
				t.Errorf("Centipawns() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestShorterMateIsBetter(t *testing.T) {
	if (Score{MateIn: 2}).Centipawns() <= (Score{MateIn: 7}).Centipawns() {
		t.Error("mate in 2 should collapse higher than mate in 7")
	}
	if (Score{MateIn: -2}).Centipawns() >= (Score{MateIn: -7}).Centipawns() {
		t.Error("mated in 2 should collapse lower than mated in 7")
	}
}

func TestScoreNegate(t *testing.T) {
	s := Score{CP: 120}
	if n := s.Negate(); n.CP != -120 || n.MateIn != 0 {
		t.Errorf("Negate() = %+v", n)
	}
	m := Score{MateIn: 3}
	if n := m.Negate(); n.MateIn != -3 {
		t.Errorf("Negate() = %+v", n)
	}
}

func TestMoveEvaluationDelta(t *testing.T) {
	e := MoveEvaluation{ScoreBefore: Score{CP: 50}, ScoreAfter: Score{CP: -30}}
	if d := e.Delta(); d != 80 {
		t.Errorf("Delta() = %d, want 80", d)
	}

	// Walking into mate loses nearly the full magnitude.
	e = MoveEvaluation{ScoreBefore: Score{CP: 0}, ScoreAfter: Score{MateIn: -4}}
	if d := e.Delta(); d != MateMagnitude-4 {
		t.Errorf("Delta() = %d, want %d", d, MateMagnitude-4)
	}
}

func TestUserIsWhite(t *testing.T) {
	if (&Game{Side: "black"}).UserIsWhite() {
		t.Error("black side reported as white")
	}
	if !(&Game{Side: "white"}).UserIsWhite() {
		t.Error("white side reported as black")
	}
}

func TestValidTraitScoreSet(t *testing.T) {
	ok := &TraitScoreSet{
		Tactical: 50, Positional: 50, Aggressive: 50,
		Patient: 50, Novelty: 50, Staleness: 50,
		MoveCount: 2,
	}
	ok.Histogram.Best = 2

	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"valid", ok, true},
		{"nil", nil, false},
		{"nil pointer", (*TraitScoreSet)(nil), false},
		{"wrong type", "not a score set", false},
		{"histogram mismatch", &TraitScoreSet{MoveCount: 3}, false},
		{"score out of range", func() any {
			bad := *ok
			bad.Tactical = 101
			return &bad
		}(), false},
		{"negative score", func() any {
			bad := *ok
			bad.Patient = -1
			return &bad
		}(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidTraitScoreSet(tc.v); got != tc.want {
				t.Errorf("ValidTraitScoreSet = %v, want %v", got, tc.want)
			}
		})
	}
}
