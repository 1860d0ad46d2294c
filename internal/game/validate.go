package game

// Artifact validators used to gate result cache writes. A validator must
// reject nil payloads and any payload missing its required numeric fields so
// the cache can never hold a partial or error artifact.

func boundedScore(v float64) bool { return v >= 0 && v <= 100 }

// ValidTraitScoreSet reports whether v is a well-formed *TraitScoreSet.
func ValidTraitScoreSet(v any) bool {
	t, ok := v.(*TraitScoreSet)
	if !ok || t == nil {
		return false
	}
	if t.MoveCount < 0 || t.Histogram.Total() != t.MoveCount {
		return false
	}
	if t.TimePressureMoves < 0 || t.TimePressureMoves > t.MoveCount {
		return false
	}
	for _, s := range []float64{t.Tactical, t.Positional, t.Aggressive, t.Patient, t.Novelty, t.Staleness} {
		if !boundedScore(s) {
			return false
		}
	}
	return true
}

// ValidUserStats reports whether v is a well-formed *UserStats.
func ValidUserStats(v any) bool {
	s, ok := v.(*UserStats)
	if !ok || s == nil {
		return false
	}
	if s.GameCount < 0 {
		return false
	}
	for _, sc := range []float64{s.Tactical, s.Positional, s.Aggressive, s.Patient, s.Novelty, s.Staleness} {
		if !boundedScore(sc) {
			return false
		}
	}
	return true
}
