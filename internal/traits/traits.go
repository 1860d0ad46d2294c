// Package traits aggregates a game's move-quality sequence and timing data
// into the six bounded personality trait scores.
package traits

import (
	"math"
	"time"

	"github.com/chessmirror/chessmirror/internal/game"
)

// Default scoring configuration constants. All traits start from a common
// low base so that bonuses and penalties, not the base, drive
// differentiation: good histograms can climb near 95 and poor ones fall
// toward the floor.
const (
	defaultBase              = 35.0
	defaultTacticalWeight    = 45.0
	defaultPressureWeight    = 15.0
	defaultPositionalWeight  = 45.0
	defaultSafetyBonus       = 15.0
	defaultSafetyPenalty     = 10.0
	defaultAggressionWeight  = 80.0
	defaultAggressionPivot   = 0.25
	defaultPatiencePivot     = 0.45
	defaultDiversityWeight   = 90.0
	defaultNoveltyPivot      = 0.30
	defaultStalenessPivot    = 0.55
	defaultPressureThreshold = 10 * time.Second
	maxScore                 = 100.0
)

// Sample is one of the player's moves with the inputs scoring needs.
type Sample struct {
	Quality   game.MoveQuality
	Forcing   bool // capture or check
	Piece     byte // upper-case piece letter, 0 if unknown
	TimeSpent time.Duration
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBase sets the common starting score for all traits.
func WithBase(base float64) Option {
	return func(s *Scorer) {
		if base > 0 && base < maxScore {
			s.base = base
		}
	}
}

// WithTacticalWeights sets the forcing-performance and time-pressure weights.
func WithTacticalWeights(tactical, pressure float64) Option {
	return func(s *Scorer) {
		if tactical > 0 {
			s.tacticalWeight = tactical
		}
		if pressure > 0 {
			s.pressureWeight = pressure
		}
	}
}

// WithPressureThreshold sets the move time below which a move counts as
// played under time pressure.
func WithPressureThreshold(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.pressureThreshold = d
		}
	}
}

// Scorer computes trait scores from move samples. The zero value is not
// usable; construct with NewScorer.
type Scorer struct {
	base              float64
	tacticalWeight    float64
	pressureWeight    float64
	positionalWeight  float64
	safetyBonus       float64
	safetyPenalty     float64
	aggressionWeight  float64
	aggressionPivot   float64
	patiencePivot     float64
	diversityWeight   float64
	noveltyPivot      float64
	stalenessPivot    float64
	pressureThreshold time.Duration
}

// NewScorer creates a scorer with configuration options applied over the
// documented defaults.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		base:              defaultBase,
		tacticalWeight:    defaultTacticalWeight,
		pressureWeight:    defaultPressureWeight,
		positionalWeight:  defaultPositionalWeight,
		safetyBonus:       defaultSafetyBonus,
		safetyPenalty:     defaultSafetyPenalty,
		aggressionWeight:  defaultAggressionWeight,
		aggressionPivot:   defaultAggressionPivot,
		patiencePivot:     defaultPatiencePivot,
		diversityWeight:   defaultDiversityWeight,
		noveltyPivot:      defaultNoveltyPivot,
		stalenessPivot:    defaultStalenessPivot,
		pressureThreshold: defaultPressureThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// qualityValue maps a label onto [-3, 1]: best moves reward, blunders cost
// triple what a best move earns.
func qualityValue(q game.MoveQuality) float64 {
	switch q {
	case game.QualityBest:
		return 1.0
	case game.QualityGood:
		return 0.5
	case game.QualityInaccuracy:
		return -0.5
	case game.QualityMistake:
		return -1.5
	case game.QualityBlunder:
		return -3.0
	default:
		return 0
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

// Score aggregates one side's samples into a TraitScoreSet. Empty input, or
// input with no moves of a required kind (no quiet moves, no forcing moves,
// no timing data), substitutes a neutral contribution for the affected term
// and never errors.
func (s *Scorer) Score(samples []Sample) *game.TraitScoreSet {
	out := &game.TraitScoreSet{MoveCount: len(samples)}

	var (
		forcingCount   int
		forcingSum     float64
		quietCount     int
		quietSum       float64
		quietBlunders  int
		quietMistakes  int
		pressureCount  int
		pressureBest   int
		timedCount     int
		totalTime      time.Duration
		patterns       = map[[2]byte]struct{}{}
	)

	for _, m := range samples {
		out.Histogram.Add(m.Quality)

		if m.Forcing {
			forcingCount++
			forcingSum += qualityValue(m.Quality)
		} else {
			quietCount++
			quietSum += qualityValue(m.Quality)
			switch m.Quality {
			case game.QualityBlunder:
				quietBlunders++
			case game.QualityMistake:
				quietMistakes++
			}
		}

		if m.TimeSpent > 0 {
			timedCount++
			totalTime += m.TimeSpent
			if m.TimeSpent < s.pressureThreshold {
				pressureCount++
				if m.Quality == game.QualityBest {
					pressureBest++
				}
			}
		}

		key := [2]byte{m.Piece, 0}
		if m.Forcing {
			key[1] = 1
		}
		patterns[key] = struct{}{}
	}

	if timedCount > 0 {
		out.AvgMoveTime = totalTime / time.Duration(timedCount)
	}
	out.TimePressureMoves = pressureCount

	// Tactical: performance in forcing moments plus best-move rate under
	// time pressure. Neutral when the game had no such moments.
	tactical := s.base
	if forcingCount > 0 {
		tactical += s.tacticalWeight * (forcingSum / float64(forcingCount))
	}
	if pressureCount > 0 {
		tactical += s.pressureWeight * (float64(pressureBest)/float64(pressureCount) - 0.5) * 2
	}

	// Positional: safety of quiet play.
	positional := s.base
	if quietCount > 0 {
		positional += s.positionalWeight * (quietSum / float64(quietCount))
		if quietBlunders == 0 && quietMistakes == 0 {
			positional += s.safetyBonus
		} else {
			positional -= s.safetyPenalty * float64(quietBlunders)
		}
	}

	// Aggressive/Patient share the forcing ratio with opposite sign.
	aggressive := s.base
	patient := s.base
	if len(samples) > 0 {
		ratio := float64(forcingCount) / float64(len(samples))
		aggressive += s.aggressionWeight * (ratio - s.aggressionPivot)
		patient += s.aggressionWeight * (s.patiencePivot - ratio)
	}

	// Novelty/Staleness share move-pattern diversity with opposite sign.
	novelty := s.base
	staleness := s.base
	if len(samples) > 0 {
		diversity := float64(len(patterns)) / float64(len(samples))
		novelty += s.diversityWeight * (diversity - s.noveltyPivot)
		staleness += s.diversityWeight * (s.stalenessPivot - diversity)
	}

	// Clamp once, after all additive terms; intermediate terms are never
	// capped individually so bonuses and penalties cannot double-cap.
	out.Tactical = clamp(tactical)
	out.Positional = clamp(positional)
	out.Aggressive = clamp(aggressive)
	out.Patient = clamp(patient)
	out.Novelty = clamp(novelty)
	out.Staleness = clamp(staleness)

	return out
}
