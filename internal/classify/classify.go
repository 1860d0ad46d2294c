// Package classify turns consecutive engine evaluations into move quality
// labels. Classification is a pure function of the two scores: it is
// deterministic and independent of which engine instance produced them.
package classify

import (
	"errors"

	"github.com/chessmirror/chessmirror/internal/game"
)

// Bands holds the lower centipawn-loss bound of each non-Best band. Deltas
// below Good are Best; deltas at or above Blunder are blunders. Bands are
// contiguous, so every real delta value maps to exactly one label.
type Bands struct {
	Good       int
	Inaccuracy int
	Mistake    int
	Blunder    int
}

// DefaultBands returns the documented default thresholds.
func DefaultBands() Bands {
	return Bands{Good: 20, Inaccuracy: 50, Mistake: 100, Blunder: 300}
}

// Validate checks that the bands are positive and strictly ascending.
func (b Bands) Validate() error {
	if !(0 < b.Good && b.Good < b.Inaccuracy && b.Inaccuracy < b.Mistake && b.Mistake < b.Blunder) {
		return errors.New("classify: bands must be strictly ascending and positive")
	}
	return nil
}

// Classifier maps evaluation pairs to move quality labels.
type Classifier struct {
	bands Bands

	// winningFloor and losingCeil define "turns a winning/drawing position
	// into a loss": before at or above the floor, after at or below the ceil.
	winningFloor int
	losingCeil   int
}

// New returns a Classifier for the given bands.
func New(bands Bands) (*Classifier, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		bands:        bands,
		winningFloor: -100,
		losingCeil:   -bands.Blunder,
	}, nil
}

// Classify labels the move that led from before to after. Both scores are
// from the mover's perspective.
func (c *Classifier) Classify(before, after game.Score) game.MoveQuality {
	// Inside a forced mate against the mover every continuation is lost;
	// only the move that created the mate counts as a blunder. The rest of
	// the sequence gets a neutral label: not a fresh blunder, but not an
	// engine-best move feeding the best-move rate either.
	if before.MateIn < 0 {
		return game.QualityGood
	}

	// A move that hands the opponent a forced mate, or converts a winning or
	// drawish position into a lost one, is a blunder regardless of delta.
	if after.MateIn < 0 {
		return game.QualityBlunder
	}
	beforeCP := before.Centipawns()
	afterCP := after.Centipawns()
	if beforeCP >= c.winningFloor && afterCP <= c.losingCeil {
		return game.QualityBlunder
	}

	delta := beforeCP - afterCP
	switch {
	case delta < c.bands.Good:
		return game.QualityBest
	case delta < c.bands.Inaccuracy:
		return game.QualityGood
	case delta < c.bands.Mistake:
		return game.QualityInaccuracy
	case delta < c.bands.Blunder:
		return game.QualityMistake
	default:
		return game.QualityBlunder
	}
}
