// Package game holds the domain types shared across the analysis pipeline:
// games and their moves, engine evaluations, move quality labels, and the
// trait score artifacts produced per analyzed game.
package game

import "time"

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Game is one stored game. Immutable for the duration of an analysis job.
type Game struct {
	ID       string
	User     string // owning user (opaque key from the auth layer)
	Platform string
	White    string
	Black    string
	Result   string // "1-0", "0-1", "1/2-1/2"
	Side     string // which side the owning user played: "white" or "black"
	PlayedAt time.Time
	Moves    []Move
}

// UserIsWhite reports whether the owning user played the white pieces.
func (g *Game) UserIsWhite() bool { return g.Side != "black" }

// Move is one half-move as stored by the game store.
type Move struct {
	UCI       string // coordinate notation, e.g. "e2e4"
	Piece     byte   // upper-case piece letter of the mover ('P', 'N', ...)
	FENAfter  string // position after the move
	Capture   bool
	Check     bool
	TimeSpent time.Duration // 0 = unknown
}

// Forcing reports whether the move is a forcing move (capture or check).
func (m Move) Forcing() bool { return m.Capture || m.Check }

// Score is an engine evaluation from the perspective of one side.
// MateIn > 0 means that side delivers mate in N moves; MateIn < 0 means it
// gets mated in N moves. When MateIn is 0 the evaluation is CP centipawns.
type Score struct {
	CP     int
	MateIn int
}

// MateMagnitude is the finite centipawn magnitude mate scores are mapped to
// before computing deltas. Shorter mates map closer to the bound.
const MateMagnitude = 10000

// Centipawns returns the score collapsed to a single finite centipawn value.
func (s Score) Centipawns() int {
	switch {
	case s.MateIn > 0:
		return MateMagnitude - s.MateIn
	case s.MateIn < 0:
		return -MateMagnitude - s.MateIn
	default:
		return s.CP
	}
}

// Negate flips the score to the opposite side's perspective.
func (s Score) Negate() Score {
	return Score{CP: -s.CP, MateIn: -s.MateIn}
}

// MoveEvaluation is the engine's verdict on one move. Produced once per move
// per job and never mutated. Both scores are from the mover's perspective.
type MoveEvaluation struct {
	Index         int
	ScoreBefore   Score
	ScoreAfter    Score
	Depth         int
	BestLine      []string
	LowConfidence bool // set when the evaluation was retried at reduced depth
}

// Delta is the centipawn loss of the move (positive = the mover lost ground).
func (e MoveEvaluation) Delta() int {
	return e.ScoreBefore.Centipawns() - e.ScoreAfter.Centipawns()
}

// MoveQuality labels how good a move was relative to the engine's choice.
type MoveQuality int

const (
	QualityBest MoveQuality = iota
	QualityGood
	QualityInaccuracy
	QualityMistake
	QualityBlunder
)

func (q MoveQuality) String() string {
	switch q {
	case QualityBest:
		return "best"
	case QualityGood:
		return "good"
	case QualityInaccuracy:
		return "inaccuracy"
	case QualityMistake:
		return "mistake"
	case QualityBlunder:
		return "blunder"
	default:
		return "unknown"
	}
}

// QualityHistogram counts moves per quality label.
type QualityHistogram struct {
	Best       int `json:"best"`
	Good       int `json:"good"`
	Inaccuracy int `json:"inaccuracy"`
	Mistake    int `json:"mistake"`
	Blunder    int `json:"blunder"`
}

// Add increments the bucket for q.
func (h *QualityHistogram) Add(q MoveQuality) {
	switch q {
	case QualityBest:
		h.Best++
	case QualityGood:
		h.Good++
	case QualityInaccuracy:
		h.Inaccuracy++
	case QualityMistake:
		h.Mistake++
	case QualityBlunder:
		h.Blunder++
	}
}

// Total returns the number of counted moves.
func (h QualityHistogram) Total() int {
	return h.Best + h.Good + h.Inaccuracy + h.Mistake + h.Blunder
}

// TraitScoreSet is the finished artifact for one analyzed game: six bounded
// personality trait scores plus the histogram and timing aggregates they
// were derived from.
type TraitScoreSet struct {
	Tactical   float64 `json:"tactical"`
	Positional float64 `json:"positional"`
	Aggressive float64 `json:"aggressive"`
	Patient    float64 `json:"patient"`
	Novelty    float64 `json:"novelty"`
	Staleness  float64 `json:"staleness"`

	Histogram         QualityHistogram `json:"histogram"`
	MoveCount         int              `json:"move_count"`
	AvgMoveTime       time.Duration    `json:"avg_move_time"`
	TimePressureMoves int              `json:"time_pressure_moves"`
}

// UserStats is the aggregate artifact across a user's analyzed games.
type UserStats struct {
	GameCount  int              `json:"game_count"`
	Tactical   float64          `json:"tactical"`
	Positional float64          `json:"positional"`
	Aggressive float64          `json:"aggressive"`
	Patient    float64          `json:"patient"`
	Novelty    float64          `json:"novelty"`
	Staleness  float64          `json:"staleness"`
	Histogram  QualityHistogram `json:"histogram"`
}

// JobIdentity dedups analysis jobs: at most one live job per identity.
type JobIdentity struct {
	User     string
	Platform string
	Target   string // fingerprint of the target game set
	Kind     string
}
