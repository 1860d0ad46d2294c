// Package gamestore is the port to durable game and analysis storage. The
// pipeline reads games from it and writes finished trait artifacts back;
// durability guarantees live behind this interface, not in the core.
package gamestore

import (
	"context"
	"errors"

	"github.com/chessmirror/chessmirror/internal/game"
)

// ErrNotFound means the requested game or analysis does not exist.
var ErrNotFound = errors.New("gamestore: not found")

// Store is the contract consumed by the scheduler and the HTTP layer.
type Store interface {
	// FetchGame returns the stored game or ErrNotFound.
	FetchGame(ctx context.Context, user, platform, gameID string) (*game.Game, error)

	// ListGameIDs returns all stored game ids for the owner, oldest first.
	ListGameIDs(ctx context.Context, user, platform string) ([]string, error)

	// SaveGame stores a game; used by the importer.
	SaveGame(ctx context.Context, g *game.Game) error

	// SaveAnalysis persists a finished analysis for one game.
	SaveAnalysis(ctx context.Context, user, platform, gameID string, traits *game.TraitScoreSet, evals []game.MoveEvaluation) error

	// GetAnalysis returns the stored artifact or ErrNotFound.
	GetAnalysis(ctx context.Context, user, platform, gameID string) (*game.TraitScoreSet, error)

	// UserStats aggregates trait averages across the owner's analyses.
	UserStats(ctx context.Context, user, platform string) (*game.UserStats, error)

	Close() error
}

func aggregate(sets []*game.TraitScoreSet) *game.UserStats {
	stats := &game.UserStats{GameCount: len(sets)}
	if len(sets) == 0 {
		return stats
	}
	for _, t := range sets {
		stats.Tactical += t.Tactical
		stats.Positional += t.Positional
		stats.Aggressive += t.Aggressive
		stats.Patient += t.Patient
		stats.Novelty += t.Novelty
		stats.Staleness += t.Staleness
		stats.Histogram.Best += t.Histogram.Best
		stats.Histogram.Good += t.Histogram.Good
		stats.Histogram.Inaccuracy += t.Histogram.Inaccuracy
		stats.Histogram.Mistake += t.Histogram.Mistake
		stats.Histogram.Blunder += t.Histogram.Blunder
	}
	n := float64(len(sets))
	stats.Tactical /= n
	stats.Positional /= n
	stats.Aggressive /= n
	stats.Patient /= n
	stats.Novelty /= n
	stats.Staleness /= n
	return stats
}
