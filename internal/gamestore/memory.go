package gamestore

import (
	"context"
	"sort"
	"sync"

	"github.com/chessmirror/chessmirror/internal/game"
)

type ownerKey struct {
	user     string
	platform string
}

// Memory is an in-process Store used by tests and single-node runs.
type Memory struct {
	mu       sync.RWMutex
	games    map[ownerKey]map[string]*game.Game
	analyses map[ownerKey]map[string]*game.TraitScoreSet
	evals    map[ownerKey]map[string][]game.MoveEvaluation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		games:    make(map[ownerKey]map[string]*game.Game),
		analyses: make(map[ownerKey]map[string]*game.TraitScoreSet),
		evals:    make(map[ownerKey]map[string][]game.MoveEvaluation),
	}
}

func (m *Memory) FetchGame(_ context.Context, user, platform, gameID string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[ownerKey{user, platform}][gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (m *Memory) ListGameIDs(_ context.Context, user, platform string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.games[ownerKey{user, platform}]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) SaveGame(_ context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerKey{g.User, g.Platform}
	if m.games[key] == nil {
		m.games[key] = make(map[string]*game.Game)
	}
	m.games[key][g.ID] = g
	return nil
}

func (m *Memory) SaveAnalysis(_ context.Context, user, platform, gameID string, traits *game.TraitScoreSet, evals []game.MoveEvaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ownerKey{user, platform}
	if m.analyses[key] == nil {
		m.analyses[key] = make(map[string]*game.TraitScoreSet)
		m.evals[key] = make(map[string][]game.MoveEvaluation)
	}
	m.analyses[key][gameID] = traits
	m.evals[key][gameID] = evals
	return nil
}

func (m *Memory) GetAnalysis(_ context.Context, user, platform, gameID string) (*game.TraitScoreSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.analyses[ownerKey{user, platform}][gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *Memory) UserStats(_ context.Context, user, platform string) (*game.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.analyses[ownerKey{user, platform}]
	sets := make([]*game.TraitScoreSet, 0, len(byID))
	for _, t := range byID {
		sets = append(sets, t)
	}
	return aggregate(sets), nil
}

func (m *Memory) Close() error { return nil }
