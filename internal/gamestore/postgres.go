package gamestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/chessmirror/chessmirror/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	platform   text        NOT NULL,
	owner      text        NOT NULL,
	id         text        NOT NULL,
	side       text        NOT NULL DEFAULT 'white',
	white      text        NOT NULL DEFAULT '',
	black      text        NOT NULL DEFAULT '',
	result     text        NOT NULL DEFAULT '',
	played_at  timestamptz,
	PRIMARY KEY (platform, owner, id)
);

CREATE TABLE IF NOT EXISTS moves (
	platform      text    NOT NULL,
	owner         text    NOT NULL,
	game_id       text    NOT NULL,
	idx           integer NOT NULL,
	uci           text    NOT NULL DEFAULT '',
	piece         text    NOT NULL DEFAULT '',
	fen_after     text    NOT NULL,
	capture       boolean NOT NULL DEFAULT false,
	is_check      boolean NOT NULL DEFAULT false,
	time_spent_ms integer NOT NULL DEFAULT 0,
	PRIMARY KEY (platform, owner, game_id, idx)
);

CREATE TABLE IF NOT EXISTS analyses (
	platform   text        NOT NULL,
	owner      text        NOT NULL,
	game_id    text        NOT NULL,
	traits     jsonb       NOT NULL,
	evals      jsonb       NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (platform, owner, game_id)
);
`

// Postgres implements Store over a Postgres database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the database and ensures the schema exists.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) FetchGame(ctx context.Context, user, platform, gameID string) (*game.Game, error) {
	g := &game.Game{ID: gameID, User: user, Platform: platform}
	var playedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT side, white, black, result, played_at
		FROM games WHERE platform = $1 AND owner = $2 AND id = $3`,
		platform, user, gameID,
	).Scan(&g.Side, &g.White, &g.Black, &g.Result, &playedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch game: %w", err)
	}
	if playedAt.Valid {
		g.PlayedAt = playedAt.Time
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT uci, piece, fen_after, capture, is_check, time_spent_ms
		FROM moves WHERE platform = $1 AND owner = $2 AND game_id = $3
		ORDER BY idx`,
		platform, user, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch moves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m      game.Move
			piece  string
			timeMS int
		)
		if err := rows.Scan(&m.UCI, &piece, &m.FENAfter, &m.Capture, &m.Check, &timeMS); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		if piece != "" {
			m.Piece = piece[0]
		}
		m.TimeSpent = time.Duration(timeMS) * time.Millisecond
		g.Moves = append(g.Moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return g, nil
}

func (p *Postgres) ListGameIDs(ctx context.Context, user, platform string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM games WHERE platform = $1 AND owner = $2
		ORDER BY played_at NULLS LAST, id`,
		platform, user)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) SaveGame(ctx context.Context, g *game.Game) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var playedAt any
	if !g.PlayedAt.IsZero() {
		playedAt = g.PlayedAt
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (platform, owner, id, side, white, black, result, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (platform, owner, id) DO NOTHING`,
		g.Platform, g.User, g.ID, g.Side, g.White, g.Black, g.Result, playedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for i, m := range g.Moves {
		piece := ""
		if m.Piece != 0 {
			piece = string(m.Piece)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO moves (platform, owner, game_id, idx, uci, piece, fen_after, capture, is_check, time_spent_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (platform, owner, game_id, idx) DO NOTHING`,
			g.Platform, g.User, g.ID, i, m.UCI, piece, m.FENAfter, m.Capture, m.Check,
			int(m.TimeSpent/time.Millisecond))
		if err != nil {
			return fmt.Errorf("insert move %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) SaveAnalysis(ctx context.Context, user, platform, gameID string, traits *game.TraitScoreSet, evals []game.MoveEvaluation) error {
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}
	evalsJSON, err := json.Marshal(evals)
	if err != nil {
		return fmt.Errorf("marshal evals: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO analyses (platform, owner, game_id, traits, evals, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (platform, owner, game_id)
		DO UPDATE SET traits = EXCLUDED.traits, evals = EXCLUDED.evals, created_at = now()`,
		platform, user, gameID, traitsJSON, evalsJSON)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (p *Postgres) GetAnalysis(ctx context.Context, user, platform, gameID string) (*game.TraitScoreSet, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT traits FROM analyses
		WHERE platform = $1 AND owner = $2 AND game_id = $3`,
		platform, user, gameID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	var traits game.TraitScoreSet
	if err := json.Unmarshal(raw, &traits); err != nil {
		return nil, fmt.Errorf("unmarshal traits: %w", err)
	}
	return &traits, nil
}

func (p *Postgres) UserStats(ctx context.Context, user, platform string) (*game.UserStats, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT traits FROM analyses WHERE platform = $1 AND owner = $2`,
		platform, user)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	defer rows.Close()

	var sets []*game.TraitScoreSet
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan traits: %w", err)
		}
		var t game.TraitScoreSet
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("unmarshal traits: %w", err)
		}
		sets = append(sets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return aggregate(sets), nil
}

func (p *Postgres) Close() error { return p.db.Close() }
