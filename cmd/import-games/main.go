// Command import-games loads a PGN archive into the game store so its games
// can be targeted by analysis jobs. Only games involving the named user are
// kept; each move is stored with its resulting position and the facts the
// trait scorer needs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/google/uuid"

	"github.com/chessmirror/chessmirror/internal/config"
	"github.com/chessmirror/chessmirror/internal/game"
	"github.com/chessmirror/chessmirror/internal/gamestore"
	"github.com/chessmirror/chessmirror/internal/logx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logx.NewLogger("")
		l.Fatal().Err(err).Msg("load config")
	}

	var (
		inputPath = flag.String("pgn", "", "Path to PGN file (supports .zst)")
		user      = flag.String("user", "", "Username whose games to import")
		platform  = flag.String("platform", "lichess", "Platform the games came from")
		ratingMin = flag.Int("rating-min", 0, "Skip games where either player is below this rating")
		maxGames  = flag.Int("max-games", 0, "Maximum games to import (0 = unlimited)")
		logLevel  = flag.String("log-level", cfg.LogLevel, "log level")
	)
	flag.Parse()

	if *inputPath == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "Usage: import-games --pgn <file.pgn[.zst]> --user <name> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger(*logLevel)

	var store gamestore.Store
	switch cfg.Store.Backend {
	case "postgres":
		store, err = gamestore.NewPostgres(cfg.Store.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("open postgres store")
		}
	default:
		logger.Fatal().Str("backend", cfg.Store.Backend).Msg("import requires the postgres store backend")
	}
	defer store.Close()

	logger.Info().
		Str("pgn", *inputPath).
		Str("user", *user).
		Str("platform", *platform).
		Int("rating_min", *ratingMin).
		Msg("starting import")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var imported, skipped int64
	startTime := time.Now()
	lastLog := time.Now()

	parser := pgn.Games(*inputPath)

	stopped := false
gameLoop:
	for pg := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				logger.Info().Msg("interrupted, stopping parser...")
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}

		if *maxGames > 0 && imported >= int64(*maxGames) {
			logger.Info().Int64("games", imported).Msg("reached max games limit")
			parser.Stop()
			break gameLoop
		}

		g, reason := convertGame(pg, *user, *platform, *ratingMin)
		if g == nil {
			skipped++
			logger.Debug().Str("reason", reason).Msg("skipped game")
			continue
		}

		if err := store.SaveGame(ctx, g); err != nil {
			logger.Warn().Err(err).Str("game_id", g.ID).Msg("save game failed")
			skipped++
			continue
		}
		imported++

		if time.Since(lastLog) > 10*time.Second {
			elapsed := time.Since(startTime)
			logger.Info().
				Int64("imported", imported).
				Int64("skipped", skipped).
				Float64("games_per_sec", float64(imported)/elapsed.Seconds()).
				Msg("import progress")
			lastLog = time.Now()
		}
	}

	if err := parser.Err(); err != nil {
		logger.Error().Err(err).Msg("parser error")
	}

	logger.Info().
		Int64("imported", imported).
		Int64("skipped", skipped).
		Dur("elapsed", time.Since(startTime)).
		Msg("import complete")
}

// convertGame replays one parsed game into the stored form. Returns nil with
// a reason when the game should be skipped.
func convertGame(pg *pgn.Game, user, platform string, ratingMin int) (*game.Game, string) {
	white := pg.Tags["White"]
	black := pg.Tags["Black"]

	var side string
	switch {
	case strings.EqualFold(white, user):
		side = "white"
	case strings.EqualFold(black, user):
		side = "black"
	default:
		return nil, "user not a player"
	}

	result := pg.Tags["Result"]
	switch result {
	case "1-0", "0-1", "1/2-1/2":
	default:
		return nil, "unknown result"
	}

	if ratingMin > 0 {
		if parseRating(pg.Tags["WhiteElo"]) < ratingMin || parseRating(pg.Tags["BlackElo"]) < ratingMin {
			return nil, "below rating floor"
		}
	}

	g := &game.Game{
		ID:       gameID(pg),
		User:     user,
		Platform: platform,
		White:    white,
		Black:    black,
		Result:   result,
		Side:     side,
		PlayedAt: parsePlayedAt(pg.Tags),
	}

	pos := pgn.NewStartingPosition()
	prevFEN := pos.ToFEN()
	for _, mv := range pg.Moves {
		prev, whiteToMove, err := parseFEN(prevFEN)
		if err != nil {
			return nil, "bad position in source"
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, "illegal move in source"
		}
		fenAfter := pos.ToFEN()
		cur, _, err := parseFEN(fenAfter)
		if err != nil {
			return nil, "bad position in source"
		}
		facts, err := diffMove(prev, cur, whiteToMove)
		if err != nil {
			return nil, "unreadable move in source"
		}

		g.Moves = append(g.Moves, game.Move{
			UCI:      facts.UCI,
			Piece:    facts.Piece,
			FENAfter: fenAfter,
			Capture:  facts.Capture,
			Check:    pos.IsInCheck(),
		})
		prevFEN = fenAfter
	}
	if len(g.Moves) == 0 {
		return nil, "no moves"
	}
	return g, ""
}

// gameID prefers the platform's own id from the Site tag (the tail of a
// lichess or chess.com URL); games without one get a random id.
func gameID(pg *pgn.Game) string {
	site := pg.Tags["Site"]
	if i := strings.LastIndex(site, "/"); i >= 0 && i < len(site)-1 {
		return site[i+1:]
	}
	if id := pg.Tags["GameId"]; id != "" {
		return id
	}
	return uuid.NewString()
}

func parsePlayedAt(tags map[string]string) time.Time {
	if d, t := tags["UTCDate"], tags["UTCTime"]; d != "" && t != "" {
		if ts, err := time.Parse("2006.01.02 15:04:05", d+" "+t); err == nil {
			return ts
		}
	}
	if d := tags["Date"]; d != "" {
		if ts, err := time.Parse("2006.01.02", d); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
