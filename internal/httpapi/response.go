package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chessmirror/chessmirror/internal/game"
)

type submitRequest struct {
	User     string   `json:"user"`
	Platform string   `json:"platform"`
	GameIDs  []string `json:"game_ids,omitempty"`
	All      bool     `json:"all,omitempty"`
	Kind     string   `json:"kind,omitempty"`
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Coalesced bool   `json:"coalesced"`
}

type progressResponse struct {
	Phase      string    `json:"phase"`
	GamesTotal int       `json:"games_total"`
	GamesDone  int       `json:"games_done"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type resultResponse struct {
	GameID string              `json:"game_id"`
	Source string              `json:"source"` // "cache" or "store"
	Traits *game.TraitScoreSet `json:"traits"`
}

type statsResponse struct {
	Source string          `json:"source"`
	Stats  *game.UserStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
