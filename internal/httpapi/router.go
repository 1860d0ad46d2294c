// Package httpapi exposes the analysis pipeline over HTTP: job submission
// and cancellation, progress polling, and artifact reads that prefer the
// validated cache over the store.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chessmirror/chessmirror/internal/cache"
	"github.com/chessmirror/chessmirror/internal/game"
	"github.com/chessmirror/chessmirror/internal/gamestore"
	"github.com/chessmirror/chessmirror/internal/metrics"
	"github.com/chessmirror/chessmirror/internal/progress"
	"github.com/chessmirror/chessmirror/internal/sched"
)

// DefaultKind is the analysis kind assumed when a request names none.
const DefaultKind = "traits"

// Submitter is the scheduler surface the API needs.
type Submitter interface {
	Submit(req sched.Request) (*sched.Handle, error)
	Cancel(user, platform, kind string) bool
}

// Handler serves the analysis API.
type Handler struct {
	sched   Submitter
	tracker *progress.Tracker
	cache   *cache.Cache
	store   gamestore.Store
	ttl     time.Duration
	log     zerolog.Logger
}

// NewRouter wires the analysis endpoints, metrics, and pprof behind the
// middleware chain.
func NewRouter(log zerolog.Logger, sub Submitter, tracker *progress.Tracker, c *cache.Cache, store gamestore.Store, resultTTL time.Duration) http.Handler {
	h := &Handler{
		sched:   sub,
		tracker: tracker,
		cache:   c,
		store:   store,
		ttl:     resultTTL,
		log:     log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.health).Methods(http.MethodGet)

	r.HandleFunc("/v1/analysis", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/v1/analysis", h.cancel).Methods(http.MethodDelete)
	r.HandleFunc("/v1/analysis/progress", h.progress).Methods(http.MethodGet)
	r.HandleFunc("/v1/analysis/result", h.result).Methods(http.MethodGet)
	r.HandleFunc("/v1/analysis/stats", h.userStats).Methods(http.MethodGet)

	r.HandleFunc("/v1/stats", h.serviceStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	// pprof endpoints
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, r)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Kind == "" {
		body.Kind = DefaultKind
	}

	handle, err := h.sched.Submit(sched.Request{
		User:     body.User,
		Platform: body.Platform,
		GameIDs:  body.GameIDs,
		All:      body.All,
		Kind:     body.Kind,
	})
	if err != nil {
		switch {
		case errors.Is(err, sched.ErrInvalidRequest), errors.Is(err, sched.ErrEmptyTarget):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, sched.ErrBatchTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, sched.ErrOwnerBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("submit failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:     handle.ID(),
		Status:    handle.Status().String(),
		Coalesced: handle.Coalesced,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	user, platform, ok := ownerParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user and platform are required")
		return
	}
	kind := kindParam(r)

	if !h.sched.Cancel(user, platform, kind) {
		writeError(w, http.StatusNotFound, "no live job for that identity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	user, platform, ok := ownerParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user and platform are required")
		return
	}

	state := h.tracker.Get(progress.Identity{User: user, Platform: platform, Kind: kindParam(r)})
	writeJSON(w, http.StatusOK, progressResponse{
		Phase:      state.Phase.String(),
		GamesTotal: state.GamesTotal,
		GamesDone:  state.GamesDone,
		StartedAt:  state.StartedAt,
		Error:      state.Error,
	})
}

// result reads one game's artifact, cache first. A store hit refills the
// cache through the same validator the writer uses.
func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	user, platform, ok := ownerParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user and platform are required")
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "game_id is required")
		return
	}

	owner := cache.OwnerKey(user, platform)
	key := cache.ResultKey(owner, gameID)
	if v, ok := h.cache.Get(key); ok {
		if set, ok := v.(*game.TraitScoreSet); ok {
			writeJSON(w, http.StatusOK, resultResponse{GameID: gameID, Source: "cache", Traits: set})
			return
		}
	}

	set, err := h.store.GetAnalysis(r.Context(), user, platform, gameID)
	if err != nil {
		if errors.Is(err, gamestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no analysis for that game")
			return
		}
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Str("game_id", gameID).Msg("get analysis")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.cache.Put(key, owner, set, h.ttl, game.ValidTraitScoreSet)
	writeJSON(w, http.StatusOK, resultResponse{GameID: gameID, Source: "store", Traits: set})
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	user, platform, ok := ownerParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user and platform are required")
		return
	}

	owner := cache.OwnerKey(user, platform)
	key := cache.StatsKey(owner)
	if v, ok := h.cache.Get(key); ok {
		if stats, ok := v.(*game.UserStats); ok {
			writeJSON(w, http.StatusOK, statsResponse{Source: "cache", Stats: stats})
			return
		}
	}

	stats, err := h.store.UserStats(r.Context(), user, platform)
	if err != nil {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("user stats")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.cache.Put(key, owner, stats, h.ttl, game.ValidUserStats)
	writeJSON(w, http.StatusOK, statsResponse{Source: "store", Stats: stats})
}

func (h *Handler) serviceStats(w http.ResponseWriter, r *http.Request) {
	cs := h.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"cache_entries":    cs.Entries,
		"cache_hits":       cs.Hits,
		"cache_misses":     cs.Misses,
		"cache_rejected":   cs.Rejected,
		"progress_entries": h.tracker.Len(),
	})
}

func ownerParams(r *http.Request) (user, platform string, ok bool) {
	q := r.URL.Query()
	user = q.Get("user")
	platform = q.Get("platform")
	return user, platform, user != "" && platform != ""
}

func kindParam(r *http.Request) string {
	if k := r.URL.Query().Get("kind"); k != "" {
		return k
	}
	return DefaultKind
}
