package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/voyager/go/internal/multiplayer"
	"github.com/mcdev12/voyager/go/internal/profiles"
)

// statusBoard hands the game loop's latest status to HTTP handlers
type statusBoard struct {
	mu      sync.RWMutex
	status  multiplayer.Status
	updated time.Time
}

func (b *statusBoard) Publish(s multiplayer.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
	b.updated = time.Now()
}

func (b *statusBoard) Get() multiplayer.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *statusBoard) Updated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

func setupServer(addr string, board *statusBoard, store profiles.Store) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, board, store)

	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, board *statusBoard, store profiles.Store) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("GET /debug/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     board.Get(),
			"updated_at": board.Updated(),
		})
	})

	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, board.Get().Connection)
	})

	mux.HandleFunc("GET /debug/highscores", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile store not configured"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		session := r.URL.Query().Get("session_id")
		if session == "" {
			session = board.Get().SessionID
		}
		scores, err := store.HighScores(r.Context(), session, limit)
		if err != nil {
			log.Warn().Err(err).Msg("high score lookup failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, scores)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
