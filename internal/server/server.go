// Package server exposes the leaderboard read API. Every endpoint is a
// pure projection over persisted state; the only write path is the
// asynchronous refresh trigger.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/service"

	"github.com/rs/zerolog"
)

type Server struct {
	leaderboard *service.LeaderboardService
	ingest      *service.IngestService
	logger      zerolog.Logger
}

func New(leaderboard *service.LeaderboardService, ingest *service.IngestService, logger zerolog.Logger) *Server {
	return &Server{
		leaderboard: leaderboard,
		ingest:      ingest,
		logger:      logger.With().Str("component", "server").Logger(),
	}
}

// Register mounts all routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /battles/recent", s.handleRecentBattles)
	mux.HandleFunc("GET /player/{tag}", s.handlePlayer)
	mux.HandleFunc("GET /player/{tag}/head-to-head", s.handleHeadToHead)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "friends-league-tracker",
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.leaderboard.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type battleView struct {
	MatchID      string    `json:"match_id"`
	Timestamp    time.Time `json:"timestamp"`
	PlayerOne    string    `json:"player_one"`
	PlayerTwo    string    `json:"player_two"`
	Winner       string    `json:"winner"`
	Loser        string    `json:"loser"`
	WinnerCrowns int       `json:"winner_crowns"`
	LoserCrowns  int       `json:"loser_crowns"`
	CrownDiff    int       `json:"crown_diff"`
	BattleType   string    `json:"battle_type"`
	DeltaWinner  float64   `json:"rating_delta_winner"`
	DeltaLoser   float64   `json:"rating_delta_loser"`
}

func (s *Server) handleRecentBattles(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultRecentBattleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	battles, err := s.leaderboard.RecentBattles(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]battleView, len(battles))
	for i, b := range battles {
		views[i] = toBattleView(b)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	stats, err := s.leaderboard.Player(r.Context(), r.PathValue("tag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHeadToHead(w http.ResponseWriter, r *http.Request) {
	records, err := s.leaderboard.HeadToHead(r.Context(), r.PathValue("tag"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleRefresh kicks off an out-of-band ingestion cycle. Racing the
// scheduled cycle is fine; deduplication is atomic at the storage layer.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.CycleTimeout)
		defer cancel()
		if _, err := s.ingest.RunCycle(ctx); err != nil {
			s.logger.Error().Err(err).Msg("manual refresh cycle failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrPlayerNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func toBattleView(b domain.Battle) battleView {
	return battleView{
		MatchID:      b.MatchID,
		Timestamp:    b.Timestamp,
		PlayerOne:    b.PlayerOne,
		PlayerTwo:    b.PlayerTwo,
		Winner:       b.Winner,
		Loser:        b.Loser,
		WinnerCrowns: b.WinnerCrowns,
		LoserCrowns:  b.LoserCrowns,
		CrownDiff:    b.CrownDiff(),
		BattleType:   b.BattleType,
		DeltaWinner:  b.DeltaWinner,
		DeltaLoser:   b.DeltaLoser,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
