package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/rating"
	"royale-tracker/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RoyaleClient is the slice of the API client the ingestion cycle needs.
type RoyaleClient interface {
	GetBattleLog(ctx context.Context, tag string) ([]domain.RawBattle, error)
	GetPlayer(ctx context.Context, tag string) (*domain.RawPlayer, error)
}

// CycleSummary reports what one ingestion cycle did.
type CycleSummary struct {
	CycleID      string
	Fetched      int
	NewBattles   int
	Duplicates   int
	Malformed    int
	FetchErrors  int
	AccessDenied int
}

// IngestService runs the fetch -> normalize -> dedupe -> rate -> persist
// pipeline for all tracked players.
type IngestService struct {
	client     RoyaleClient
	normalizer *Normalizer
	engine     *rating.Engine
	battles    *repository.BattleRepository
	players    *repository.PlayerRepository
	tags       []string
	logger     zerolog.Logger
}

func NewIngestService(
	client RoyaleClient,
	cfg *config.Config,
	battles *repository.BattleRepository,
	players *repository.PlayerRepository,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		client:     client,
		normalizer: NewNormalizer(cfg.PlayerTags),
		engine:     rating.NewEngine(cfg.KFactor, cfg.InitialRating),
		battles:    battles,
		players:    players,
		tags:       cfg.PlayerTags,
		logger:     logger.With().Str("component", "ingest").Logger(),
	}
}

// RunCycle executes one complete ingestion pass. Per-player fetch failures
// are isolated; a storage failure aborts the remainder of the cycle and
// leaves previously committed battles intact.
func (s *IngestService) RunCycle(ctx context.Context) (CycleSummary, error) {
	cycleID, _ := gonanoid.New()
	logger := s.logger.With().Str("cycle_id", cycleID).Logger()
	summary := CycleSummary{CycleID: cycleID}

	ctx, cancel := context.WithTimeout(ctx, constants.CycleTimeout)
	defer cancel()

	logger.Info().Int("player_count", len(s.tags)).Msg("ingestion cycle started")

	s.refreshProfiles(ctx, logger)

	raw := s.fetchBattleLogs(ctx, logger, &summary)
	summary.Fetched = len(raw)

	novel := s.normalizeBatch(logger, raw, &summary)

	// Chronological order is mandatory: ratings are path-dependent. Ties
	// fall back to the match id so replays are bit-for-bit stable.
	sort.Slice(novel, func(i, j int) bool {
		if !novel[i].Timestamp.Equal(novel[j].Timestamp) {
			return novel[i].Timestamp.Before(novel[j].Timestamp)
		}
		return novel[i].MatchID < novel[j].MatchID
	})

	for i := range novel {
		b := &novel[i]
		err := s.battles.Apply(ctx, b, s.engine.InitialRating, func(w, l *domain.Player) {
			applyBattle(s.engine, b, w, l)
		})
		switch {
		case err == nil:
			summary.NewBattles++
			logger.Debug().
				Str("match_id", b.MatchID).
				Str("winner", b.Winner).
				Str("loser", b.Loser).
				Float64("delta", b.DeltaWinner).
				Msg("battle recorded")
		case errors.Is(err, repository.ErrDuplicateBattle):
			summary.Duplicates++
		default:
			// Storage failure: stop here. Everything committed so far
			// stays committed; the rest is retried next cycle.
			logger.Error().Err(err).Str("match_id", b.MatchID).Msg("storage failure, aborting cycle")
			return summary, fmt.Errorf("storage failure on battle %s: %w", b.MatchID, err)
		}
	}

	logger.Info().
		Int("fetched", summary.Fetched).
		Int("new_battles", summary.NewBattles).
		Int("duplicates", summary.Duplicates).
		Int("malformed", summary.Malformed).
		Int("fetch_errors", summary.FetchErrors).
		Msg("ingestion cycle completed")

	return summary, nil
}

// refreshProfiles updates tracked players' display names and trophies.
// Best-effort: a failed profile fetch never blocks battle ingestion.
func (s *IngestService) refreshProfiles(ctx context.Context, logger zerolog.Logger) {
	for _, tag := range s.tags {
		profile, err := s.client.GetPlayer(ctx, tag)
		if err != nil {
			logger.Warn().Err(err).Str("tag", tag).Msg("profile refresh failed")
			continue
		}
		err = s.players.UpsertProfile(ctx, cleanTag(profile.Tag), profile.Name, profile.Trophies, s.engine.InitialRating)
		if err != nil {
			logger.Warn().Err(err).Str("tag", tag).Msg("profile upsert failed")
		}
	}
}

// fetchBattleLogs pulls every tracked player's battle log concurrently.
// The rate limiter inside the client is the real throttle, so concurrency
// here just overlaps waiting. Failures are per-player.
func (s *IngestService) fetchBattleLogs(ctx context.Context, logger zerolog.Logger, summary *CycleSummary) []domain.RawBattle {
	var mu sync.Mutex
	var raw []domain.RawBattle

	g, gCtx := errgroup.WithContext(ctx)
	for _, tag := range s.tags {
		g.Go(func() error {
			battles, err := s.client.GetBattleLog(gCtx, tag)
			if err != nil {
				mu.Lock()
				if errors.Is(err, api.ErrAccessDenied) {
					summary.AccessDenied++
					logger.Error().Err(err).Str("tag", tag).
						Msg("access denied fetching battle log, check API token / IP whitelist")
				} else {
					summary.FetchErrors++
					logger.Warn().Err(err).Str("tag", tag).Msg("battle log fetch failed, player skipped this cycle")
				}
				mu.Unlock()
				return nil
			}

			mu.Lock()
			raw = append(raw, battles...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return raw
}

// normalizeBatch converts raw records to canonical battles, dropping
// out-of-group matches, draws, malformed records, and in-batch duplicates
// (the same match appears in both participants' logs).
func (s *IngestService) normalizeBatch(logger zerolog.Logger, raw []domain.RawBattle, summary *CycleSummary) []domain.Battle {
	seen := make(map[string]struct{})
	var novel []domain.Battle

	for _, record := range raw {
		battle, err := s.normalizer.Normalize(record)
		if err != nil {
			summary.Malformed++
			logger.Warn().Err(err).Msg("malformed battle record dropped")
			continue
		}
		if battle == nil {
			continue
		}
		if _, dup := seen[battle.MatchID]; dup {
			continue
		}
		seen[battle.MatchID] = struct{}{}
		novel = append(novel, *battle)
	}

	return novel
}

// applyBattle mutates both players for a decisive battle and stamps the
// battle's immutable rating deltas. The winner's gain and the loser's loss
// are equal in magnitude.
func applyBattle(engine *rating.Engine, b *domain.Battle, winner, loser *domain.Player) {
	out := engine.Apply(winner.Rating, loser.Rating)
	b.DeltaWinner = out.Delta
	b.DeltaLoser = -out.Delta

	winner.Rating = out.WinnerRating
	loser.Rating = out.LoserRating

	winner.Wins++
	loser.Losses++

	winner.Crowns += b.WinnerCrowns
	winner.CrownsAgainst += b.LoserCrowns
	loser.Crowns += b.LoserCrowns
	loser.CrownsAgainst += b.WinnerCrowns

	if winner.CurrentStreak >= 0 {
		winner.CurrentStreak++
	} else {
		winner.CurrentStreak = 1
	}
	if winner.CurrentStreak > winner.LongestStreak {
		winner.LongestStreak = winner.CurrentStreak
	}

	if loser.CurrentStreak <= 0 {
		loser.CurrentStreak--
	} else {
		loser.CurrentStreak = -1
	}
}

// Replay rebuilds player aggregates from a battle log in its given order,
// starting from empty state. Replaying the full log must reproduce the
// stored standings exactly; the stored deltas are recomputed, never read.
func Replay(battles []domain.Battle, engine *rating.Engine) map[string]*domain.Player {
	players := make(map[string]*domain.Player)
	get := func(tag string) *domain.Player {
		if p, ok := players[tag]; ok {
			return p
		}
		p := &domain.Player{Tag: tag, Rating: engine.InitialRating}
		players[tag] = p
		return p
	}

	for i := range battles {
		b := battles[i]
		applyBattle(engine, &b, get(b.Winner), get(b.Loser))
	}
	return players
}
