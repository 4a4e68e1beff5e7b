package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"royale-tracker/internal/constants"
	"royale-tracker/internal/domain"
	"royale-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ErrPlayerNotFound is returned for tags with no stored record.
var ErrPlayerNotFound = errors.New("player not found")

// Standing is one leaderboard row.
type Standing struct {
	Rank          int     `json:"rank"`
	Tag           string  `json:"tag"`
	Name          string  `json:"name"`
	Rating        float64 `json:"rating"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	Crowns        int     `json:"crowns"`
	CrownDiff     int     `json:"crown_diff"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	Trophies      int     `json:"trophies"`
}

// Leaderboard is the aggregated standings view.
type Leaderboard struct {
	Players      []Standing `json:"players"`
	TotalMatches int        `json:"total_matches"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// PlayerStats is the single-player projection, a standing plus recent form.
type PlayerStats struct {
	Standing
	RecentForm []string `json:"recent_form"`
}

// HeadToHead is one opponent's slice of a player's record.
type HeadToHead struct {
	Opponent      string  `json:"opponent"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	CrownsFor     int     `json:"crowns_for"`
	CrownsAgainst int     `json:"crowns_against"`
}

// LeaderboardService materializes standings from persisted state. Strictly
// read-side: it never mutates ratings or the battle log.
type LeaderboardService struct {
	players *repository.PlayerRepository
	battles *repository.BattleRepository
	logger  zerolog.Logger
}

func NewLeaderboardService(
	players *repository.PlayerRepository,
	battles *repository.BattleRepository,
	logger zerolog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		players: players,
		battles: battles,
		logger:  logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Get returns the full standings. Ordering comes from the player query:
// rating desc, wins desc, tag asc. last_updated is the newest battle
// timestamp, so a failed cycle shows up only as staleness.
func (s *LeaderboardService) Get(ctx context.Context) (*Leaderboard, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	players, err := s.players.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	total, err := s.battles.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count battles: %w", err)
	}

	latest, err := s.battles.LatestTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest battle: %w", err)
	}

	board := &Leaderboard{
		Players:      make([]Standing, len(players)),
		TotalMatches: total,
	}
	if latest != nil {
		board.LastUpdated = *latest
	}
	for i, p := range players {
		board.Players[i] = toStanding(p, i+1)
	}
	return board, nil
}

// RecentBattles returns the newest battles, capped at the configured limit.
func (s *LeaderboardService) RecentBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	if limit <= 0 {
		limit = constants.DefaultRecentBattleLimit
	}
	if limit > constants.MaxRecentBattleLimit {
		limit = constants.MaxRecentBattleLimit
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.battles.Recent(ctx, limit)
}

// Player returns a single player's stats with their recent W/L form.
func (s *LeaderboardService) Player(ctx context.Context, tag string) (*PlayerStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	tag = cleanTag(tag)
	player, err := s.players.Get(ctx, tag)
	if err == sql.ErrNoRows {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %s: %w", tag, err)
	}

	battles, err := s.battles.ByPlayer(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to load battles for %s: %w", tag, err)
	}

	return &PlayerStats{
		Standing:   toStanding(*player, 0),
		RecentForm: recentForm(battles, tag, constants.RecentFormLength),
	}, nil
}

// HeadToHead groups a player's battles by opponent. Pure read over the
// battle log.
func (s *LeaderboardService) HeadToHead(ctx context.Context, tag string) ([]HeadToHead, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	tag = cleanTag(tag)
	if _, err := s.players.Get(ctx, tag); err == sql.ErrNoRows {
		return nil, ErrPlayerNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load player %s: %w", tag, err)
	}

	battles, err := s.battles.ByPlayer(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to load battles for %s: %w", tag, err)
	}

	byOpponent := make(map[string]*HeadToHead)
	for _, b := range battles {
		opponent := b.Opponent(tag)
		if opponent == "" {
			continue
		}
		rec, ok := byOpponent[opponent]
		if !ok {
			rec = &HeadToHead{Opponent: opponent}
			byOpponent[opponent] = rec
		}
		if b.Winner == tag {
			rec.Wins++
			rec.CrownsFor += b.WinnerCrowns
			rec.CrownsAgainst += b.LoserCrowns
		} else {
			rec.Losses++
			rec.CrownsFor += b.LoserCrowns
			rec.CrownsAgainst += b.WinnerCrowns
		}
	}

	records := make([]HeadToHead, 0, len(byOpponent))
	for _, rec := range byOpponent {
		rec.WinRate = winRate(rec.Wins, rec.Losses)
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		gi := records[i].Wins + records[i].Losses
		gj := records[j].Wins + records[j].Losses
		if gi != gj {
			return gi > gj
		}
		return records[i].Opponent < records[j].Opponent
	})
	return records, nil
}

func toStanding(p domain.Player, rank int) Standing {
	return Standing{
		Rank:          rank,
		Tag:           p.Tag,
		Name:          p.Name,
		Rating:        p.Rating,
		Wins:          p.Wins,
		Losses:        p.Losses,
		WinRate:       winRate(p.Wins, p.Losses),
		Crowns:        p.Crowns,
		CrownDiff:     p.Crowns - p.CrownsAgainst,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
		Trophies:      p.Trophies,
	}
}

func winRate(wins, losses int) float64 {
	total := wins + losses
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// recentForm returns W/L markers for the player's last n battles, newest
// first.
func recentForm(battles []domain.Battle, tag string, n int) []string {
	form := make([]string, 0, n)
	for i := len(battles) - 1; i >= 0 && len(form) < n; i-- {
		if battles[i].Winner == tag {
			form = append(form, "W")
		} else {
			form = append(form, "L")
		}
	}
	return form
}
