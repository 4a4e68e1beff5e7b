package repository

import (
	"context"
	"database/sql"
	"time"

	"royale-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(db *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{db: db, logger: logger}
}

const playerColumns = `tag, name, trophies, rating, wins, losses, crowns,
	crowns_against, current_streak, longest_streak, created_at, updated_at`

// UpsertProfile creates or refreshes a player's identity fields. Rating
// and aggregate counters are never touched here; the rating transaction
// owns those.
func (r *PlayerRepository) UpsertProfile(ctx context.Context, tag, name string, trophies int, initialRating float64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (tag, name, trophies, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			name = excluded.name,
			trophies = excluded.trophies,
			updated_at = excluded.updated_at
	`, tag, name, trophies, initialRating, now, now)
	if err != nil {
		r.logger.Error().Err(err).Str("tag", tag).Msg("failed to upsert player profile")
		return err
	}
	return nil
}

// Get returns a player by tag; sql.ErrNoRows when unknown.
func (r *PlayerRepository) Get(ctx context.Context, tag string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE tag = ?`, tag)
	return scanPlayer(row)
}

// GetAll returns every player in standings order: rating descending, then
// wins descending, then tag ascending so equal records rank predictably.
func (r *PlayerRepository) GetAll(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		ORDER BY rating DESC, wins DESC, tag ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(
		&p.Tag, &p.Name, &p.Trophies, &p.Rating, &p.Wins, &p.Losses,
		&p.Crowns, &p.CrownsAgainst, &p.CurrentStreak, &p.LongestStreak,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
