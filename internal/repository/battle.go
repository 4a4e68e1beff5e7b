package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"royale-tracker/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrDuplicateBattle is returned when a battle's match id has already been
// recorded. Expected during normal operation: polling windows overlap.
var ErrDuplicateBattle = errors.New("battle already recorded")

type BattleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBattleRepository(db *sql.DB, logger zerolog.Logger) *BattleRepository {
	return &BattleRepository{db: db, logger: logger}
}

const battleColumns = `match_id, timestamp, player_one, player_two, winner,
	loser, winner_crowns, loser_crowns, battle_type, delta_winner,
	delta_loser, created_at`

// Apply records a novel battle and its rating effects in one transaction.
// Both participants are created at initialRating on first appearance. The
// update callback mutates the two player rows and sets the battle's rating
// deltas; everything commits together or not at all. A duplicate match id,
// found by check or by racing another cycle into the PRIMARY KEY, returns
// ErrDuplicateBattle with no state written.
func (r *BattleRepository) Apply(
	ctx context.Context,
	battle *domain.Battle,
	initialRating float64,
	update func(winner, loser *domain.Player),
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM battles WHERE match_id = ?`, battle.MatchID).Scan(&exists)
	if err == nil {
		return ErrDuplicateBattle
	}
	if err != sql.ErrNoRows {
		return err
	}

	winner, err := getOrCreatePlayer(ctx, tx, battle.Winner, initialRating)
	if err != nil {
		return fmt.Errorf("failed to load winner %s: %w", battle.Winner, err)
	}
	loser, err := getOrCreatePlayer(ctx, tx, battle.Loser, initialRating)
	if err != nil {
		return fmt.Errorf("failed to load loser %s: %w", battle.Loser, err)
	}

	update(winner, loser)

	if battle.CreatedAt.IsZero() {
		battle.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO battles (`+battleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		battle.MatchID, battle.Timestamp.UTC(), battle.PlayerOne, battle.PlayerTwo,
		battle.Winner, battle.Loser, battle.WinnerCrowns, battle.LoserCrowns,
		battle.BattleType, battle.DeltaWinner, battle.DeltaLoser, battle.CreatedAt,
	)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicateBattle
		}
		return fmt.Errorf("failed to insert battle %s: %w", battle.MatchID, err)
	}

	for _, p := range []*domain.Player{winner, loser} {
		if err := updatePlayerStats(ctx, tx, p); err != nil {
			return fmt.Errorf("failed to update player %s: %w", p.Tag, err)
		}
	}

	return tx.Commit()
}

func getOrCreatePlayer(ctx context.Context, tx *sql.Tx, tag string, initialRating float64) (*domain.Player, error) {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO players (tag, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tag) DO NOTHING
	`, tag, initialRating, now, now)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE tag = ?`, tag)
	return scanPlayer(row)
}

func updatePlayerStats(ctx context.Context, tx *sql.Tx, p *domain.Player) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE players SET
			rating = ?,
			wins = ?,
			losses = ?,
			crowns = ?,
			crowns_against = ?,
			current_streak = ?,
			longest_streak = ?,
			updated_at = ?
		WHERE tag = ?
	`,
		p.Rating, p.Wins, p.Losses, p.Crowns, p.CrownsAgainst,
		p.CurrentStreak, p.LongestStreak, time.Now().UTC(), p.Tag,
	)
	return err
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Exists reports whether a match id has been recorded.
func (r *BattleRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM battles WHERE match_id = ?`, matchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Recent returns the most recent battles, newest first.
func (r *BattleRepository) Recent(ctx context.Context, limit int) ([]domain.Battle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		ORDER BY timestamp DESC, match_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectBattles(rows)
}

// Since returns battles with timestamp >= ts in replay order.
func (r *BattleRepository) Since(ctx context.Context, ts time.Time) ([]domain.Battle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, match_id ASC
	`, ts.UTC())
	if err != nil {
		return nil, err
	}
	return collectBattles(rows)
}

// All returns the full battle log in replay order: timestamp ascending,
// match id breaking ties.
func (r *BattleRepository) All(ctx context.Context) ([]domain.Battle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		ORDER BY timestamp ASC, match_id ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectBattles(rows)
}

// ByPlayer returns a player's battles in replay order.
func (r *BattleRepository) ByPlayer(ctx context.Context, tag string) ([]domain.Battle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+battleColumns+`
		FROM battles
		WHERE player_one = ? OR player_two = ?
		ORDER BY timestamp ASC, match_id ASC
	`, tag, tag)
	if err != nil {
		return nil, err
	}
	return collectBattles(rows)
}

// Count returns the total number of recorded battles.
func (r *BattleRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM battles`).Scan(&n)
	return n, err
}

// LatestTimestamp returns the newest battle timestamp, or nil when the log
// is empty.
func (r *BattleRepository) LatestTimestamp(ctx context.Context) (*time.Time, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM battles ORDER BY timestamp DESC LIMIT 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func collectBattles(rows *sql.Rows) ([]domain.Battle, error) {
	defer rows.Close()

	var battles []domain.Battle
	for rows.Next() {
		var b domain.Battle
		err := rows.Scan(
			&b.MatchID, &b.Timestamp, &b.PlayerOne, &b.PlayerTwo, &b.Winner,
			&b.Loser, &b.WinnerCrowns, &b.LoserCrowns, &b.BattleType,
			&b.DeltaWinner, &b.DeltaLoser, &b.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		battles = append(battles, b)
	}
	return battles, rows.Err()
}
