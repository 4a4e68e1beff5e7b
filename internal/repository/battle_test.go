package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"royale-tracker/internal/database"
	"royale-tracker/internal/domain"

	"github.com/rs/zerolog"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testBattle(matchID string, ts time.Time) *domain.Battle {
	return &domain.Battle{
		MatchID:      matchID,
		Timestamp:    ts,
		PlayerOne:    "AAA",
		PlayerTwo:    "BBB",
		Winner:       "AAA",
		Loser:        "BBB",
		WinnerCrowns: 2,
		LoserCrowns:  1,
		BattleType:   "friendly",
	}
}

func ratingUpdate(winner, loser *domain.Player) {
	winner.Rating += 16
	winner.Wins++
	loser.Rating -= 16
	loser.Losses++
}

func TestApplyCreatesPlayersAtInitialRating(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())
	players := NewPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	b := testBattle("m1", time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	var seenWinner, seenLoser float64
	err := battles.Apply(ctx, b, 1200, func(w, l *domain.Player) {
		seenWinner, seenLoser = w.Rating, l.Rating
		ratingUpdate(w, l)
	})
	if err != nil {
		t.Fatalf("failed to apply battle: %v", err)
	}

	if seenWinner != 1200 || seenLoser != 1200 {
		t.Errorf("callback ratings = %v/%v, want 1200/1200", seenWinner, seenLoser)
	}

	winner, err := players.Get(ctx, "AAA")
	if err != nil {
		t.Fatalf("failed to load winner: %v", err)
	}
	if winner.Rating != 1216 || winner.Wins != 1 {
		t.Errorf("winner rating %v wins %d, want 1216 and 1", winner.Rating, winner.Wins)
	}
	loser, err := players.Get(ctx, "BBB")
	if err != nil {
		t.Fatalf("failed to load loser: %v", err)
	}
	if loser.Rating != 1184 || loser.Losses != 1 {
		t.Errorf("loser rating %v losses %d, want 1184 and 1", loser.Rating, loser.Losses)
	}
}

func TestApplyDuplicateLeavesStateUntouched(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())
	players := NewPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	b := testBattle("m1", time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	if err := battles.Apply(ctx, b, 1200, ratingUpdate); err != nil {
		t.Fatalf("failed to apply battle: %v", err)
	}

	err := battles.Apply(ctx, testBattle("m1", b.Timestamp), 1200, func(w, l *domain.Player) {
		t.Error("rating callback ran for a duplicate battle")
	})
	if !errors.Is(err, ErrDuplicateBattle) {
		t.Fatalf("err = %v, want ErrDuplicateBattle", err)
	}

	winner, err := players.Get(ctx, "AAA")
	if err != nil {
		t.Fatalf("failed to load winner: %v", err)
	}
	if winner.Rating != 1216 || winner.Wins != 1 {
		t.Errorf("duplicate mutated winner: rating %v, wins %d", winner.Rating, winner.Wins)
	}

	count, err := battles.Count(ctx)
	if err != nil {
		t.Fatalf("failed to count battles: %v", err)
	}
	if count != 1 {
		t.Errorf("battle count = %d, want 1", count)
	}
}

func TestExists(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())
	ctx := context.Background()

	ok, err := battles.Exists(ctx, "m1")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if ok {
		t.Error("empty log reported battle as existing")
	}

	b := testBattle("m1", time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	if err := battles.Apply(ctx, b, 1200, ratingUpdate); err != nil {
		t.Fatalf("failed to apply battle: %v", err)
	}

	ok, err = battles.Exists(ctx, "m1")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !ok {
		t.Error("recorded battle reported as missing")
	}
}

func TestAllReturnsReplayOrder(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())
	ctx := context.Background()

	base := time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC)
	// Insert out of order; same timestamp for m2/m3 so match id breaks the tie.
	for _, b := range []*domain.Battle{
		testBattle("m3", base.Add(time.Hour)),
		testBattle("m1", base),
		testBattle("m2", base.Add(time.Hour)),
	} {
		if err := battles.Apply(ctx, b, 1200, ratingUpdate); err != nil {
			t.Fatalf("failed to apply %s: %v", b.MatchID, err)
		}
	}

	all, err := battles.All(ctx)
	if err != nil {
		t.Fatalf("failed to load battles: %v", err)
	}
	want := []string{"m1", "m2", "m3"}
	if len(all) != len(want) {
		t.Fatalf("battle count = %d, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].MatchID != id {
			t.Errorf("replay order[%d] = %s, want %s", i, all[i].MatchID, id)
		}
	}
}

func TestUpsertProfilePreservesRating(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())
	players := NewPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	b := testBattle("m1", time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	if err := battles.Apply(ctx, b, 1200, ratingUpdate); err != nil {
		t.Fatalf("failed to apply battle: %v", err)
	}

	if err := players.UpsertProfile(ctx, "AAA", "Alice", 6200, 1200); err != nil {
		t.Fatalf("failed to upsert profile: %v", err)
	}

	p, err := players.Get(ctx, "AAA")
	if err != nil {
		t.Fatalf("failed to load player: %v", err)
	}
	if p.Name != "Alice" || p.Trophies != 6200 {
		t.Errorf("profile = %s/%d, want Alice/6200", p.Name, p.Trophies)
	}
	// The profile refresh must never touch the rated record.
	if p.Rating != 1216 || p.Wins != 1 {
		t.Errorf("upsert mutated record: rating %v, wins %d", p.Rating, p.Wins)
	}
}

func TestLatestTimestampEmpty(t *testing.T) {
	db := openTestDB(t)
	battles := NewBattleRepository(db, zerolog.Nop())

	ts, err := battles.LatestTimestamp(context.Background())
	if err != nil {
		t.Fatalf("failed to read latest timestamp: %v", err)
	}
	if ts != nil {
		t.Errorf("latest timestamp = %v, want nil for empty log", ts)
	}
}
