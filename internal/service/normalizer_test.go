package service

import (
	"testing"
	"time"

	"royale-tracker/internal/domain"
)

func rawBattle(battleTime, teamTag string, teamCrowns int, oppTag string, oppCrowns int) domain.RawBattle {
	return domain.RawBattle{
		BattleTime: battleTime,
		Type:       "friendly",
		Team:       []domain.RawParticipant{{Tag: teamTag, Crowns: teamCrowns}},
		Opponent:   []domain.RawParticipant{{Tag: oppTag, Crowns: oppCrowns}},
	}
}

func TestNormalizeInGroupWin(t *testing.T) {
	n := NewNormalizer([]string{"#AAA", "#BBB"})

	battle, err := n.Normalize(rawBattle("20240316T142530.000Z", "#AAA", 2, "#BBB", 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if battle == nil {
		t.Fatal("battle was dropped, want canonical record")
	}

	if battle.Winner != "AAA" || battle.Loser != "BBB" {
		t.Errorf("winner/loser = %s/%s, want AAA/BBB", battle.Winner, battle.Loser)
	}
	if battle.WinnerCrowns != 2 || battle.LoserCrowns != 1 {
		t.Errorf("crowns = %d/%d, want 2/1", battle.WinnerCrowns, battle.LoserCrowns)
	}
	if battle.BattleType != "friendly" {
		t.Errorf("battle type = %q, want friendly", battle.BattleType)
	}

	want := time.Date(2024, 3, 16, 14, 25, 30, 0, time.UTC)
	if !battle.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", battle.Timestamp, want)
	}
}

func TestNormalizeDropsSingleTrackedParticipant(t *testing.T) {
	n := NewNormalizer([]string{"#AAA", "#BBB"})

	battle, err := n.Normalize(rawBattle("20240316T142530.000Z", "#AAA", 3, "#ZZZ", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if battle != nil {
		t.Errorf("battle with untracked opponent should be dropped, got %+v", battle)
	}
}

func TestNormalizeDropsDraw(t *testing.T) {
	n := NewNormalizer([]string{"AAA", "BBB"})

	battle, err := n.Normalize(rawBattle("20240316T142530.000Z", "#AAA", 1, "#BBB", 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if battle != nil {
		t.Errorf("draw should be dropped, got %+v", battle)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	n := NewNormalizer([]string{"AAA", "BBB"})

	tests := []struct {
		name string
		raw  domain.RawBattle
	}{
		{"missing opponent", domain.RawBattle{
			BattleTime: "20240316T142530.000Z",
			Team:       []domain.RawParticipant{{Tag: "#AAA", Crowns: 1}},
		}},
		{"missing tag", rawBattle("20240316T142530.000Z", "", 2, "#BBB", 0)},
		{"bad battle time", rawBattle("2024-03-16 14:25", "#AAA", 2, "#BBB", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := n.Normalize(tt.raw); err == nil {
				t.Error("want error for malformed record")
			}
		})
	}
}

func TestNormalizeMatchIDPerspectiveIndependent(t *testing.T) {
	n := NewNormalizer([]string{"AAA", "BBB"})

	// The same match as seen from each participant's battle log.
	fromA, err := n.Normalize(rawBattle("20240316T142530.000Z", "#AAA", 2, "#BBB", 0))
	if err != nil || fromA == nil {
		t.Fatalf("normalize from A: battle=%v err=%v", fromA, err)
	}
	fromB, err := n.Normalize(rawBattle("20240316T142530.000Z", "#BBB", 0, "#AAA", 2))
	if err != nil || fromB == nil {
		t.Fatalf("normalize from B: battle=%v err=%v", fromB, err)
	}

	if fromA.MatchID != fromB.MatchID {
		t.Errorf("match ids differ by perspective: %q vs %q", fromA.MatchID, fromB.MatchID)
	}
	if fromA.Winner != fromB.Winner {
		t.Errorf("winners differ by perspective: %q vs %q", fromA.Winner, fromB.Winner)
	}
}
