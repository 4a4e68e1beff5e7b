package domain

import (
	"time"
)

// Player is a tracked league member. The tag is the immutable identity;
// name and trophies are refreshed from the API and may change over time.
type Player struct {
	Tag           string
	Name          string
	Trophies      int
	Rating        float64
	Wins          int
	Losses        int
	Crowns        int
	CrownsAgainst int
	CurrentStreak int // positive = win streak, negative = loss streak
	LongestStreak int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Battle is a canonical, in-group match. Records are append-only: once a
// battle is written its rating deltas never change.
type Battle struct {
	MatchID      string
	Timestamp    time.Time
	PlayerOne    string
	PlayerTwo    string
	Winner       string
	Loser        string
	WinnerCrowns int
	LoserCrowns  int
	BattleType   string
	DeltaWinner  float64
	DeltaLoser   float64
	CreatedAt    time.Time
}

// CrownDiff is the winner's crown margin.
func (b Battle) CrownDiff() int {
	return b.WinnerCrowns - b.LoserCrowns
}

// Opponent returns the other participant's tag, or "" if tag did not play.
func (b Battle) Opponent(tag string) string {
	switch tag {
	case b.PlayerOne:
		return b.PlayerTwo
	case b.PlayerTwo:
		return b.PlayerOne
	}
	return ""
}

// RawBattle mirrors the Clash Royale battle log wire shape. Only the
// fields the normalizer reads are declared.
type RawBattle struct {
	BattleTime string           `json:"battleTime"`
	Type       string           `json:"type"`
	Team       []RawParticipant `json:"team"`
	Opponent   []RawParticipant `json:"opponent"`
}

type RawParticipant struct {
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Crowns int    `json:"crowns"`
}

// RawPlayer is the profile endpoint response subset used at registration.
type RawPlayer struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
}
