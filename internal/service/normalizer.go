package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"royale-tracker/internal/domain"
)

// battleTimeLayout is the compact timestamp format the Clash Royale API
// uses, e.g. "20240316T142530.000Z".
const battleTimeLayout = "20060102T150405.000Z"

// Normalizer converts raw battle log records into canonical battles and
// filters to in-group matches. Pure: no I/O, no state beyond the tracked
// set.
type Normalizer struct {
	tracked map[string]struct{}
}

func NewNormalizer(trackedTags []string) *Normalizer {
	tracked := make(map[string]struct{}, len(trackedTags))
	for _, tag := range trackedTags {
		tracked[cleanTag(tag)] = struct{}{}
	}
	return &Normalizer{tracked: tracked}
}

// Tracked reports whether a tag belongs to the tracked set.
func (n *Normalizer) Tracked(tag string) bool {
	_, ok := n.tracked[cleanTag(tag)]
	return ok
}

// Normalize returns the canonical battle for a raw record, (nil, nil) when
// the record is a deliberate drop (out-of-group participant or a draw), or
// an error when the record is malformed.
func (n *Normalizer) Normalize(raw domain.RawBattle) (*domain.Battle, error) {
	if len(raw.Team) == 0 || len(raw.Opponent) == 0 {
		return nil, fmt.Errorf("battle record missing participants")
	}

	p1 := raw.Team[0]
	p2 := raw.Opponent[0]
	tag1 := cleanTag(p1.Tag)
	tag2 := cleanTag(p2.Tag)
	if tag1 == "" || tag2 == "" {
		return nil, fmt.Errorf("battle record missing participant tag")
	}

	// In-group filter: both participants must be tracked.
	if !n.Tracked(tag1) || !n.Tracked(tag2) {
		return nil, nil
	}

	ts, err := time.Parse(battleTimeLayout, raw.BattleTime)
	if err != nil {
		return nil, fmt.Errorf("unparseable battle time %q: %w", raw.BattleTime, err)
	}

	var winner, loser string
	var winnerCrowns, loserCrowns int
	switch {
	case p1.Crowns > p2.Crowns:
		winner, loser = tag1, tag2
		winnerCrowns, loserCrowns = p1.Crowns, p2.Crowns
	case p2.Crowns > p1.Crowns:
		winner, loser = tag2, tag1
		winnerCrowns, loserCrowns = p2.Crowns, p1.Crowns
	default:
		// Draw: the rating model needs a decisive winner.
		return nil, nil
	}

	battleType := raw.Type
	if battleType == "" {
		battleType = "unknown"
	}

	return &domain.Battle{
		MatchID:      matchID(raw.BattleTime, tag1, tag2),
		Timestamp:    ts.UTC(),
		PlayerOne:    tag1,
		PlayerTwo:    tag2,
		Winner:       winner,
		Loser:        loser,
		WinnerCrowns: winnerCrowns,
		LoserCrowns:  loserCrowns,
		BattleType:   battleType,
	}, nil
}

// matchID builds a deterministic id from the battle time and the sorted
// participant pair. Both players' battle logs report the same match, so
// the id must not depend on whose log produced the record.
func matchID(battleTime, tagA, tagB string) string {
	tags := []string{tagA, tagB}
	sort.Strings(tags)
	return battleTime + "_" + strings.Join(tags, "_")
}

func cleanTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}
