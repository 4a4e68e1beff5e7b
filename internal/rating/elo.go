// Package rating implements the pairwise ELO update used for league
// standings. It is pure math: persistence, ordering, and deduplication are
// the caller's responsibility.
package rating

import "math"

const (
	DefaultKFactor       = 32.0
	DefaultInitialRating = 1200.0
)

// Engine computes rating updates with a fixed K-factor.
type Engine struct {
	K             float64
	InitialRating float64
}

func NewEngine(k, initial float64) *Engine {
	if k <= 0 {
		k = DefaultKFactor
	}
	if initial <= 0 {
		initial = DefaultInitialRating
	}
	return &Engine{K: k, InitialRating: initial}
}

// ExpectedScore returns the probability of a win for a player rated a
// against a player rated b. Strictly between 0 and 1; exactly 0.5 when the
// ratings are equal.
func ExpectedScore(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// Outcome holds the result of applying one decisive battle.
type Outcome struct {
	WinnerRating float64
	LoserRating  float64
	Delta        float64 // winner gains Delta, loser loses Delta
}

// Apply computes new ratings after the winner beats the loser. The update
// is zero-sum: the winner's gain equals the loser's loss exactly.
func (e *Engine) Apply(winnerRating, loserRating float64) Outcome {
	expected := ExpectedScore(winnerRating, loserRating)
	delta := e.K * (1.0 - expected)

	return Outcome{
		WinnerRating: winnerRating + delta,
		LoserRating:  loserRating - delta,
		Delta:        delta,
	}
}
