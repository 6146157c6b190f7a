package brackets

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// SingleEliminationGenerator pairs players positionally: index 0 vs 1, 2 vs 3, ...
// There is no seeding by rating; the first round is a uniform random permutation.
type SingleEliminationGenerator struct {
	intN func(n int) int
}

// NewSingleEliminationGenerator returns a generator backed by math/rand/v2.
func NewSingleEliminationGenerator() *SingleEliminationGenerator {
	return &SingleEliminationGenerator{intN: rand.IntN}
}

// NewSingleEliminationGeneratorWithSource lets tests pin the permutation.
func NewSingleEliminationGeneratorWithSource(intN func(n int) int) *SingleEliminationGenerator {
	if intN == nil {
		intN = rand.IntN
	}
	return &SingleEliminationGenerator{intN: intN}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) FirstRound(userIDs []int) ([]Pair, error) {
	n := len(userIDs)
	if n < 2 {
		return nil, fmt.Errorf("not enough participants to generate a single elimination bracket (minimum 2, got %d)", n)
	}
	if !IsPowerOfTwo(n) {
		return nil, fmt.Errorf("single elimination without byes requires a power-of-two roster, got %d", n)
	}
	return pairConsecutive(g.Shuffle(userIDs))
}

func (g *SingleEliminationGenerator) NextRound(winners []int) ([]Pair, error) {
	if len(winners) < 2 {
		return nil, fmt.Errorf("not enough winners to pair (got %d)", len(winners))
	}
	return pairConsecutive(winners)
}

// Shuffle returns a Fisher–Yates permutation of ids; the input slice is not modified.
func (g *SingleEliminationGenerator) Shuffle(ids []int) []int {
	shuffled := make([]int, len(ids))
	copy(shuffled, ids)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := g.intN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

func pairConsecutive(ids []int) ([]Pair, error) {
	pairs := make([]Pair, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		pairs = append(pairs, Pair{Player1: ids[i], Player2: ids[i+1]})
	}
	if len(ids)%2 != 0 {
		return pairs, fmt.Errorf("%w: player %d left without an opponent", ErrOddWinners, ids[len(ids)-1])
	}
	return pairs, nil
}

// TotalMatches is the number of matches a single-elimination bracket plays: one per eliminated player.
func TotalMatches(playerCount int) int {
	if playerCount < 2 {
		return 0
	}
	return playerCount - 1
}

// Rounds returns log2(playerCount) for power-of-two rosters.
func Rounds(playerCount int) (int, error) {
	if playerCount < 2 || !IsPowerOfTwo(playerCount) {
		return 0, errors.New("player count must be a power of two greater than one")
	}
	return bits.TrailingZeros(uint(playerCount)), nil
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
