package brackets

import "errors"

// ErrOddWinners is returned when a round produces a winner that cannot be paired.
// Power-of-two rosters never hit it; seeing it means the stored bracket is inconsistent.
var ErrOddWinners = errors.New("odd number of winners cannot be paired")

// Pair - одна пара игроков будущего матча. Player1 занимает слот 1.
type Pair struct {
	Player1 int
	Player2 int
}

// BracketGenerator builds the pairings of a bracket round by round.
type BracketGenerator interface {
	// FirstRound shuffles the roster and pairs it.
	FirstRound(userIDs []int) ([]Pair, error)
	// NextRound pairs the winners of a finished round in emission order.
	NextRound(winners []int) ([]Pair, error)

	GetName() string
}
