package services

import "math"

// DefaultTournamentKFactor is the K-factor applied to tournament matches.
const DefaultTournamentKFactor = 16

// RatingFunc returns the player's new rating after one match against an opponent.
type RatingFunc func(playerElo, opponentElo int, didWin bool) int

// EloRating builds the classic Elo update with the given K-factor.
func EloRating(kFactor int) RatingFunc {
	if kFactor <= 0 {
		kFactor = DefaultTournamentKFactor
	}
	k := float64(kFactor)
	return func(playerElo, opponentElo int, didWin bool) int {
		expected := 1 / (1 + math.Pow(10, float64(opponentElo-playerElo)/400))
		actual := 0.0
		if didWin {
			actual = 1
		}
		return playerElo + int(math.Round(k*(actual-expected)))
	}
}
