package evaluator

import (
	"fmt"

	"github.com/lox/holdemtables/internal/deck"
)

// HandRank is the category of a five-card poker hand. Higher is stronger.
type HandRank int

const (
	HighCard HandRank = iota + 1
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns the readable name of the category
func (r HandRank) String() string {
	switch r {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Hand is the evaluated best five cards from a set of cards.
type Hand struct {
	Rank HandRank `json:"rank"`
	// Tiebreak holds card values in significance order, e.g. the trip value
	// then the pair value for a full house. A wheel straight has [5].
	Tiebreak []int       `json:"tiebreak"`
	Name     string      `json:"name"`
	Cards    []deck.Card `json:"cards"`
}

// Compare returns 1 if a beats b, -1 if b beats a, and 0 for a split.
func Compare(a, b Hand) int {
	if a.Rank != b.Rank {
		if a.Rank > b.Rank {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Tiebreak) && i < len(b.Tiebreak); i++ {
		if a.Tiebreak[i] != b.Tiebreak[i] {
			if a.Tiebreak[i] > b.Tiebreak[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Beats reports whether h is strictly stronger than other.
func (h Hand) Beats(other Hand) bool {
	return Compare(h, other) > 0
}

func (h Hand) String() string {
	return fmt.Sprintf("%s (%s)", h.Name, deck.FormatCards(h.Cards))
}
