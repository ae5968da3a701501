// Package evaluator scores Texas Hold'em hands by enumerating every five-card
// subset of the available cards.
package evaluator

import (
	"fmt"
	"slices"

	"github.com/lox/holdemtables/internal/deck"
)

// EvaluateBest returns the strongest five-card hand that can be made from
// 5 to 7 cards.
func EvaluateBest(cards []deck.Card) (Hand, error) {
	n := len(cards)
	if n < 5 || n > 7 {
		return Hand{}, fmt.Errorf("evaluate: need 5 to 7 cards, got %d", n)
	}

	var (
		best  Hand
		found bool
		combo [5]deck.Card
	)
	// Iterate C(n,5) index tuples in lexicographic order.
	idx := [5]int{0, 1, 2, 3, 4}
	for {
		for i, j := range idx {
			combo[i] = cards[j]
		}
		h := Evaluate5(combo)
		if !found || Compare(h, best) > 0 {
			best = h
			found = true
		}

		i := 4
		for i >= 0 && idx[i] == n-5+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < 5; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return best, nil
}

type group struct {
	value int
	count int
}

// Evaluate5 scores exactly five cards.
func Evaluate5(cards [5]deck.Card) Hand {
	sorted := slices.Clone(cards[:])
	slices.SortFunc(sorted, func(a, b deck.Card) int { return b.Value() - a.Value() })

	flush := true
	for _, c := range sorted[1:] {
		if c.Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	// Group by value, ordered by count then value, both descending.
	groups := make([]group, 0, 5)
	for _, c := range sorted {
		if k := len(groups) - 1; k >= 0 && groups[k].value == c.Value() {
			groups[k].count++
			continue
		}
		groups = append(groups, group{value: c.Value(), count: 1})
	}
	slices.SortStableFunc(groups, func(a, b group) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return b.value - a.value
	})

	straightHigh := 0
	if len(groups) == 5 {
		switch {
		case sorted[0].Value()-sorted[4].Value() == 4:
			straightHigh = sorted[0].Value()
		case sorted[0].Rank == deck.Ace && sorted[1].Rank == deck.Five:
			straightHigh = 5
			// Wheel: show the ace last.
			sorted = append(sorted[1:], sorted[0])
		}
	}

	tiebreak := make([]int, len(groups))
	for i, g := range groups {
		tiebreak[i] = g.value
	}

	var rank HandRank
	switch {
	case straightHigh > 0 && flush:
		rank = StraightFlush
		tiebreak = []int{straightHigh}
	case groups[0].count == 4:
		rank = FourOfAKind
	case groups[0].count == 3 && groups[1].count == 2:
		rank = FullHouse
	case flush:
		rank = Flush
	case straightHigh > 0:
		rank = Straight
		tiebreak = []int{straightHigh}
	case groups[0].count == 3:
		rank = ThreeOfAKind
	case groups[0].count == 2 && groups[1].count == 2:
		rank = TwoPair
	case groups[0].count == 2:
		rank = OnePair
	default:
		rank = HighCard
	}

	name := rank.String()
	if rank == StraightFlush && straightHigh == int(deck.Ace) {
		name = "Royal Flush"
	}

	return Hand{
		Rank:     rank,
		Tiebreak: tiebreak,
		Name:     name,
		Cards:    orderForDisplay(sorted, groups, straightHigh > 0),
	}
}

// orderForDisplay lists the cards grouped the way they are compared
// (trips before the pair, pairs before kickers).
func orderForDisplay(sorted []deck.Card, groups []group, straight bool) []deck.Card {
	if straight {
		return sorted
	}
	out := make([]deck.Card, 0, 5)
	for _, g := range groups {
		for _, c := range sorted {
			if c.Value() == g.value {
				out = append(out, c)
			}
		}
	}
	return out
}
