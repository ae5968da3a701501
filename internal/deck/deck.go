package deck

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrEmptyDeck is returned when dealing from a deck with no cards left.
var ErrEmptyDeck = errors.New("deck is empty")

// Size is the number of cards in a standard deck.
const Size = 52

// Deck is an ordered stack of cards. Cards are dealt from the tail.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a full, shuffled deck driven by rng.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, Size),
		rng:   rng,
	}
	d.Reset()
	return d
}

// Reset restores all 52 cards and shuffles them.
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	d.Shuffle()
}

// Shuffle randomizes the remaining cards in place (Fisher-Yates).
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the last card.
func (d *Deck) Deal() (Card, error) {
	n := len(d.cards)
	if n == 0 {
		return Card{}, ErrEmptyDeck
	}
	c := d.cards[n-1]
	d.cards = d.cards[:n-1]
	return c, nil
}

// DealN deals n cards, or none if fewer than n remain.
func (d *Deck) DealN(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrEmptyDeck, n, len(d.cards))
	}
	out := make([]Card, n)
	for i := range out {
		out[i], _ = d.Deal()
	}
	return out, nil
}

// Burn discards one card.
func (d *Deck) Burn() error {
	_, err := d.Deal()
	return err
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Cards returns a copy of the undealt cards in deal order (last is next).
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Restore replaces the undealt cards, used when reloading persisted state.
func (d *Deck) Restore(cards []Card) error {
	seen := make(map[Card]struct{}, len(cards))
	for _, c := range cards {
		if !c.Valid() {
			return fmt.Errorf("restore deck: invalid card %v", c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("restore deck: duplicate card %s", c)
		}
		seen[c] = struct{}{}
	}
	d.cards = append(d.cards[:0], cards...)
	return nil
}
