package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the display symbol for a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Letter returns the single-letter text form used on the wire ("s", "h", "d", "c").
func (s Suit) Letter() byte {
	switch s {
	case Spades:
		return 's'
	case Hearts:
		return 'h'
	case Diamonds:
		return 'd'
	case Clubs:
		return 'c'
	default:
		return '?'
	}
}

// Rank represents a card rank. Ace is high.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankLetters = "23456789TJQKA"

// String returns the single-character form of a rank
func (r Rank) String() string {
	if r < Two || r > Ace {
		return "?"
	}
	return string(rankLetters[r-Two])
}

// Card is an immutable playing card value.
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the display form of a card (e.g., "A♠")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Text returns the ASCII form of a card (e.g., "As").
func (c Card) Text() string {
	return string([]byte{c.Rank.String()[0], c.Suit.Letter()})
}

// Value returns the numeric rank, Ace=14.
func (c Card) Value() int {
	return int(c.Rank)
}

// Valid reports whether the card is one of the 52 standard cards.
func (c Card) Valid() bool {
	return c.Suit >= Spades && c.Suit <= Clubs && c.Rank >= Two && c.Rank <= Ace
}

// Index returns a dense 0..51 index for the card.
func (c Card) Index() int {
	return int(c.Suit)*13 + int(c.Rank-Two)
}

// MarshalText implements encoding.TextMarshaler using the ASCII form.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %d/%d", c.Suit, c.Rank)
	}
	return []byte(c.Text()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Card) UnmarshalText(b []byte) error {
	parsed, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses a single card such as "As", "th" or "10h".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) == 3 && s[:2] == "10" {
		s = "T" + s[2:]
	}
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rank, err := parseRank(s[0])
	if err != nil {
		return Card{}, err
	}
	suit, err := parseSuit(s[1])
	if err != nil {
		return Card{}, err
	}
	return Card{Suit: suit, Rank: rank}, nil
}

// ParseCards parses a run of cards, with or without separators
// ("AsKs", "As Ks", "As,10h").
func ParseCards(s string) ([]Card, error) {
	s = strings.NewReplacer(" ", "", ",", "").Replace(s)
	cards := make([]Card, 0, len(s)/2)
	for len(s) > 0 {
		n := 2
		if strings.HasPrefix(s, "10") {
			n = 3
		}
		if len(s) < n {
			return nil, fmt.Errorf("truncated card %q", s)
		}
		c, err := ParseCard(s[:n])
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
		s = s[n:]
	}
	return cards, nil
}

// MustParseCards is ParseCards for tests and fixtures; it panics on error.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

// FormatCards joins cards in display form separated by spaces.
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func parseRank(b byte) (Rank, error) {
	i := strings.IndexByte(rankLetters, upper(b))
	if i < 0 {
		return 0, fmt.Errorf("invalid rank %q", b)
	}
	return Two + Rank(i), nil
}

func parseSuit(b byte) (Suit, error) {
	switch upper(b) {
	case 'S':
		return Spades, nil
	case 'H':
		return Hearts, nil
	case 'D':
		return Diamonds, nil
	case 'C':
		return Clubs, nil
	}
	return 0, fmt.Errorf("invalid suit %q", b)
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
