package game

import (
	"fmt"
	rand "math/rand/v2"
	"slices"
	"time"

	"github.com/lox/holdemtables/internal/deck"
	"github.com/lox/holdemtables/internal/evaluator"
)

// Position is a coarse seat position relative to the dealer.
type Position int

const (
	Early Position = iota
	Middle
	Late
)

func (p Position) String() string {
	switch p {
	case Early:
		return "early"
	case Middle:
		return "middle"
	default:
		return "late"
	}
}

// Band is a strength range a hand category maps into.
type Band struct {
	Low, High float64
}

// AIConfig holds the thresholds of the heuristic policy. Strengths are in
// [0,1]; frequencies are probabilities per decision.
type AIConfig struct {
	// Facing a call that covers the whole stack.
	ShortStackAllIn float64

	// Nothing to call.
	StrongBet     float64 // bet PotBetMin..PotBetMax of the pot above this
	PotBetMin     float64
	PotBetMax     float64
	MediumBet     float64 // min-bet with MediumBetFreq above this
	MediumBetFreq float64

	// Facing a bet.
	StrongRaise      float64 // raise with StrongRaiseFreq above this
	StrongRaiseFreq  float64
	RaisePotFraction float64 // raise to 2x the bet plus this fraction of the pot
	MediumCall       float64 // call on pot odds above this
	PotOddsMargin    float64
	MediumCallFreq   float64
	LightCall        float64 // call small bets above this
	LightCallBlinds  int     // "small" means at most this many big blinds
	LightCallFreq    float64
	LateBluffFreq    float64

	// Preflop strength bands.
	HighPair       Band // pairs of HighPairRank and up
	HighPairRank   deck.Rank
	MidPair        Band // pairs of MidPairRank and up
	MidPairRank    deck.Rank
	LowPair        Band
	BigCard        Band // any card of BigCardRank or better
	BigCardRank    deck.Rank
	SuitedBonus    float64
	ConnectedBonus float64

	// Postflop strength band per evaluated hand category.
	RankBands map[evaluator.HandRank]Band
}

// DefaultAIConfig returns the standard policy thresholds.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		ShortStackAllIn: 0.5,

		StrongBet:     0.7,
		PotBetMin:     0.5,
		PotBetMax:     1.0,
		MediumBet:     0.4,
		MediumBetFreq: 0.3,

		StrongRaise:      0.75,
		StrongRaiseFreq:  0.7,
		RaisePotFraction: 0.3,
		MediumCall:       0.5,
		PotOddsMargin:    0.1,
		MediumCallFreq:   0.6,
		LightCall:        0.3,
		LightCallBlinds:  2,
		LightCallFreq:    0.5,
		LateBluffFreq:    0.15,

		HighPair:       Band{0.80, 0.90},
		HighPairRank:   deck.Ten,
		MidPair:        Band{0.60, 0.75},
		MidPairRank:    deck.Seven,
		LowPair:        Band{0.40, 0.55},
		BigCard:        Band{0.50, 0.70},
		BigCardRank:    deck.Queen,
		SuitedBonus:    0.10,
		ConnectedBonus: 0.05,

		RankBands: map[evaluator.HandRank]Band{
			evaluator.StraightFlush: {0.95, 1.00},
			evaluator.FourOfAKind:   {0.90, 0.95},
			evaluator.FullHouse:     {0.80, 0.90},
			evaluator.Flush:         {0.70, 0.80},
			evaluator.Straight:      {0.60, 0.70},
			evaluator.ThreeOfAKind:  {0.50, 0.60},
			evaluator.TwoPair:       {0.40, 0.50},
			evaluator.OnePair:       {0.25, 0.40},
			evaluator.HighCard:      {0.10, 0.25},
		},
	}
}

// Decision is the policy's output for one turn.
type Decision struct {
	Action   Action   `json:"action"`
	Amount   int      `json:"amount,omitempty"`
	Strength float64  `json:"strength"`
	Position Position `json:"position"`
	PotOdds  float64  `json:"pot_odds"`
	Reason   string   `json:"reason"`
}

// Decider chooses actions for AI seats.
type Decider interface {
	Decide(seat SeatView, snap Snapshot) Decision
}

// Policy is the heuristic Decider used by default. Its only state is the
// random source.
type Policy struct {
	cfg AIConfig
	rng *rand.Rand
}

// NewPolicy creates a policy drawing randomness from rng.
func NewPolicy(rng *rand.Rand, cfg AIConfig) *Policy {
	return &Policy{cfg: cfg, rng: rng}
}

func (p *Policy) jitter(b Band) float64 {
	return b.Low + p.rng.Float64()*(b.High-b.Low)
}

// Strength estimates hand strength in [0,1] from the hole cards and board.
func (p *Policy) Strength(hole, board []deck.Card) float64 {
	if len(hole) != 2 {
		return 0
	}
	if len(board) == 0 {
		return p.preflopStrength(hole[0], hole[1])
	}
	h, err := evaluator.EvaluateBest(append(slices.Clone(hole), board...))
	if err != nil {
		return 0
	}
	band, ok := p.cfg.RankBands[h.Rank]
	if !ok {
		return 0.2
	}
	return min(p.jitter(band), 1)
}

func (p *Policy) preflopStrength(a, b deck.Card) float64 {
	c := p.cfg
	switch {
	case a.Rank == b.Rank && a.Rank >= c.HighPairRank:
		return p.jitter(c.HighPair)
	case a.Rank == b.Rank && a.Rank >= c.MidPairRank:
		return p.jitter(c.MidPair)
	case a.Rank == b.Rank:
		return p.jitter(c.LowPair)
	case a.Rank >= c.BigCardRank || b.Rank >= c.BigCardRank:
		return p.jitter(c.BigCard)
	}
	s := p.jitter(c.RankBands[evaluator.HighCard])
	if a.Suit == b.Suit {
		s += c.SuitedBonus
	} else if d := a.Value() - b.Value(); d == 1 || d == -1 {
		s += c.ConnectedBonus
	}
	return min(s, 1)
}

// PositionOf buckets a seat by its offset from the dealer among the seats
// still in the hand.
func PositionOf(seatID string, snap Snapshot) Position {
	n := len(snap.Seats)
	var live []string
	for i := 1; i <= n; i++ {
		v := snap.Seats[((snap.DealerIndex+i)%n+n)%n]
		if v.Active && !v.Folded {
			live = append(live, v.ID)
		}
	}
	k := slices.Index(live, seatID) + 1
	switch m := float64(len(live)); {
	case float64(k) <= m/3:
		return Early
	case float64(k) <= 2*m/3:
		return Middle
	default:
		return Late
	}
}

// Decide picks an action for seat given the table snapshot. Bet and raise
// amounts are round totals, clamped to what the engine will accept.
func (p *Policy) Decide(seat SeatView, snap Snapshot) Decision {
	c := p.cfg
	callAmount := max(snap.CurrentBet-seat.CurrentBet, 0)
	d := Decision{
		Strength: p.Strength(seat.HoleCards, snap.CommunityCards),
		Position: PositionOf(seat.ID, snap),
	}
	if callAmount > 0 {
		d.PotOdds = float64(callAmount) / float64(snap.Pot+callAmount)
	}
	r := p.rng.Float64()

	if callAmount > 0 && seat.Chips <= callAmount {
		if d.Strength > c.ShortStackAllIn {
			return p.finish(d, AllIn, 0, "short stack shove", seat, snap)
		}
		return p.finish(d, Fold, 0, "short stack fold", seat, snap)
	}

	if callAmount == 0 {
		switch {
		case d.Strength > c.StrongBet:
			size := int(float64(snap.Pot) * (c.PotBetMin + r*(c.PotBetMax-c.PotBetMin)))
			return p.finish(d, Raise, snap.CurrentBet+size, "strong value bet", seat, snap)
		case d.Strength > c.MediumBet && r < c.MediumBetFreq:
			return p.finish(d, Raise, snap.CurrentBet+snap.BigBlind, "medium probe bet", seat, snap)
		default:
			return p.finish(d, Check, 0, "check", seat, snap)
		}
	}

	switch {
	case d.Strength > c.StrongRaise:
		if r < c.StrongRaiseFreq {
			target := snap.CurrentBet*2 + int(float64(snap.Pot)*c.RaisePotFraction)
			return p.finish(d, Raise, target, "strong raise", seat, snap)
		}
		return p.finish(d, Call, 0, "strong slowplay call", seat, snap)
	case d.Strength > c.MediumCall:
		if d.PotOdds < d.Strength-c.PotOddsMargin {
			return p.finish(d, Call, 0, "priced in", seat, snap)
		}
		if r < c.MediumCallFreq {
			return p.finish(d, Call, 0, "medium call", seat, snap)
		}
		return p.finish(d, Fold, 0, "medium fold", seat, snap)
	case d.Strength > c.LightCall:
		if callAmount <= snap.BigBlind*c.LightCallBlinds && r < c.LightCallFreq {
			return p.finish(d, Call, 0, "cheap call", seat, snap)
		}
		return p.finish(d, Fold, 0, "too expensive", seat, snap)
	case d.Position == Late && r < c.LateBluffFreq:
		return p.finish(d, Call, 0, "late position float", seat, snap)
	}
	return p.finish(d, Fold, 0, "weak", seat, snap)
}

// finish turns an intended action into one the engine accepts: raises are
// clamped to the legal range, become all-in when they use the whole stack,
// and fall back to call or check when raising is closed.
func (p *Policy) finish(d Decision, a Action, target int, reason string, seat SeatView, snap Snapshot) Decision {
	d.Reason = reason
	callAmount := max(snap.CurrentBet-seat.CurrentBet, 0)
	stackTo := seat.CurrentBet + seat.Chips

	if a == Raise {
		canRaise := !seat.HasActed && seat.Chips > callAmount
		switch {
		case !canRaise && callAmount == 0:
			a = Check
		case !canRaise:
			a = Call
		default:
			target = max(target, snap.CurrentBet+snap.MinRaise)
			if target >= stackTo {
				a = AllIn
			} else {
				d.Amount = target
				if snap.CurrentBet == 0 {
					a = Bet
				}
			}
		}
	}
	d.Action = a
	return d
}

// PlayAITurn asks the policy for the AI seat to act and applies its decision.
// A decision the engine rejects is replaced by a fold so the hand never
// stalls on the policy.
func (t *Table) PlayAITurn() (Decision, error) {
	if !t.HandInProgress() || t.current == NoSeat {
		return Decision{}, ErrNotStarted
	}
	s := t.seats[t.current]
	if !s.IsAI {
		return Decision{}, fmt.Errorf("%w: %s is not an AI seat", ErrInvalidAction, s.ID)
	}

	snap := t.Snapshot()
	view, _ := snap.Seat(s.ID)
	d := t.policy.Decide(view, snap)

	ev := AIDecisionEvent{SeatID: s.ID, Decision: d}
	err := t.HandlePlayerAction(s.ID, d.Action, d.Amount)
	if err != nil {
		t.logger.Warn("ai decision rejected, folding", "seat", s.ID, "action", d.Action, "amount", d.Amount, "error", err)
		ev.Forced = true
		ev.Err = err.Error()
		d.Action, d.Amount, d.Reason = Fold, 0, "forced fold"
		err = t.HandlePlayerAction(s.ID, Fold, 0)
	}
	t.logger.Debug("ai decision",
		"seat", s.ID,
		"action", d.Action,
		"amount", d.Amount,
		"strength", fmt.Sprintf("%.2f", d.Strength),
		"position", d.Position,
		"reason", d.Reason)
	ev.timestamp = time.Now()
	t.publish(ev)
	return d, err
}
