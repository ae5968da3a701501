package game

import (
	"slices"
	"time"

	"github.com/lox/holdemtables/internal/deck"
	"github.com/lox/holdemtables/internal/evaluator"
)

// Contribution is what one seat put into the pot over the whole hand.
type Contribution struct {
	SeatID string
	Amount int
	Folded bool
}

// PotResult is one pot layer and who it was awarded to.
type PotResult struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"`
	Winners  []string `json:"winners,omitempty"`
}

// WinnerInfo describes a seat that received chips.
type WinnerInfo struct {
	SeatID   string      `json:"seat_id"`
	Name     string      `json:"name"`
	Amount   int         `json:"amount"`
	HandName string      `json:"hand_name,omitempty"`
	BestFive []deck.Card `json:"best_five,omitempty"`
}

// SeatDelta is the per-seat outcome of a hand.
type SeatDelta struct {
	SeatID     string `json:"seat_id"`
	Name       string `json:"name"`
	IsAI       bool   `json:"is_ai"`
	Delta      int    `json:"delta"`
	FinalChips int    `json:"final_chips"`
	Won        bool   `json:"won"`
}

// RevealedHand is a hand shown at showdown.
type RevealedHand struct {
	SeatID    string         `json:"seat_id"`
	HoleCards []deck.Card    `json:"hole_cards"`
	Hand      evaluator.Hand `json:"hand"`
}

// ShowdownResult is the settlement of one hand.
type ShowdownResult struct {
	HandNumber int            `json:"hand_number"`
	HandID     string         `json:"hand_id"`
	FoldOut    bool           `json:"fold_out"`
	Board      []deck.Card    `json:"board"`
	Pot        int            `json:"pot"`
	Pots       []PotResult    `json:"pots"`
	Winners    []WinnerInfo   `json:"winners"`
	Deltas     []SeatDelta    `json:"deltas"`
	Revealed   []RevealedHand `json:"revealed,omitempty"`
}

// BuildPots splits contributions into layers. Each layer takes the smallest
// remaining contribution as its level from every seat still contributing.
// Folded seats pay into layers but are never eligible to win them. Adjacent
// layers with the same eligible seats are merged.
func BuildPots(contribs []Contribution) []PotResult {
	remaining := make([]int, len(contribs))
	for i, c := range contribs {
		remaining[i] = c.Amount
	}

	var pots []PotResult
	for {
		level := 0
		for _, r := range remaining {
			if r > 0 && (level == 0 || r < level) {
				level = r
			}
		}
		if level == 0 {
			break
		}

		pot := PotResult{}
		for i, c := range contribs {
			if remaining[i] == 0 {
				continue
			}
			pot.Amount += level
			remaining[i] -= level
			if !c.Folded {
				pot.Eligible = append(pot.Eligible, c.SeatID)
			}
		}

		if k := len(pots) - 1; k >= 0 && slices.Equal(pots[k].Eligible, pot.Eligible) {
			pots[k].Amount += pot.Amount
			continue
		}
		pots = append(pots, pot)
	}
	return pots
}

// Distribute awards each pot to the best eligible hands. Ties split evenly;
// odd chips go one at a time to the tied seats in order, which callers pass
// starting left of the dealer. Pots nobody eligible can win are returned as
// unallocated.
func Distribute(pots []PotResult, hands map[string]evaluator.Hand, order []string) (payouts map[string]int, settled []PotResult, unallocated int) {
	payouts = make(map[string]int)
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	for _, pot := range pots {
		var winners []string
		var best evaluator.Hand
		for _, id := range pot.Eligible {
			h, ok := hands[id]
			if !ok {
				continue
			}
			switch c := evaluator.Compare(h, best); {
			case len(winners) == 0 || c > 0:
				winners = []string{id}
				best = h
			case c == 0:
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			unallocated += pot.Amount
			settled = append(settled, pot)
			continue
		}

		slices.SortFunc(winners, func(a, b string) int { return rank[a] - rank[b] })
		share := pot.Amount / len(winners)
		odd := pot.Amount % len(winners)
		for i, id := range winners {
			payouts[id] += share
			if i < odd {
				payouts[id]++
			}
		}
		pot.Winners = winners
		settled = append(settled, pot)
	}
	return payouts, settled, unallocated
}

// payoutOrder lists seat ids starting with the seat left of the dealer.
func (t *Table) payoutOrder() []string {
	n := len(t.seats)
	order := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		order = append(order, t.seats[((t.dealer+i)%n+n)%n].ID)
	}
	return order
}

func (t *Table) finishFoldOut() {
	w := t.nextIndex(t.dealer, inHand)
	winner := t.seats[w]
	amount := t.pot
	winner.Chips += amount
	t.pot = 0

	payouts := map[string]int{winner.ID: amount}
	pots := []PotResult{{Amount: amount, Eligible: []string{winner.ID}, Winners: []string{winner.ID}}}
	t.finishHand(t.buildResult(true, amount, pots, payouts, nil))
}

func (t *Table) finishShowdown() {
	hands := make(map[string]evaluator.Hand)
	var contribs []Contribution
	for _, s := range t.seats {
		if s.TotalBet > 0 {
			contribs = append(contribs, Contribution{SeatID: s.ID, Amount: s.TotalBet, Folded: !s.InHand()})
		}
		if !s.InHand() {
			continue
		}
		h, err := evaluator.EvaluateBest(append(slices.Clone(s.HoleCards), t.community...))
		if err != nil {
			t.logger.Error("evaluate hand", "seat", s.ID, "error", err)
			continue
		}
		hands[s.ID] = h
	}

	order := t.payoutOrder()
	pots := BuildPots(contribs)
	payouts, settled, unallocated := Distribute(pots, hands, order)

	total := t.pot
	paid := 0
	for _, v := range payouts {
		paid += v
	}
	if residue := total - paid; residue != 0 {
		if best := bestOverall(hands, order); best != "" && residue > 0 {
			payouts[best] += residue
			if residue != unallocated {
				t.logger.Warn("pot residue does not match contributions", "pot", total, "paid", paid, "unallocated", unallocated)
			}
		} else {
			t.logger.Error("unsettled pot residue", "residue", residue)
		}
	}

	for _, s := range t.seats {
		s.Chips += payouts[s.ID]
	}
	t.pot = 0
	t.finishHand(t.buildResult(false, total, settled, payouts, hands))
}

func bestOverall(hands map[string]evaluator.Hand, order []string) string {
	best := ""
	for _, id := range order {
		h, ok := hands[id]
		if !ok {
			continue
		}
		if best == "" || h.Beats(hands[best]) {
			best = id
		}
	}
	return best
}

func (t *Table) buildResult(foldOut bool, total int, pots []PotResult, payouts map[string]int, hands map[string]evaluator.Hand) ShowdownResult {
	res := ShowdownResult{
		HandNumber: t.handNumber,
		HandID:     t.handID,
		FoldOut:    foldOut,
		Board:      t.CommunityCards(),
		Pot:        total,
		Pots:       pots,
	}
	for _, id := range t.payoutOrder() {
		s := t.seats[t.indexOf(id)]
		h, shown := hands[id]
		if amt := payouts[id]; amt > 0 {
			w := WinnerInfo{SeatID: id, Name: s.Name, Amount: amt}
			if shown {
				w.HandName = h.Name
				w.BestFive = h.Cards
			}
			res.Winners = append(res.Winners, w)
		}
		if shown && !foldOut {
			res.Revealed = append(res.Revealed, RevealedHand{
				SeatID:    id,
				HoleCards: slices.Clone(s.HoleCards),
				Hand:      h,
			})
		}
	}
	for _, s := range t.seats {
		if !s.Active && s.TotalBet == 0 {
			continue
		}
		res.Deltas = append(res.Deltas, SeatDelta{
			SeatID:     s.ID,
			Name:       s.Name,
			IsAI:       s.IsAI,
			Delta:      payouts[s.ID] - s.TotalBet,
			FinalChips: s.Chips,
			Won:        payouts[s.ID] > 0,
		})
	}
	return res
}

func (t *Table) finishHand(res ShowdownResult) {
	t.phase = Showdown
	t.gameFinished = true
	t.current = NoSeat
	t.currentBet = 0
	t.lastResult = &res

	for _, w := range res.Winners {
		t.logger.Info("pot awarded", "hand", res.HandNumber, "seat", w.SeatID, "amount", w.Amount, "hand_name", w.HandName)
	}
	t.publish(HandFinishedEvent{Result: res, timestamp: time.Now()})
	t.pruneLeft()
}
