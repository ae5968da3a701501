package game

import "fmt"

// Action is a betting decision.
type Action int

const (
	NoAction Action = iota
	Fold
	Check
	Call
	Bet
	Raise
	AllIn
)

var actionNames = map[Action]string{
	NoAction: "",
	Fold:     "fold",
	Check:    "check",
	Call:     "call",
	Bet:      "bet",
	Raise:    "raise",
	AllIn:    "all_in",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts the wire name of an action ("fold", "all_in", ...).
func ParseAction(s string) (Action, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "bet":
		return Bet, nil
	case "raise":
		return Raise, nil
	case "all_in", "allin", "all-in":
		return AllIn, nil
	}
	return NoAction, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = NoAction
		return nil
	}
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Phase is the stage of the hand.
type Phase int

const (
	Waiting Phase = iota
	PreFlop
	Flop
	Turn
	River
	Showdown
)

var phaseNames = [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown"}

func (p Phase) String() string {
	if p < Waiting || p > Showdown {
		return "unknown"
	}
	return phaseNames[p]
}

// Betting reports whether the phase has a betting round.
func (p Phase) Betting() bool {
	return p >= PreFlop && p <= River
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// ActionRecord is one entry in the hand's action history.
type ActionRecord struct {
	Phase  Phase  `json:"phase"`
	SeatID string `json:"seat_id"`
	Name   string `json:"name"`
	Action Action `json:"action"`
	// Paid is the number of chips moved into the pot by this action.
	Paid int `json:"paid"`
	// To is the seat's total bet for the round after the action.
	To    int  `json:"to"`
	Pot   int  `json:"pot"`
	Blind bool `json:"blind,omitempty"`
}
