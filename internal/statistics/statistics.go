package statistics

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/lox/holdemtables/internal/game"
)

// HandResult represents one seat's outcome of a single hand
type HandResult struct {
	NetBB          float64       // Net big blinds won/lost
	Position       game.Position // Position when the hand was dealt
	WentToShowdown bool          // Did the hand reach a showdown?
	Won            bool          // Did the seat receive chips?
	FinalPotBB     float64       // Final pot size in big blinds
}

// PositionStats tracks statistics for one position bucket
type PositionStats struct {
	Hands  int
	SumBB  float64
	SumBB2 float64
}

// Statistics accumulates hand results for one seat
type Statistics struct {
	Hands  int
	SumBB  float64
	SumBB2 float64   // Sum of squares for variance calculation
	Values []float64 // All results, for median and percentiles

	ShowdownWins    int     // Hands won at showdown
	NonShowdownWins int     // Hands won when everyone else folded
	ShowdownBB      float64 // BB from showdowns, wins and losses
	NonShowdownBB   float64 // BB from fold-outs, wins and losses
	AllBB           float64 // Total BB, for the ledger check

	PositionResults [3]PositionStats // Indexed by game.Position

	MaxPotBB  float64 // Largest pot the seat played
	BigPots   int     // Pots >= 50bb
	BigPotsBB float64 // BB from big pots
}

// Mean returns the arithmetic mean of all results in big blinds per hand
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumBB / float64(s.Hands)
}

// BB100 returns the win rate in big blinds per hundred hands
func (s *Statistics) BB100() float64 {
	return s.Mean() * 100
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumBB2 - float64(s.Hands)*mean*mean) / float64(s.Hands-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// WinRate returns the fraction of hands in which the seat received chips
func (s *Statistics) WinRate() float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(s.ShowdownWins+s.NonShowdownWins) / float64(s.Hands)
}

// Add incorporates a new hand result into the statistics
func (s *Statistics) Add(result HandResult) {
	netBB := result.NetBB
	s.Hands++
	s.SumBB += netBB
	s.SumBB2 += netBB * netBB
	s.Values = append(s.Values, netBB)

	if result.Won {
		if result.WentToShowdown {
			s.ShowdownWins++
		} else {
			s.NonShowdownWins++
		}
	}

	if result.WentToShowdown {
		s.ShowdownBB += netBB
	} else {
		s.NonShowdownBB += netBB
	}
	s.AllBB += netBB

	if p := int(result.Position); p >= 0 && p < len(s.PositionResults) {
		s.PositionResults[p].Hands++
		s.PositionResults[p].SumBB += netBB
		s.PositionResults[p].SumBB2 += netBB * netBB
	}

	if result.FinalPotBB > s.MaxPotBB {
		s.MaxPotBB = result.FinalPotBB
	}
	if result.FinalPotBB >= 50 {
		s.BigPots++
		s.BigPotsBB += netBB
	}
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PositionMean returns the mean result for a position
func (s *Statistics) PositionMean(pos game.Position) float64 {
	p := int(pos)
	if p < 0 || p >= len(s.PositionResults) {
		return 0
	}
	ps := s.PositionResults[p]
	if ps.Hands == 0 {
		return 0
	}
	return ps.SumBB / float64(ps.Hands)
}

// IsLedgerBalanced checks if the accounting is consistent
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllBB-s.ShowdownBB-s.NonShowdownBB) <= 1e-6
}

// Validate performs consistency checks on the accumulated data
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: AllBB=%.6f, ShowdownBB=%.6f, NonShowdownBB=%.6f",
			s.AllBB, s.ShowdownBB, s.NonShowdownBB)
	}
	if s.Hands <= 0 {
		return fmt.Errorf("invalid hands count: %d", s.Hands)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("values array length (%d) does not match hands count (%d)",
			len(s.Values), s.Hands)
	}
	if wins := s.ShowdownWins + s.NonShowdownWins; wins > s.Hands {
		return fmt.Errorf("total wins (%d) exceeds total hands (%d)", wins, s.Hands)
	}
	positionHands := 0
	for _, ps := range s.PositionResults {
		positionHands += ps.Hands
	}
	if positionHands != s.Hands {
		return fmt.Errorf("position hands total (%d) does not match total hands (%d)",
			positionHands, s.Hands)
	}
	return nil
}
