package statistics

import (
	"math"
	"strings"
	"testing"

	"github.com/lox/holdemtables/internal/game"
)

func TestStatistics_Empty(t *testing.T) {
	stats := &Statistics{}

	if stats.Mean() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdError() != 0 {
		t.Errorf("Expected stderr of 0 for empty stats, got %f", stats.StdError())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0 for empty stats, got %f", stats.Median())
	}
	if stats.Percentile(0.5) != 0 {
		t.Errorf("Expected percentile of 0 for empty stats, got %f", stats.Percentile(0.5))
	}
	if stats.WinRate() != 0 {
		t.Errorf("Expected win rate of 0 for empty stats, got %f", stats.WinRate())
	}
}

func TestStatistics_MultipleValues(t *testing.T) {
	stats := &Statistics{}

	results := []HandResult{
		{NetBB: 1.0, Position: game.Early, Won: true},
		{NetBB: -2.0, Position: game.Middle, WentToShowdown: true},
		{NetBB: 3.0, Position: game.Late, WentToShowdown: true, Won: true},
		{NetBB: 0.0, Position: game.Early},
		{NetBB: -1.0, Position: game.Middle},
	}
	for _, result := range results {
		stats.Add(result)
	}

	expectedMean := (1.0 - 2.0 + 3.0 + 0.0 - 1.0) / 5.0
	if math.Abs(stats.Mean()-expectedMean) > 1e-9 {
		t.Errorf("Expected mean of %f, got %f", expectedMean, stats.Mean())
	}
	if math.Abs(stats.BB100()-expectedMean*100) > 1e-9 {
		t.Errorf("Expected bb/100 of %f, got %f", expectedMean*100, stats.BB100())
	}

	// Sorted values: -2, -1, 0, 1, 3
	if stats.Median() != 0.0 {
		t.Errorf("Expected median of 0.0, got %f", stats.Median())
	}

	if stats.ShowdownWins != 1 {
		t.Errorf("Expected 1 showdown win, got %d", stats.ShowdownWins)
	}
	if stats.NonShowdownWins != 1 {
		t.Errorf("Expected 1 non-showdown win, got %d", stats.NonShowdownWins)
	}
	if math.Abs(stats.WinRate()-0.4) > 1e-9 {
		t.Errorf("Expected win rate of 0.4, got %f", stats.WinRate())
	}

	for pos, want := range map[game.Position]int{game.Early: 2, game.Middle: 2, game.Late: 1} {
		if got := stats.PositionResults[pos].Hands; got != want {
			t.Errorf("Expected %d hands in %s position, got %d", want, pos, got)
		}
	}

	if !stats.IsLedgerBalanced() {
		t.Error("Expected ledger to be balanced")
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Expected valid stats, got %v", err)
	}
}

func TestStatistics_Percentiles(t *testing.T) {
	stats := &Statistics{}
	for i := 1; i <= 5; i++ {
		stats.Add(HandResult{NetBB: float64(i)})
	}

	tests := []struct {
		percentile float64
		expected   float64
	}{
		{0.0, 1.0},
		{0.25, 2.0},
		{0.5, 3.0},
		{0.75, 4.0},
		{1.0, 5.0},
	}
	for _, test := range tests {
		result := stats.Percentile(test.percentile)
		if math.Abs(result-test.expected) > 1e-9 {
			t.Errorf("Percentile %.2f: expected %f, got %f", test.percentile, test.expected, result)
		}
	}
}

func TestStatistics_ConfidenceInterval(t *testing.T) {
	stats := &Statistics{}
	for _, v := range []float64{1, 2, 3, 4, 5} {
		stats.Add(HandResult{NetBB: v})
	}

	low, high := stats.ConfidenceInterval95()
	mean := stats.Mean()
	if math.Abs((low+high)/2-mean) > 1e-9 {
		t.Errorf("Confidence interval not symmetric around mean. Low: %f, High: %f, Mean: %f", low, high, mean)
	}
	if high-low <= 0 {
		t.Errorf("Confidence interval should be positive width, got %f", high-low)
	}
}

func TestStatistics_PositionMean(t *testing.T) {
	stats := &Statistics{}
	stats.Add(HandResult{NetBB: 2.0, Position: game.Early})
	stats.Add(HandResult{NetBB: 3.0, Position: game.Early})
	stats.Add(HandResult{NetBB: -1.0, Position: game.Late})
	stats.Add(HandResult{NetBB: 1.0, Position: game.Late})

	if got := stats.PositionMean(game.Early); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("Early mean: expected 2.5, got %f", got)
	}
	if got := stats.PositionMean(game.Late); math.Abs(got) > 1e-9 {
		t.Errorf("Late mean: expected 0, got %f", got)
	}
	if got := stats.PositionMean(game.Middle); got != 0 {
		t.Errorf("Middle mean: expected 0 with no hands, got %f", got)
	}
	if got := stats.PositionMean(game.Position(7)); got != 0 {
		t.Errorf("Expected 0 for invalid position, got %f", got)
	}
}

func TestStatistics_PotSizeTracking(t *testing.T) {
	stats := &Statistics{}
	stats.Add(HandResult{NetBB: 1.0, FinalPotBB: 10})
	stats.Add(HandResult{NetBB: 5.0, FinalPotBB: 100})
	stats.Add(HandResult{NetBB: -1.0, FinalPotBB: 2})

	if math.Abs(stats.MaxPotBB-100.0) > 1e-9 {
		t.Errorf("Expected max pot of 100bb, got %f", stats.MaxPotBB)
	}
	if stats.BigPots != 1 {
		t.Errorf("Expected 1 big pot (>=50bb), got %d", stats.BigPots)
	}
	if math.Abs(stats.BigPotsBB-5.0) > 1e-9 {
		t.Errorf("Expected big pot BB of 5.0, got %f", stats.BigPotsBB)
	}
}

func TestStatistics_Variance(t *testing.T) {
	stats := &Statistics{}
	for _, v := range []float64{1, 3, 5} {
		stats.Add(HandResult{NetBB: v})
	}

	if math.Abs(stats.Variance()-4.0) > 1e-9 {
		t.Errorf("Expected variance of 4, got %f", stats.Variance())
	}
	if math.Abs(stats.StdDev()-2.0) > 1e-9 {
		t.Errorf("Expected stddev of 2, got %f", stats.StdDev())
	}
}

func TestStatistics_Validate(t *testing.T) {
	tests := []struct {
		name  string
		stats Statistics
		want  string
	}{
		{
			name: "ledger mismatch",
			stats: Statistics{
				Hands: 1, Values: []float64{1}, AllBB: 1, ShowdownBB: 0.5, NonShowdownBB: 0.6,
				PositionResults: [3]PositionStats{{Hands: 1}},
			},
			want: "ledger mismatch",
		},
		{
			name:  "no hands",
			stats: Statistics{},
			want:  "invalid hands count",
		},
		{
			name:  "values mismatch",
			stats: Statistics{Hands: 2, Values: []float64{1}, AllBB: 1, NonShowdownBB: 1},
			want:  "values array length",
		},
		{
			name: "too many wins",
			stats: Statistics{
				Hands: 2, Values: []float64{1, 1}, AllBB: 2, ShowdownBB: 1, NonShowdownBB: 1,
				ShowdownWins: 2, NonShowdownWins: 2,
				PositionResults: [3]PositionStats{{Hands: 2}},
			},
			want: "exceeds total hands",
		},
		{
			name: "position mismatch",
			stats: Statistics{
				Hands: 2, Values: []float64{1, 1}, AllBB: 2, ShowdownBB: 1, NonShowdownBB: 1,
				PositionResults: [3]PositionStats{{Hands: 1}},
			},
			want: "position hands total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stats.Validate()
			if err == nil {
				t.Fatalf("Expected validation to fail with %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q error, got: %v", tt.want, err)
			}
		})
	}
}

func TestTracker_Record(t *testing.T) {
	tr := NewTracker(20)
	res := game.ShowdownResult{
		HandNumber: 1,
		Pot:        1200,
		Deltas: []game.SeatDelta{
			{SeatID: "a", Name: "Alice", Delta: 600, FinalChips: 1600, Won: true},
			{SeatID: "b", Name: "Bob", Delta: -600, FinalChips: 400},
		},
	}
	tr.Record(res, map[string]game.Position{"a": game.Early})
	tr.Record(game.ShowdownResult{
		FoldOut: true,
		Pot:     30,
		Deltas: []game.SeatDelta{
			{SeatID: "a", Name: "Alice", Delta: -10},
			{SeatID: "b", Name: "Bob", Delta: 10, Won: true},
		},
	}, nil)

	if tr.Hands() != 2 {
		t.Errorf("Expected 2 hands, got %d", tr.Hands())
	}
	if names := tr.Names(); len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Errorf("Unexpected names %v", names)
	}

	alice, ok := tr.Seat("Alice")
	if !ok {
		t.Fatal("Expected stats for Alice")
	}
	if math.Abs(alice.AllBB-29.5) > 1e-9 {
		t.Errorf("Expected Alice to net 29.5bb, got %f", alice.AllBB)
	}
	if alice.ShowdownWins != 1 || alice.NonShowdownWins != 0 {
		t.Errorf("Unexpected Alice wins: showdown %d, fold-out %d", alice.ShowdownWins, alice.NonShowdownWins)
	}
	if alice.BigPots != 1 {
		t.Errorf("Expected one 60bb pot for Alice, got %d", alice.BigPots)
	}
	if alice.PositionResults[game.Early].Hands != 1 || alice.PositionResults[game.Late].Hands != 1 {
		t.Errorf("Unexpected Alice positions %+v", alice.PositionResults)
	}

	bob, _ := tr.Seat("Bob")
	if bob.NonShowdownWins != 1 {
		t.Errorf("Expected Bob to win one fold-out, got %d", bob.NonShowdownWins)
	}
	if math.Abs(tr.Net()) > 1e-9 {
		t.Errorf("Expected zero-sum record, got %f", tr.Net())
	}
	if _, ok := tr.Seat("Carol"); ok {
		t.Error("Expected no stats for an unknown seat")
	}
}
