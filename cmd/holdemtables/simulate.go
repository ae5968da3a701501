package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/randutil"
	"github.com/lox/holdemtables/internal/statistics"
)

// SimulateCmd plays all-AI tables as fast as possible
type SimulateCmd struct {
	Tables     int    `default:"4" help:"Number of tables to run concurrently"`
	Hands      int    `default:"1000" help:"Hands to play per table"`
	Seats      int    `default:"6" help:"Seats per table"`
	SmallBlind int    `default:"10" help:"Small blind amount"`
	BigBlind   int    `default:"20" help:"Big blind amount"`
	StartChips int    `default:"1000" help:"Starting stack of each AI seat"`
	Seed       *int64 `help:"RNG seed (random when unset)"`
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

// tableRun is the outcome of one simulated table.
type tableRun struct {
	hands    int
	deposits int
	chips    int
}

func (c *SimulateCmd) Run(cli *CLI) error {
	logger := newLogger(cli.LogLevel, "warn")

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	cfg := game.TableConfig{
		SmallBlind:       c.SmallBlind,
		BigBlind:         c.BigBlind,
		MaxSeats:         c.Seats,
		DesiredSeatCount: c.Seats,
		AIStartingChips:  c.StartChips,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tracker := statistics.NewTracker(c.BigBlind)
	runs := make([]tableRun, c.Tables)
	start := time.Now()

	g, ctx := errgroup.WithContext(context.Background())
	for i := range c.Tables {
		g.Go(func() error {
			tc := cfg
			tc.RoomID = fmt.Sprintf("sim-%d", i+1)
			run, err := c.playTable(ctx, tc, randutil.Derive(seed, uint64(i)), tracker, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", tc.RoomID, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printSummary(os.Stdout, c, seed, runs, tracker, time.Since(start))
	if net := tracker.Net(); net > 1e-6 || net < -1e-6 {
		return fmt.Errorf("results do not net to zero: %.4fbb", net)
	}
	return nil
}

// playTable deals hands until the count is reached, topping up busted seats
// between hands so the table never runs short.
func (c *SimulateCmd) playTable(ctx context.Context, cfg game.TableConfig, rng *rand.Rand, tracker *statistics.Tracker, logger *log.Logger) (tableRun, error) {
	table := game.NewTable(rng, cfg, game.WithLogger(logger.WithPrefix(cfg.RoomID)))
	table.SetDesiredSeatCount(cfg.DesiredSeatCount)
	expected := table.TotalChips()

	var run tableRun
	for run.hands < c.Hands {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		for _, s := range table.Seats() {
			if s.Chips == 0 {
				if err := table.Deposit(s.ID, cfg.AIStartingChips); err != nil {
					return run, err
				}
				expected += cfg.AIStartingChips
				run.deposits++
			}
		}

		var err error
		if run.hands == 0 {
			err = table.StartGame()
		} else {
			err = table.StartNextHand()
		}
		if err != nil {
			return run, fmt.Errorf("deal hand %d: %w", run.hands+1, err)
		}

		snap := table.Snapshot()
		positions := make(map[string]game.Position, len(snap.Seats))
		for _, v := range snap.Seats {
			positions[v.ID] = game.PositionOf(v.ID, snap)
		}

		for table.HandInProgress() {
			if _, err := table.PlayAITurn(); err != nil {
				return run, fmt.Errorf("hand %d: %w", table.HandNumber(), err)
			}
		}
		res := table.LastResult()
		if res == nil {
			return run, errors.New("hand finished without a result")
		}
		tracker.Record(*res, positions)
		run.hands++

		if got := table.TotalChips(); got != expected {
			return run, fmt.Errorf("hand %d: %d chips on the table, want %d", table.HandNumber(), got, expected)
		}
	}
	run.chips = table.TotalChips()
	return run, nil
}

func printSummary(w io.Writer, c *SimulateCmd, seed int64, runs []tableRun, tracker *statistics.Tracker, elapsed time.Duration) {
	var hands, deposits, chips int
	for _, r := range runs {
		hands += r.hands
		deposits += r.deposits
		chips += r.chips
	}

	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Simulation Results"))
	fmt.Fprintf(&b, "%s %d tables, %d hands in %s (%.0f hands/sec)\n",
		labelStyle.Render("Played:"), len(runs), hands, elapsed.Round(time.Millisecond), float64(hands)/elapsed.Seconds())
	fmt.Fprintf(&b, "%s %d/%d, %d seats, seed %d\n",
		labelStyle.Render("Stakes:"), c.SmallBlind, c.BigBlind, c.Seats, seed)
	fmt.Fprintf(&b, "%s %d chips in play, %d rebuys\n\n", labelStyle.Render("Chips:"), chips, deposits)

	fmt.Fprintf(&b, "%-10s %8s %10s %16s %8s %8s\n", "Seat", "Hands", "BB/100", "95% CI", "Win%", "SD won")
	for _, name := range tracker.Names() {
		s, _ := tracker.Seat(name)
		low, high := s.ConfidenceInterval95()
		style := winStyle
		if s.BB100() < 0 {
			style = lossStyle
		}
		fmt.Fprintf(&b, "%-10s %8d %10s %16s %7.1f%% %8d\n",
			name, s.Hands,
			style.Render(fmt.Sprintf("%+.2f", s.BB100())),
			fmt.Sprintf("[%+.1f, %+.1f]", low*100, high*100),
			s.WinRate()*100, s.ShowdownWins)
	}
	fmt.Fprintf(&b, "\n%s %+.4fbb", labelStyle.Render("Net across seats:"), tracker.Net())

	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
