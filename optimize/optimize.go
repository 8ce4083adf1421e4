// Package optimize searches the strategy hyperparameter space with a
// seeded random search, scoring each candidate on its standalone paper
// equity curve. A fixed seed reproduces the same search
package optimize

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/youngkwangkim88-blip/matlab-trading/data"
	"github.com/youngkwangkim88-blip/matlab-trading/log"
	"github.com/youngkwangkim88-blip/matlab-trading/statistics"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

var (
	errNoTrials   = errors.New("optimizer requires at least one trial")
	errEmptyGrid  = errors.New("optimizer grid has no tunable values")
	errNoSurvivor = errors.New("no candidate produced a scorable equity curve")
)

// Grid lists the candidate values per tunable hyperparameter. Empty lists
// leave the base setting untouched
type Grid struct {
	SpreadEnterPct []float64
	SpreadExitPct  []float64
	ATREnterK      []float64
	ATRExitK       []float64
	ConfirmDays    []int
	MinHoldBars    []int
	CooldownBars   []int
	LongDailyStop  []float64
	LongTrailStop  []float64
	ShortDailyStop []float64
	ShortTrailStop []float64
	SizeScaleATRK  []float64
}

func (g *Grid) empty() bool {
	return len(g.SpreadEnterPct) == 0 && len(g.SpreadExitPct) == 0 &&
		len(g.ATREnterK) == 0 && len(g.ATRExitK) == 0 &&
		len(g.ConfirmDays) == 0 && len(g.MinHoldBars) == 0 &&
		len(g.CooldownBars) == 0 && len(g.LongDailyStop) == 0 &&
		len(g.LongTrailStop) == 0 && len(g.ShortDailyStop) == 0 &&
		len(g.ShortTrailStop) == 0 && len(g.SizeScaleATRK) == 0
}

// Options configure one search
type Options struct {
	Seed      int64
	Trials    int
	DDPenalty float64
	Costs     trader.PaperCosts
	LogStart  time.Time
	LogEnd    time.Time
}

// Candidate is one scored hyperparameter draw
type Candidate struct {
	Settings trader.Settings
	Score    float64
	CAGRPct  float64
	MaxDDPct float64
}

// Search draws Trials random candidates from the grid, runs each over the
// full feed and returns them sorted by score, best first
func Search(feed data.Handler, base trader.Settings, grid Grid, opts Options) ([]Candidate, error) {
	if opts.Trials <= 0 {
		return nil, errNoTrials
	}
	if grid.empty() {
		return nil, errEmptyGrid
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	candidates := make([]Candidate, 0, opts.Trials)
	for trial := 0; trial < opts.Trials; trial++ {
		s := draw(rng, base, &grid)
		if s.Validate() != nil {
			continue
		}
		tr, err := trader.New(feed, s, opts.Costs, opts.LogStart, opts.LogEnd)
		if err != nil {
			return nil, err
		}
		tr.Run()
		c, ok := score(tr, s, opts.DDPenalty)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, errNoSurvivor
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	log.Infof(log.Trader, "optimizer finished %d trials on %s, best score %.4f",
		opts.Trials, feed.Symbol(), candidates[0].Score)
	return candidates, nil
}

func score(tr *trader.Trader, s trader.Settings, ddPenalty float64) (Candidate, bool) {
	curve := statistics.CurveFromSamples(tr.EquityCurve())
	summary, err := statistics.Summarize(curve)
	if err != nil {
		return Candidate{}, false
	}
	cagr, _ := summary.CompoundAnnualPct.Float64()
	mdd, _ := summary.MaxDrawdown.DrawdownPercent.Float64()
	if math.IsNaN(cagr) || math.IsNaN(mdd) {
		return Candidate{}, false
	}
	return Candidate{
		Settings: s,
		Score:    cagr - ddPenalty*math.Abs(mdd),
		CAGRPct:  cagr,
		MaxDDPct: mdd,
	}, true
}

func draw(rng *rand.Rand, base trader.Settings, g *Grid) trader.Settings {
	s := base
	s.SpreadEnterPct = pickFloat(rng, g.SpreadEnterPct, s.SpreadEnterPct)
	s.SpreadExitPct = pickFloat(rng, g.SpreadExitPct, s.SpreadExitPct)
	s.ATREnterK = pickFloat(rng, g.ATREnterK, s.ATREnterK)
	s.ATRExitK = pickFloat(rng, g.ATRExitK, s.ATRExitK)
	s.ConfirmDays = pickInt(rng, g.ConfirmDays, s.ConfirmDays)
	s.MinHoldBars = pickInt(rng, g.MinHoldBars, s.MinHoldBars)
	s.CooldownBars = pickInt(rng, g.CooldownBars, s.CooldownBars)
	s.LongDailyStop = pickFloat(rng, g.LongDailyStop, s.LongDailyStop)
	s.LongTrailStop = pickFloat(rng, g.LongTrailStop, s.LongTrailStop)
	s.ShortDailyStop = pickFloat(rng, g.ShortDailyStop, s.ShortDailyStop)
	s.ShortTrailStop = pickFloat(rng, g.ShortTrailStop, s.ShortTrailStop)
	s.SizeScaleATRK = pickFloat(rng, g.SizeScaleATRK, s.SizeScaleATRK)
	return s
}

func pickFloat(rng *rand.Rand, values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[rng.Intn(len(values))]
}

func pickInt(rng *rand.Rand, values []int, fallback int) int {
	if len(values) == 0 {
		return fallback
	}
	return values[rng.Intn(len(values))]
}
