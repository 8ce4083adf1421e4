package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/youngkwangkim88-blip/matlab-trading/audit"
	"github.com/youngkwangkim88-blip/matlab-trading/config"
	"github.com/youngkwangkim88-blip/matlab-trading/data"
	"github.com/youngkwangkim88-blip/matlab-trading/data/csv"
	"github.com/youngkwangkim88-blip/matlab-trading/engine"
	"github.com/youngkwangkim88-blip/matlab-trading/indicators"
	"github.com/youngkwangkim88-blip/matlab-trading/log"
	"github.com/youngkwangkim88-blip/matlab-trading/optimize"
	"github.com/youngkwangkim88-blip/matlab-trading/report"
	"github.com/youngkwangkim88-blip/matlab-trading/statistics"
	"github.com/youngkwangkim88-blip/matlab-trading/trader"
)

var (
	configPath string
	outputDir  string
	skipAudit  bool
)

func main() {
	app := &cli.App{
		Name:  "backtester",
		Usage: "shared-cash multi-instrument backtesting",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to the run configuration JSON",
				Value:       "config.json",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "directory for run artefacts",
				Value:       "results",
				Destination: &outputDir,
			},
			&cli.BoolFlag{
				Name:        "skip-audit",
				Usage:       "skip the post-run accounting audit",
				Destination: &skipAudit,
			},
		},
		Action: runBacktest,
		Commands: []*cli.Command{
			{
				Name:   "optimize",
				Usage:  "random-search strategy hyperparameters on one symbol",
				Action: runOptimize,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbol", Usage: "instrument symbol from the config", Required: true},
					&cli.IntFlag{Name: "trials", Value: 200, Usage: "number of random candidates"},
					&cli.Int64Flag{Name: "seed", Value: 42, Usage: "random seed"},
					&cli.Float64Flag{Name: "dd-penalty", Value: 0.5, Usage: "max drawdown penalty weight"},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBacktest(_ *cli.Context) error {
	cfg, err := config.ReadConfigFromFile(configPath)
	if err != nil {
		return err
	}
	insts, err := loadInstruments(cfg)
	if err != nil {
		return err
	}
	bt, err := engine.New(cfg.Nickname, cfg.Data, cfg.Portfolio, insts)
	if err != nil {
		return err
	}
	if err = bt.Run(); err != nil {
		return err
	}

	summary, err := statistics.Summarize(statistics.CurveFromLedger(bt.Ledger().EquityCurve()))
	if err != nil {
		return err
	}
	log.Infof(log.Global, "total return %v%%, CAGR %v%%, max drawdown %v%%",
		summary.TotalReturnPct.Round(2), summary.CompoundAnnualPct.Round(2),
		summary.MaxDrawdown.DrawdownPercent.Round(2))

	if !skipAudit {
		tester, err := audit.New(bt.Ledger(), bt.Instruments(), cfg.Portfolio)
		if err != nil {
			return err
		}
		rep, err := tester.Run()
		if err != nil {
			return err
		}
		for _, issue := range rep.Issues {
			log.Warnf(log.Audit, "%v", issue)
		}
		if !rep.Pass {
			return fmt.Errorf("accounting audit failed with %d issues", len(rep.Issues))
		}
	}

	w, err := report.NewWriter(outputDir)
	if err != nil {
		return err
	}
	return w.WriteAll(bt.Meta(), bt.Ledger(), bt.Instruments())
}

func runOptimize(c *cli.Context) error {
	cfg, err := config.ReadConfigFromFile(configPath)
	if err != nil {
		return err
	}
	symbol := c.String("symbol")
	var target *config.InstrumentSettings
	for i := range cfg.Instruments {
		if cfg.Instruments[i].Symbol == symbol {
			target = &cfg.Instruments[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("symbol %q not present in %s", symbol, configPath)
	}
	feed, err := loadFeed(cfg, target)
	if err != nil {
		return err
	}

	fee, _ := target.FeeRate.Float64()
	tax, _ := target.SellTaxRate.Float64()
	borrow, _ := target.BorrowAnnualRate.Float64()
	costs := trader.PaperCosts{
		FeeRate:          fee,
		SellTaxRate:      tax,
		BorrowAnnualRate: borrow,
		BorrowDayCount:   target.BorrowDayCount,
	}
	candidates, err := optimize.Search(feed, cfg.Strategy, defaultGrid(), optimize.Options{
		Seed:      c.Int64("seed"),
		Trials:    c.Int("trials"),
		DDPenalty: c.Float64("dd-penalty"),
		Costs:     costs,
		LogStart:  cfg.Data.StartDate,
		LogEnd:    cfg.Data.EndDate,
	})
	if err != nil {
		return err
	}
	top := candidates
	if len(top) > 10 {
		top = top[:10]
	}
	for i, cand := range top {
		fmt.Printf("#%d score %.4f cagr %.2f%% mdd %.2f%% confirm=%d hold=%d enter=%.4f exit=%.4f\n",
			i+1, cand.Score, cand.CAGRPct, cand.MaxDDPct,
			cand.Settings.ConfirmDays, cand.Settings.MinHoldBars,
			cand.Settings.SpreadEnterPct, cand.Settings.SpreadExitPct)
	}
	return nil
}

func defaultGrid() optimize.Grid {
	return optimize.Grid{
		SpreadEnterPct: []float64{0.001, 0.002, 0.003, 0.005},
		SpreadExitPct:  []float64{0.0005, 0.001, 0.002},
		ATREnterK:      []float64{0.2, 0.35, 0.5},
		ConfirmDays:    []int{1, 2, 3},
		MinHoldBars:    []int{0, 3, 5, 10},
		CooldownBars:   []int{0, 2, 5},
		LongDailyStop:  []float64{0.03, 0.05, 0.08},
		LongTrailStop:  []float64{0.08, 0.10, 0.15},
		ShortDailyStop: []float64{0.02, 0.03, 0.05},
		ShortTrailStop: []float64{0.08, 0.10},
	}
}

func loadInstruments(cfg *config.Config) ([]*engine.Instrument, error) {
	insts := make([]*engine.Instrument, 0, len(cfg.Instruments))
	for i := range cfg.Instruments {
		is := &cfg.Instruments[i]
		spec, err := is.BuildSpec()
		if err != nil {
			return nil, err
		}
		feed, err := loadFeed(cfg, is)
		if err != nil {
			return nil, err
		}
		fee, _ := is.FeeRate.Float64()
		tax, _ := is.SellTaxRate.Float64()
		borrow, _ := is.BorrowAnnualRate.Float64()
		tr, err := trader.New(feed, cfg.Strategy, trader.PaperCosts{
			FeeRate:          fee,
			SellTaxRate:      tax,
			BorrowAnnualRate: borrow,
			BorrowDayCount:   is.BorrowDayCount,
		}, cfg.Data.StartDate, cfg.Data.EndDate)
		if err != nil {
			return nil, err
		}
		insts = append(insts, &engine.Instrument{Spec: spec, Feed: feed, Trader: tr})
	}
	return insts, nil
}

func loadFeed(cfg *config.Config, is *config.InstrumentSettings) (data.Handler, error) {
	path := is.CSVFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Data.CSVDir, path)
	}
	bars, err := csv.ReadBars(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	bars = trimWarmup(bars, cfg.Data.StartDate, cfg.Indicators.WarmupBars())
	cols, err := indicators.Populate(bars, cfg.Indicators)
	if err != nil {
		return nil, err
	}
	return data.NewSeries(is.Symbol, bars, cols)
}

// trimWarmup drops history more than warmup bars before the window start,
// keeping enough preceding bars for every indicator to be defined there
func trimWarmup(bars []data.Bar, start time.Time, warmup int) []data.Bar {
	if start.IsZero() {
		return bars
	}
	idx := len(bars)
	for i := range bars {
		if !bars[i].Time.Before(start) {
			idx = i
			break
		}
	}
	if idx <= warmup {
		return bars
	}
	return bars[idx-warmup:]
}
