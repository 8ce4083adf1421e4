// Package report writes a finished run's logs and curves to CSV files so
// results can be inspected outside the process
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/youngkwangkim88-blip/matlab-trading/engine"
	"github.com/youngkwangkim88-blip/matlab-trading/ledger"
	"github.com/youngkwangkim88-blip/matlab-trading/log"
)

const dateFormat = "2006-01-02"

var errOutputDirUnset = errors.New("output directory unset")

// Writer writes run artefacts under one output directory
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, errOutputDirUnset
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

// WriteAll writes the portfolio logs and every trader's logs
func (w *Writer) WriteAll(meta engine.RunMetaData, l *ledger.Ledger, insts []*engine.Instrument) error {
	if err := w.WriteTrades("trades.csv", l.Trades()); err != nil {
		return err
	}
	if err := w.WriteBorrows("borrows.csv", l.Borrows()); err != nil {
		return err
	}
	if err := w.WriteRejections("rejections.csv", l.Rejections()); err != nil {
		return err
	}
	if err := w.WriteEquityCurve("equity.csv", l.EquityCurve()); err != nil {
		return err
	}
	for _, in := range insts {
		if err := w.WriteTraderLogs(in); err != nil {
			return err
		}
	}
	log.Infof(log.Report, "run %v artefacts written to %s", meta.ID, w.dir)
	return nil
}

// WriteTrades writes the ledger trade log
func (w *Writer) WriteTrades(name string, rows []ledger.TradeEntry) error {
	records := [][]string{{"date", "symbol", "trader", "side", "quantity-delta", "quantity-after", "price", "notional", "fee", "tax", "reason"}}
	for i := range rows {
		r := &rows[i]
		records = append(records, []string{
			r.Time.Format(dateFormat), r.Symbol, r.TraderID, string(r.Side),
			r.QuantityDelta.String(), r.QuantityAfter.String(), r.Price.String(),
			r.Notional.String(), r.Fee.String(), r.Tax.String(), r.Reason,
		})
	}
	return w.writeCSV(name, records)
}

// WriteBorrows writes the borrow accrual log
func (w *Writer) WriteBorrows(name string, rows []ledger.BorrowEntry) error {
	records := [][]string{{"date", "symbol", "quantity", "price", "cost"}}
	for i := range rows {
		r := &rows[i]
		records = append(records, []string{
			r.Time.Format(dateFormat), r.Symbol, r.Quantity.String(), r.Price.String(), r.Cost.String(),
		})
	}
	return w.writeCSV(name, records)
}

// WriteRejections writes the rejection log
func (w *Writer) WriteRejections(name string, rows []ledger.RejectionEntry) error {
	records := [][]string{{"date", "symbol", "desired-position", "current-quantity", "requested-target", "final-target", "retries"}}
	for i := range rows {
		r := &rows[i]
		records = append(records, []string{
			r.Time.Format(dateFormat), r.Symbol, strconv.Itoa(r.DesiredPosition),
			r.CurrentQuantity.String(), r.RequestedTarget.String(), r.FinalTarget.String(),
			strconv.Itoa(r.Retries),
		})
	}
	return w.writeCSV(name, records)
}

// WriteEquityCurve writes the portfolio equity curve
func (w *Writer) WriteEquityCurve(name string, rows []ledger.EquityPoint) error {
	records := [][]string{{"date", "equity", "cash", "reserved-margin", "gross-exposure", "net-exposure"}}
	for i := range rows {
		r := &rows[i]
		records = append(records, []string{
			r.Time.Format(dateFormat), r.Equity.String(), r.Cash.String(),
			r.ReservedMargin.String(), r.GrossExposure.String(), r.NetExposure.String(),
		})
	}
	return w.writeCSV(name, records)
}

// WriteTraderLogs writes one trader's fills, stops and curves
func (w *Writer) WriteTraderLogs(in *engine.Instrument) error {
	sym := in.Spec.Symbol

	fills := [][]string{{"date", "side", "price", "reason", "fraction", "position-after", "executed", "executed-quantity"}}
	for _, f := range in.Trader.Fills() {
		fills = append(fills, []string{
			f.Time.Format(dateFormat), string(f.Side), formatFloat(f.Price), f.Reason,
			formatFloat(f.Fraction), strconv.Itoa(f.PositionAfter),
			strconv.FormatBool(f.Executed), f.ExecutedQty.String(),
		})
	}
	if err := w.writeCSV(fmt.Sprintf("fills_%s.csv", sym), fills); err != nil {
		return err
	}

	stops := [][]string{{"date", "kind", "price", "reference"}}
	for _, s := range in.Trader.Stops() {
		stops = append(stops, []string{
			s.Time.Format(dateFormat), s.Kind, formatFloat(s.Price), formatFloat(s.Reference),
		})
	}
	if err := w.writeCSV(fmt.Sprintf("stops_%s.csv", sym), stops); err != nil {
		return err
	}

	equity := [][]string{{"date", "equity"}}
	for _, e := range in.Trader.EquityCurve() {
		equity = append(equity, []string{e.Time.Format(dateFormat), formatFloat(e.Equity)})
	}
	if err := w.writeCSV(fmt.Sprintf("paper_equity_%s.csv", sym), equity); err != nil {
		return err
	}

	positions := [][]string{{"date", "position"}}
	for _, p := range in.Trader.PositionCurve() {
		positions = append(positions, []string{p.Time.Format(dateFormat), strconv.Itoa(p.Position)})
	}
	return w.writeCSV(fmt.Sprintf("positions_%s.csv", sym), positions)
}

func (w *Writer) writeCSV(name string, records [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err = cw.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
