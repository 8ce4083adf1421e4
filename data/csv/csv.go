// Package csv loads daily OHLCV bars from disk for the backtester.
// Expected layout: a header row then Date,Open,High,Low,Close,Volume rows,
// dates formatted as 2006-01-02
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/youngkwangkim88-blip/matlab-trading/data"
)

var (
	errMissingHeader = errors.New("csv file missing header row")
	errBadRow        = errors.New("csv row could not be parsed")
)

const dateLayout = "2006-01-02"

// ReadBars loads every bar in the file at path
func ReadBars(path string) ([]data.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", err, path)
	}
	return bars, nil
}

func parse(r io.Reader) ([]data.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errMissingHeader
	}
	if len(header) < 6 {
		return nil, errMissingHeader
	}
	var bars []data.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w line %v: %v", errBadRow, line, err)
		}
		b, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w line %v: %v", errBadRow, line, err)
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, data.ErrNoData
	}
	return bars, nil
}

func parseRow(rec []string) (data.Bar, error) {
	if len(rec) < 6 {
		return data.Bar{}, errors.New("expected 6 columns")
	}
	t, err := time.Parse(dateLayout, rec[0])
	if err != nil {
		return data.Bar{}, err
	}
	vals := make([]float64, 5)
	for i := range vals {
		vals[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return data.Bar{}, err
		}
	}
	return data.Bar{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
