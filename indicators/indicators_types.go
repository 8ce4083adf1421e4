package indicators

import "errors"

var (
	// ErrInvalidWindow is returned when a window setting is not positive
	ErrInvalidWindow = errors.New("indicator window must be positive")
	// ErrNoBars is returned when there is nothing to compute over
	ErrNoBars = errors.New("no bars to compute indicators over")
)

// Settings holds the indicator window configuration
type Settings struct {
	SMAWeek       int `json:"sma-week"`
	SMAFast       int `json:"sma-fast"`
	SMASlow       int `json:"sma-slow"`
	SMALongTerm   int `json:"sma-long-term"`
	TrendLookback int `json:"trend-lookback"`
	ATRWindow     int `json:"atr-window"`
	MACDFast      int `json:"macd-fast"`
	MACDSlow      int `json:"macd-slow"`
	MACDSignal    int `json:"macd-signal"`
}

// DefaultSettings returns the daily-bar window defaults
func DefaultSettings() Settings {
	return Settings{
		SMAWeek:       5,
		SMAFast:       20,
		SMASlow:       40,
		SMALongTerm:   180,
		TrendLookback: 20,
		ATRWindow:     14,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
	}
}

// Validate checks every window is usable
func (s *Settings) Validate() error {
	for _, w := range []int{
		s.SMAWeek, s.SMAFast, s.SMASlow, s.SMALongTerm,
		s.TrendLookback, s.ATRWindow,
		s.MACDFast, s.MACDSlow, s.MACDSignal,
	} {
		if w <= 0 {
			return ErrInvalidWindow
		}
	}
	return nil
}

// WarmupBars returns how many bars before a requested window must be loaded
// so every indicator, including the lagged long-term trend, is defined at
// the window start
func (s *Settings) WarmupBars() int {
	warmup := s.SMALongTerm + s.TrendLookback
	if v := s.SMASlow; v > warmup {
		warmup = v
	}
	if v := s.ATRWindow; v > warmup {
		warmup = v
	}
	if v := s.MACDSlow + 3*s.MACDSignal; v > warmup {
		warmup = v
	}
	if warmup < 250 {
		warmup = 250
	}
	return warmup
}
