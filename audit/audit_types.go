package audit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoEquityCurve is returned when there is nothing to audit
	ErrNoEquityCurve = errors.New("audit requires a recorded equity curve")
)

// Severity classifies one audit finding
type Severity string

const (
	// SeverityError findings fail the audit
	SeverityError Severity = "ERROR"
	// SeverityWarning findings are reported but do not fail it
	SeverityWarning Severity = "WARNING"
)

// Issue is one audit finding
type Issue struct {
	Severity Severity
	Time     time.Time
	Symbol   string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s %s: %s", i.Severity, i.Time.Format("2006-01-02"), i.Symbol, i.Message)
}

// Report is the outcome of one accounting audit
type Report struct {
	Pass          bool
	SampledPoints int
	Issues        []Issue
}

func (r *Report) add(sev Severity, t time.Time, symbol, format string, v ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Time:     t,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, v...),
	})
	if sev == SeverityError {
		r.Pass = false
	}
}
