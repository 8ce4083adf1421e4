package log

import (
	"io"
	"os"
	"sync"
)

const (
	timestampFormat = "02/01/2006 15:04:05"

	debugHeader = "[DEBUG]"
	infoHeader  = "[INFO]"
	warnHeader  = "[WARN]"
	errorHeader = "[ERROR]"
)

// SubLogger is a named logging domain that can be toggled independently
type SubLogger struct {
	name    string
	Debug   bool
	Info    bool
	Warn    bool
	Error   bool
	divider string
}

var (
	mu       sync.RWMutex
	output   io.Writer = os.Stdout
	registry []*SubLogger

	// Global covers anything without a more specific sublogger
	Global = NewSubLogger("LOG")
	// Engine covers the backtest orchestrator
	Engine = NewSubLogger("ENGINE")
	// Ledger covers portfolio accounting
	Ledger = NewSubLogger("LEDGER")
	// Trader covers signal generation
	Trader = NewSubLogger("TRADER")
	// Audit covers the accounting reconciliation tester
	Audit = NewSubLogger("AUDIT")
	// Data covers feed loading and indicator population
	Data = NewSubLogger("DATA")
	// Report covers output writing
	Report = NewSubLogger("REPORT")
)
