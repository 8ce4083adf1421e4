package log

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSubLoggerDeduplicates(t *testing.T) {
	first := NewSubLogger("TEST_DEDUP")
	second := NewSubLogger("TEST_DEDUP")
	assert.Same(t, first, second)
	assert.True(t, first.Info)
	assert.True(t, first.Warn)
	assert.True(t, first.Error)
	assert.False(t, first.Debug)
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)

	sl := NewSubLogger("TEST_GATING")
	Debugf(sl, "hidden %d", 1)
	assert.Zero(t, buf.Len())

	Infof(sl, "visible %d", 2)
	assert.Contains(t, buf.String(), "TEST_GATING")
	assert.Contains(t, buf.String(), "visible 2")

	buf.Reset()
	sl.Warn = false
	Warn(sl, "suppressed")
	assert.Zero(t, buf.Len())
	sl.Warn = true

	Error(sl, nil)
	assert.Zero(t, buf.Len())

	// nil subloggers are silently ignored
	Info(nil, "dropped")
	Warnf(nil, "dropped %d", 3)
	Errorf(nil, "dropped %d", 4)
	assert.Zero(t, buf.Len())
}
