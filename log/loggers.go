package log

import (
	"fmt"
	"io"
	"time"
)

// NewSubLogger registers a named sublogger with all levels bar debug enabled
func NewSubLogger(name string) *SubLogger {
	mu.Lock()
	defer mu.Unlock()
	for i := range registry {
		if registry[i].name == name {
			return registry[i]
		}
	}
	sl := &SubLogger{
		name:    name,
		Info:    true,
		Warn:    true,
		Error:   true,
		divider: "|",
	}
	registry = append(registry, sl)
	return sl
}

// SetOutput redirects all subloggers to w. Use io.Discard to silence a run
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func (sl *SubLogger) stage(header, msg string) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "%s %s %s %s %s %s\n",
		time.Now().Format(timestampFormat),
		header,
		sl.divider,
		sl.name,
		sl.divider,
		msg)
}

// Debug logs a debug level message against the sublogger
func Debug(sl *SubLogger, msg string) {
	if sl == nil || !sl.Debug {
		return
	}
	sl.stage(debugHeader, msg)
}

// Debugf logs a formatted debug level message against the sublogger
func Debugf(sl *SubLogger, format string, v ...interface{}) {
	if sl == nil || !sl.Debug {
		return
	}
	sl.stage(debugHeader, fmt.Sprintf(format, v...))
}

// Info logs an info level message against the sublogger
func Info(sl *SubLogger, msg string) {
	if sl == nil || !sl.Info {
		return
	}
	sl.stage(infoHeader, msg)
}

// Infof logs a formatted info level message against the sublogger
func Infof(sl *SubLogger, format string, v ...interface{}) {
	if sl == nil || !sl.Info {
		return
	}
	sl.stage(infoHeader, fmt.Sprintf(format, v...))
}

// Warn logs a warning level message against the sublogger
func Warn(sl *SubLogger, msg string) {
	if sl == nil || !sl.Warn {
		return
	}
	sl.stage(warnHeader, msg)
}

// Warnf logs a formatted warning level message against the sublogger
func Warnf(sl *SubLogger, format string, v ...interface{}) {
	if sl == nil || !sl.Warn {
		return
	}
	sl.stage(warnHeader, fmt.Sprintf(format, v...))
}

// Error logs an error level message against the sublogger
func Error(sl *SubLogger, err error) {
	if sl == nil || !sl.Error || err == nil {
		return
	}
	sl.stage(errorHeader, err.Error())
}

// Errorf logs a formatted error level message against the sublogger
func Errorf(sl *SubLogger, format string, v ...interface{}) {
	if sl == nil || !sl.Error {
		return
	}
	sl.stage(errorHeader, fmt.Sprintf(format, v...))
}
