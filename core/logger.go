package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	loggerInstance = NewDevelopmentLogger(os.Stdout, LevelInfo)
	loggerMu       sync.RWMutex
)

// SetLogger sets the global logger instance
func SetLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return loggerInstance
}

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel maps LOG_LEVEL style names ("debug", "WARN") onto a Level.
func ParseLevel(name string) (Level, error) {
	for lvl, n := range levelNames {
		if strings.EqualFold(n, name) {
			return lvl, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

type HandlerFunc func(level Level, msg string, attrs map[string]interface{})

type Logger struct {
	handlerFunc HandlerFunc
	attrs       map[string]interface{}
}

func NewLogger(handler HandlerFunc) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger writes human readable lines to w, dropping anything
// below min. Attributes are printed in key order so lines diff cleanly.
func NewDevelopmentLogger(w io.Writer, min Level) *Logger {
	var mu sync.Mutex
	handler := func(level Level, msg string, attrs map[string]interface{}) {
		if level < min {
			return
		}
		var b strings.Builder
		b.WriteString(time.Now().Format(time.RFC3339))
		b.WriteString(" [")
		b.WriteString(level.String())
		b.WriteString("] ")
		b.WriteString(msg)
		if len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString(" |")
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%v", k, attrs[k])
			}
		}
		b.WriteByte('\n')

		mu.Lock()
		defer mu.Unlock()
		io.WriteString(w, b.String())
	}
	return NewLogger(handler)
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLogger(func(Level, string, map[string]interface{}) {})
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if l == nil || l.handlerFunc == nil {
		return
	}
	if len(args) > 0 {
		// Detect slog-style key-value pairs: even number of args where
		// odd-positioned args (keys) are strings.
		if isKeyValuePairs(args) {
			attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level, msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Trace(msg string, args ...interface{}) { l.log(LevelTrace, msg, args...) }

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args...) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args...) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	if l == nil {
		return nil
	}
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}
