// Package logging provides the operational logger and the JSONL event trail.
//
//   - NewLogger returns a leveled slog.Logger for stderr.
//   - DecisionLogger appends session transition events to .darkforest/decisions.jsonl.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug and enables full payload logging.
const LevelTrace = slog.LevelDebug - 4

// DecisionsFile is the event trail file name inside the data directory.
const DecisionsFile = "decisions.jsonl"

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a text slog.Logger writing to w at the given level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DecisionLogger appends one JSON object per session event. It is safe for
// concurrent use, and every method is a no-op on a nil receiver.
type DecisionLogger struct {
	mu  sync.Mutex
	w   io.WriteCloser
	now func() time.Time
}

// NewDecisionLogger opens dir/decisions.jsonl for append when level is debug
// or trace. At info it returns nil. It also returns nil if the file cannot
// be opened.
func NewDecisionLogger(dir, level string) *DecisionLogger {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, DecisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return NewDecisionLoggerTo(f)
}

// NewDecisionLoggerTo writes events to w. The logger closes w on Close.
func NewDecisionLoggerTo(w io.WriteCloser) *DecisionLogger {
	return &DecisionLogger{w: w, now: time.Now}
}

// Event writes one event. kv is a flat list of alternating keys and values;
// a trailing key without a value is recorded under "!BADKEY" the way slog does.
func (dl *DecisionLogger) Event(name string, kv ...any) {
	if dl == nil {
		return
	}

	entry := make(map[string]any, len(kv)/2+2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if i+1 >= len(kv) {
			entry["!BADKEY"] = key
			break
		}
		entry[key] = kv[i+1]
	}
	entry["event"] = name

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.w == nil {
		return
	}
	entry["time"] = dl.now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = dl.w.Write(append(data, '\n'))
}

// Close closes the underlying writer.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.w != nil {
		dl.w.Close()
		dl.w = nil
	}
}
