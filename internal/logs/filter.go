package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Filter selects JSON log lines. Empty Component and Image match any value.
// MinLevel follows slog ordering, so the zero Filter drops debug lines.
type Filter struct {
	MinLevel  slog.Level
	Component string
	Image     string
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(value string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(value) == "" {
		return slog.LevelDebug, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", value)
	}
	return lvl, nil
}

// Entry is one decoded JSON log line.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Parse decodes a line written by the JSON handler.
func Parse(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	var entry Entry
	if ts, ok := raw["ts"].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if lvl, ok := raw["level"].(string); ok {
		_ = entry.Level.UnmarshalText([]byte(lvl))
	}
	entry.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	entry.Attrs = raw
	return entry, true
}

// Match reports whether line passes the filter. Lines that are not JSON only
// pass an empty filter.
func (f Filter) Match(line string) bool {
	entry, ok := Parse(line)
	if !ok {
		return f.Component == "" && f.Image == ""
	}
	if entry.Level < f.MinLevel {
		return false
	}
	if f.Component != "" && !strings.EqualFold(stringAttr(entry.Attrs, "component"), f.Component) {
		return false
	}
	if f.Image != "" && !strings.Contains(stringAttr(entry.Attrs, "image_path"), f.Image) {
		return false
	}
	return true
}

// Apply returns the lines that pass the filter.
func (f Filter) Apply(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

// Format renders a JSON line as "15:04:05 WARN  [component] msg key=value".
// Other lines are returned unchanged.
func Format(line string) string {
	entry, ok := Parse(line)
	if !ok {
		return line
	}
	var b strings.Builder
	if !entry.Time.IsZero() {
		b.WriteString(entry.Time.Local().Format("15:04:05 "))
	}
	fmt.Fprintf(&b, "%-5s ", entry.Level.String())
	if component := stringAttr(entry.Attrs, "component"); component != "" {
		fmt.Fprintf(&b, "[%s] ", component)
		delete(entry.Attrs, "component")
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}
