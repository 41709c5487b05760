// Package debug provides category-based debug logging for the management API.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via MGMTAPI_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via MGMTAPI_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("tokens", "token validated", "username", p.Username)
//	if debug.Enabled("auth") { /* expensive formatting */ }
//
// Categories: auth, tokens, storage, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// Environment variables that take precedence over configured values.
const (
	EnvCategories = "MGMTAPI_DEBUG"
	EnvLevel      = "MGMTAPI_LOG_LEVEL"
)

// categories holds the set of enabled debug categories.
// Access is read-only after Setup, so no synchronization needed.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv(EnvCategories))
}

// Options configures Setup.
type Options struct {
	Categories string // comma separated
	Level      string
	Format     string // "text" or "json"
	Output     io.Writer
}

// Setup configures the debug categories and returns a logger with the
// resolved level and format. The logger also becomes the slog default.
// Environment overrides config.
func Setup(opts Options) *slog.Logger {
	cats := os.Getenv(EnvCategories)
	if cats == "" {
		cats = opts.Categories
	}
	categories = parseCategories(cats)

	level := os.Getenv(EnvLevel)
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var logger *slog.Logger
	if strings.EqualFold(opts.Format, "json") {
		logger = slog.New(slog.NewJSONHandler(out, hopts))
	} else {
		logger = slog.New(slog.NewTextHandler(out, hopts))
	}
	slog.SetDefault(logger)
	return logger
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when MGMTAPI_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the list of enabled categories.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
