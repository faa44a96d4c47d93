// Package envconfig reads the handful of process-environment knobs the
// forward-pass core honors, following the teacher's Var/Bool getter-factory
// pattern rather than scattering os.Getenv calls through the engine.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns the trimmed value of the named environment variable, or "".
func Var(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// BoolWithDefault reads a boolean-valued environment variable, returning
// defaultValue when unset or empty. An unparsable value is treated as true,
// matching the teacher's tolerant "presence implies enabled" convention
// (e.g. `FOO=yes` enables the flag; `FOO=` counts as unset).
func BoolWithDefault(key string, defaultValue bool) bool {
	s := Var(key)
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return true
	}
	return b
}

// Bool reads a boolean-valued environment variable, defaulting to false.
func Bool(key string) bool {
	return BoolWithDefault(key, false)
}

// CoopFused reports whether CALM_COOP requests the cooperative fused
// forward path (spec.md §6: "CALM_COOP=1 selects the cooperative fused path
// when the architecture supports it").
func CoopFused() bool {
	return Bool("CALM_COOP")
}

// LogLevel returns the configured slog level for CALM_LOG_LEVEL, defaulting
// to Info. Unrecognized values log a warning and fall back to Info rather
// than failing prepare-time, since log verbosity is not config-correctness.
func LogLevel() slog.Level {
	switch strings.ToLower(Var("CALM_LOG_LEVEL")) {
	case "":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unrecognized CALM_LOG_LEVEL, using info", "value", Var("CALM_LOG_LEVEL"))
		return slog.LevelInfo
	}
}
