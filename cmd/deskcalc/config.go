package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// strictOverride returns --strict when given, else DESKCALC_STRICT when set.
// The second result reports whether either was present.
func strictOverride(cmd *cobra.Command) (bool, bool) {
	if f := cmd.Flags().Lookup("strict"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("strict")
		return v, true
	}
	if env := os.Getenv("DESKCALC_STRICT"); env != "" {
		v, _ := strconv.ParseBool(env)
		return v, true
	}
	return false, false
}

// strictSetting returns the strict tokenization setting, defaulting to false.
func strictSetting(cmd *cobra.Command) bool {
	v, _ := strictOverride(cmd)
	return v
}

// newLogger builds the engine logger from --log-level or DESKCALC_LOG_LEVEL.
// Without a level the logger discards everything.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := os.Getenv("DESKCALC_LOG_LEVEL")
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	if level == "" {
		return slog.New(slog.DiscardHandler), nil
	}

	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

// newCalculator builds a Calculator from the persistent flags.
func newCalculator(cmd *cobra.Command) (*calc.Calculator, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	return calc.New(calc.WithLogger(logger), calc.WithStrictTokens(strictSetting(cmd))), nil
}
