// Package keypad implements the button semantics shared by the calculator
// shells: keys append to the display, "<-" deletes the last character, "C"
// clears it and "=" replaces it with the engine's result.
package keypad

import (
	"unicode/utf8"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

// Special keys.
const (
	KeyClear     = "C"
	KeyBackspace = "<-"
	KeyEquals    = "="
)

// Layout is the button grid in row-major order.
var Layout = [][]string{
	{"7", "8", "9", "+", "("},
	{"4", "5", "6", "-", ")"},
	{"1", "2", "3", "*", KeyBackspace},
	{"0", ".", KeyEquals, "/", KeyClear},
}

var validKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, row := range Layout {
		for _, key := range row {
			m[key] = true
		}
	}
	return m
}()

// IsKey reports whether key is one of the buttons in Layout.
func IsKey(key string) bool {
	return validKeys[key]
}

// Press applies key to display and returns the new display text. The display
// is forwarded to engine verbatim on "="; the shell does no validation of
// its own. A nil engine leaves the display unchanged on "=".
func Press(engine calc.Engine, display, key string) string {
	switch key {
	case KeyClear:
		return ""
	case KeyBackspace:
		if display == "" {
			return display
		}
		_, size := utf8.DecodeLastRuneInString(display)
		return display[:len(display)-size]
	case KeyEquals:
		if engine == nil {
			return display
		}
		return engine.Evaluate(display)
	default:
		return display + key
	}
}
