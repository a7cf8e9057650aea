package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok, "Update returned %T", next)
	}
	return m
}

func TestTypingAndEvaluate(t *testing.T) {
	m := New(calc.New())
	m = send(t, m, runes("3"), runes("+"), runes("4"), runes("*"), runes("2"))
	assert.Equal(t, "3+4*2", m.Display())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "11.0", m.Display())
}

func TestEqualsRune(t *testing.T) {
	m := send(t, New(calc.New()), runes("5"), runes("/"), runes("0"), runes("="))
	assert.Equal(t, calc.ErrorSentinel, m.Display())
}

func TestBackspaceAndClear(t *testing.T) {
	m := send(t, New(calc.New()), runes("1"), runes("2"), tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "1", m.Display())

	m = send(t, m, runes("c"))
	assert.Equal(t, "", m.Display())

	m = send(t, m, runes("9"), runes("C"))
	assert.Equal(t, "", m.Display())

	m = send(t, m, runes("9"), tea.KeyMsg{Type: tea.KeyDelete})
	assert.Equal(t, "", m.Display())
}

func TestIgnoresUnknownKeys(t *testing.T) {
	m := send(t, New(calc.New()), runes("1"), runes("x"), runes("%"), tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "1", m.Display())
}

func TestCursorNavigation(t *testing.T) {
	m := New(calc.New())
	assert.Equal(t, "7", m.Selected())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "5", m.Selected())

	// Wraps around both axes.
	m = send(t, New(calc.New()), tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, "C", m.Selected())

	m = send(t, New(calc.New()), tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, "7", m.Display())
}

func TestQuit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}, {Type: tea.KeyEsc}} {
		next, cmd := New(calc.New()).Update(msg)
		require.NotNil(t, cmd, "key %q should quit", msg.String())
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Equal(t, "", next.View())
	}
}

func TestView(t *testing.T) {
	m := send(t, New(calc.New()), runes("4"), runes("2"))
	view := m.View()
	assert.Contains(t, view, "42")
	for _, key := range []string{"7", "+", "(", "<-", "C", "="} {
		assert.Contains(t, view, key)
	}
	assert.True(t, strings.Contains(view, "q quits"))
}

func TestNonKeyMessagesIgnored(t *testing.T) {
	m := send(t, New(calc.New()), runes("1"), tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, "1", m.Display())
	assert.Nil(t, m.Init())
}
