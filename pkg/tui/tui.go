// Package tui implements the terminal keypad for the calculator using Bubble
// Tea. Keys typed on the keyboard and buttons chosen with the arrow keys go
// through the same keypad semantics as the web UI.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
	"github.com/lemonberrylabs/deskcalc/pkg/keypad"
)

var (
	displayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1).
			Width(27).
			Align(lipgloss.Right)

	displayErrorStyle = displayStyle.
				Foreground(lipgloss.Color("196")).
				Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Width(5).
			Align(lipgloss.Center)

	buttonSelectedStyle = buttonStyle.
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("62")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Model is the Bubble Tea model of the terminal keypad.
type Model struct {
	engine   calc.Engine
	display  string
	row, col int
	quitting bool
}

// New creates a keypad model evaluating with engine.
func New(engine calc.Engine) Model {
	return Model{engine: engine}
}

// Display returns the current display text.
func (m Model) Display() string {
	return m.display
}

// Selected returns the button under the cursor.
func (m Model) Selected() string {
	return keypad.Layout[m.row][m.col]
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key := keyMsg.String(); key {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up":
		m.row = (m.row + len(keypad.Layout) - 1) % len(keypad.Layout)
	case "down":
		m.row = (m.row + 1) % len(keypad.Layout)
	case "left":
		width := len(keypad.Layout[m.row])
		m.col = (m.col + width - 1) % width
	case "right":
		m.col = (m.col + 1) % len(keypad.Layout[m.row])
	case " ":
		m.display = keypad.Press(m.engine, m.display, m.Selected())
	case "enter", "=":
		m.display = keypad.Press(m.engine, m.display, keypad.KeyEquals)
	case "backspace":
		m.display = keypad.Press(m.engine, m.display, keypad.KeyBackspace)
	case "c", "delete":
		m.display = keypad.Press(m.engine, m.display, keypad.KeyClear)
	default:
		if keypad.IsKey(key) {
			m.display = keypad.Press(m.engine, m.display, key)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	style := displayStyle
	if calc.IsError(m.display) {
		style = displayErrorStyle
	}
	b.WriteString(style.Render(m.display))
	b.WriteString("\n")

	for r, row := range keypad.Layout {
		cells := make([]string, len(row))
		for c, key := range row {
			if r == m.row && c == m.col {
				cells[c] = buttonSelectedStyle.Render(key)
			} else {
				cells[c] = buttonStyle.Render(key)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("arrows move, space presses, enter evaluates, c clears, q quits"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the keypad on the terminal and blocks until the user quits.
// It returns the final display text.
func Run(engine calc.Engine, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(New(engine), opts...).Run()
	if err != nil {
		return "", err
	}
	if m, ok := final.(Model); ok {
		return m.display, nil
	}
	return "", nil
}
