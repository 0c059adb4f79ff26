// Package components provides reusable TUI components for the setup wizard.
package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/tui/styles"
)

// RadioOption represents a single option in a radio group.
type RadioOption struct {
	Label       string
	Value       string
	Description string
}

// RadioGroup is a component for selecting one option from a list.
type RadioGroup struct {
	options []RadioOption
	cursor  int
}

// NewRadioGroup creates a new radio group with the given options.
func NewRadioGroup(options []RadioOption) RadioGroup {
	return RadioGroup{options: options}
}

// Update handles keyboard input for navigation.
func (r RadioGroup) Update(msg tea.Msg) (RadioGroup, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}

	switch keyMsg.Type {
	case tea.KeyUp, tea.KeyShiftTab:
		r.moveUp()
	case tea.KeyDown, tea.KeyTab:
		r.moveDown()
	}

	switch keyMsg.String() {
	case "k":
		r.moveUp()
	case "j":
		r.moveDown()
	}

	return r, nil
}

func (r *RadioGroup) moveUp() {
	r.cursor--
	if r.cursor < 0 {
		r.cursor = len(r.options) - 1
	}
}

func (r *RadioGroup) moveDown() {
	r.cursor++
	if r.cursor >= len(r.options) {
		r.cursor = 0
	}
}

// View renders the radio group.
func (r RadioGroup) View() string {
	var b strings.Builder

	descStyle := lipgloss.NewStyle().
		Foreground(styles.Muted).
		MarginLeft(4)

	for i, opt := range r.options {
		cursor := "  "
		style := styles.Unfocused

		if i == r.cursor {
			cursor = styles.CursorIndicator + " "
			style = styles.Cursor
		}

		b.WriteString(fmt.Sprintf("%s%s\n", cursor, style.Render(opt.Label)))

		if opt.Description != "" {
			b.WriteString(descStyle.Render(opt.Description))
			b.WriteString("\n")
		}

		if i < len(r.options)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Cursor returns the index of the highlighted option.
func (r RadioGroup) Cursor() int {
	return r.cursor
}

// SetCursor moves the highlight to the given index, clamping to range.
func (r *RadioGroup) SetCursor(idx int) {
	if idx < 0 || idx >= len(r.options) {
		return
	}
	r.cursor = idx
}

// Selected returns the currently highlighted option.
func (r RadioGroup) Selected() RadioOption {
	if len(r.options) == 0 {
		return RadioOption{}
	}
	return r.options[r.cursor]
}

// Value returns the value of the highlighted option.
func (r RadioGroup) Value() string {
	return r.Selected().Value
}
