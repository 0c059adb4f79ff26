package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/tui/styles"
)

// ValidatorFunc validates an input value.
type ValidatorFunc func(string) error

// TextInput is a labeled single-line input for wizard fields: service
// addresses, ports, API keys. Validation runs on demand, and the last
// validation error is rendered inline under the field until the value
// changes.
type TextInput struct {
	input     textinput.Model
	label     string
	validator ValidatorFunc
	lastErr   error
	lastValue string
}

// NewTextInput creates a text input with the given label and default
// value.
func NewTextInput(label, defaultValue string) TextInput {
	ti := textinput.New()
	ti.SetValue(defaultValue)
	ti.CharLimit = 256
	ti.Width = 40

	return TextInput{
		input:     ti,
		label:     label,
		lastValue: defaultValue,
	}
}

// Init implements tea.Model.
func (t TextInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events. Editing the value clears a previously
// displayed validation error.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)

	if t.input.Value() != t.lastValue {
		t.lastValue = t.input.Value()
		t.lastErr = nil
	}
	return t, cmd
}

// View renders the labeled input and, when present, the inline
// validation error.
func (t TextInput) View() string {
	label := lipgloss.NewStyle().
		Foreground(styles.Secondary).
		MarginBottom(1).
		Render(t.label)

	out := label + "\n" + t.input.View()
	if t.lastErr != nil {
		out += "\n" + styles.ErrorText.Render(t.lastErr.Error())
	}
	return out
}

// Value returns the current input value with surrounding whitespace
// removed.
func (t TextInput) Value() string {
	return strings.TrimSpace(t.input.Value())
}

// SetValue sets the input value.
func (t *TextInput) SetValue(value string) {
	t.input.SetValue(value)
	t.lastValue = value
	t.lastErr = nil
}

// Focus focuses the input.
func (t *TextInput) Focus() tea.Cmd {
	return t.input.Focus()
}

// Blur removes focus from the input.
func (t *TextInput) Blur() {
	t.input.Blur()
}

// Focused returns whether the input is focused.
func (t TextInput) Focused() bool {
	return t.input.Focused()
}

// SetPlaceholder sets the placeholder text.
func (t *TextInput) SetPlaceholder(placeholder string) {
	t.input.Placeholder = placeholder
}

// SetMasked enables or disables secret masking for API key fields.
func (t *TextInput) SetMasked(masked bool) {
	if masked {
		t.input.EchoMode = textinput.EchoPassword
		t.input.EchoCharacter = '*'
	} else {
		t.input.EchoMode = textinput.EchoNormal
	}
}

// SetValidator sets the validation function.
func (t *TextInput) SetValidator(fn ValidatorFunc) {
	t.validator = fn
}

// Validate runs the validator, if set, against the trimmed value and
// records the result for inline display.
func (t *TextInput) Validate() error {
	if t.validator == nil {
		return nil
	}
	t.lastErr = t.validator(t.Value())
	return t.lastErr
}
