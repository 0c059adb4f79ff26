// Package steps contains the individual screens of the setup wizard.
// Each step owns its own inputs and writes its answers back into the
// shared config when the wizard advances past it.
package steps

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
)

// StepResult tells the wizard what to do after a step handles a message.
type StepResult int

const (
	// StepContinue keeps the current step active.
	StepContinue StepResult = iota
	// StepNext advances to the following step.
	StepNext
	// StepPrev returns to the previous step.
	StepPrev
)

// Step is one screen of the wizard.
type Step interface {
	// Init prepares the step from the working configuration. The wizard
	// calls it each time the step becomes active, including when the
	// user navigates back.
	Init(cfg *config.Config) tea.Cmd

	// Update handles a terminal message and reports whether the wizard
	// should stay, advance, or go back.
	Update(msg tea.Msg) (tea.Cmd, StepResult)

	// View renders the step.
	View() string

	// Title names the step in the progress indicator.
	Title() string

	// Validate checks the step's current input without applying it.
	Validate() error

	// Apply writes the step's answers into the working configuration.
	// The wizard calls it only after Validate succeeds.
	Apply(cfg *config.Config) error
}

// BaseStep carries the title shared by every step implementation.
type BaseStep struct {
	title string
}

// NewBaseStep creates a BaseStep with the given title.
func NewBaseStep(title string) BaseStep {
	return BaseStep{title: title}
}

// Title returns the step's title.
func (b BaseStep) Title() string {
	return b.title
}
