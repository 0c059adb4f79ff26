// Package initialize provides the TUI wizard for first-time configuration.
package initialize

import (
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize/components"
	"github.com/archlens/archlens/internal/tui/initialize/steps"
	"github.com/archlens/archlens/internal/tui/styles"
)

// Re-export step types for convenience.
type Step = steps.Step
type StepResult = steps.StepResult

const (
	StepContinue = steps.StepContinue
	StepNext     = steps.StepNext
	StepPrev     = steps.StepPrev
)

// DefaultSteps returns the standard wizard flow.
func DefaultSteps() []Step {
	return []Step{
		steps.NewProviderStep(),
		steps.NewEmbeddingsStep(),
		steps.NewServicesStep(),
		steps.NewHTTPPortStep(),
		steps.NewConfirmStep(),
	}
}

// WizardResult holds the outcome of the setup wizard.
type WizardResult struct {
	// Config contains the final configuration if confirmed.
	Config *config.Config
	// Confirmed indicates whether the user confirmed the configuration.
	Confirmed bool
	// Cancelled indicates whether the user cancelled the wizard.
	Cancelled bool
	// Err contains any error that occurred during the wizard.
	Err error
}

// WizardModel drives the step sequence. It owns the working config and
// hands it to each step in turn; steps mutate it only through Apply.
type WizardModel struct {
	steps       []Step
	currentStep int
	config      *config.Config
	progress    components.Progress
	err         error
	cancelled   bool
	confirmed   bool
	quitting    bool
	width       int
	height      int
}

// NewWizard creates a wizard over the given configuration and steps.
func NewWizard(cfg *config.Config, stepList []Step) WizardModel {
	titles := make([]string, len(stepList))
	for i, s := range stepList {
		titles[i] = s.Title()
	}

	slog.Debug("creating wizard model", "step_count", len(stepList))

	return WizardModel{
		steps:    stepList,
		config:   cfg,
		progress: components.NewProgress(titles),
	}
}

// Init starts the first step.
func (m WizardModel) Init() tea.Cmd {
	if len(m.steps) == 0 {
		slog.Warn("wizard initialized with no steps")
		return tea.Quit
	}
	return m.steps[0].Init(m.config)
}

// Update routes messages: Ctrl+C and resize are handled here, everything
// else goes to the active step.
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	if m.currentStep < 0 || m.currentStep >= len(m.steps) {
		return m, nil
	}

	cmd, result := m.steps[m.currentStep].Update(msg)
	switch result {
	case StepNext:
		return m.nextStep()
	case StepPrev:
		return m.prevStep()
	default:
		return m, cmd
	}
}

// View renders the wizard UI.
func (m WizardModel) View() string {
	if m.quitting {
		if m.cancelled {
			return styles.ErrorText.Render("Setup cancelled.") + "\n"
		}
		return ""
	}

	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Primary).
		MarginBottom(1).
		Render("ArchLens Setup Wizard")

	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")

	if m.currentStep >= 0 && m.currentStep < len(m.steps) {
		b.WriteString(m.steps[m.currentStep].View())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render(m.err.Error()))
	}

	return styles.Container.Render(b.String())
}

// nextStep validates and applies the current step. A validation or apply
// failure keeps the step active with the error displayed; advancing past
// the last step completes the wizard.
func (m WizardModel) nextStep() (tea.Model, tea.Cmd) {
	if m.currentStep >= len(m.steps) {
		return m, nil
	}

	active := m.steps[m.currentStep]

	if err := active.Validate(); err != nil {
		slog.Debug("step validation failed", "step", active.Title(), "error", err)
		m.err = err
		return m, nil
	}
	if err := active.Apply(m.config); err != nil {
		slog.Error("step apply failed", "step", active.Title(), "error", err)
		m.err = err
		return m, nil
	}
	m.err = nil

	if m.currentStep == len(m.steps)-1 {
		slog.Info("wizard completed, all steps finished")
		m.confirmed = true
		m.quitting = true
		return m, tea.Quit
	}

	m.currentStep++
	m.progress.SetCurrent(m.currentStep)
	return m, m.steps[m.currentStep].Init(m.config)
}

// prevStep returns to the previous step, discarding any pending error.
// The earlier step re-inits from the config so it shows applied values.
func (m WizardModel) prevStep() (tea.Model, tea.Cmd) {
	if m.currentStep == 0 {
		return m, nil
	}

	m.err = nil
	m.currentStep--
	m.progress.SetCurrent(m.currentStep)
	return m, m.steps[m.currentStep].Init(m.config)
}

// Result returns the wizard outcome after the program exits.
func (m WizardModel) Result() WizardResult {
	return WizardResult{
		Config:    m.config,
		Confirmed: m.confirmed,
		Cancelled: m.cancelled,
		Err:       m.err,
	}
}

// RunWizard runs the wizard to completion in the alternate screen.
func RunWizard(cfg *config.Config, stepList []Step) (WizardResult, error) {
	p := tea.NewProgram(NewWizard(cfg, stepList), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return WizardResult{Err: err}, err
	}

	if m, ok := finalModel.(WizardModel); ok {
		return m.Result(), nil
	}
	return WizardResult{}, nil
}
