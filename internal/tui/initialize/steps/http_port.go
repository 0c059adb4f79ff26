package steps

import (
	"errors"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize/components"
	"github.com/archlens/archlens/internal/tui/styles"
)

// PortChecker reports whether a port is in use.
type PortChecker func(port int) bool

// HTTPPortStep handles HTTP API port configuration.
type HTTPPortStep struct {
	BaseStep

	portInput   components.TextInput
	err         error
	warning     string
	portChecker PortChecker
}

// NewHTTPPortStep creates a new HTTP port configuration step.
func NewHTTPPortStep() *HTTPPortStep {
	return &HTTPPortStep{
		BaseStep:    NewBaseStep("HTTP Port"),
		portInput:   components.NewTextInput("Port:", strconv.Itoa(config.DefaultHTTPPort)),
		portChecker: CheckPortInUse,
	}
}

// SetPortChecker sets a custom port checker (for testing).
func (s *HTTPPortStep) SetPortChecker(checker PortChecker) {
	s.portChecker = checker
}

// Init initializes the step.
func (s *HTTPPortStep) Init(cfg *config.Config) tea.Cmd {
	if cfg.Server.HTTPPort != 0 {
		s.portInput.SetValue(strconv.Itoa(cfg.Server.HTTPPort))
	}

	s.err = nil
	s.warning = ""
	s.checkPortAvailability()

	return s.portInput.Focus()
}

// Update handles input.
func (s *HTTPPortStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, StepContinue
	}

	switch keyMsg.Type {
	case tea.KeyEnter:
		if err := s.Validate(); err != nil {
			s.err = err
			return nil, StepContinue
		}
		s.err = nil
		return nil, StepNext

	case tea.KeyEsc:
		return nil, StepPrev

	default:
		s.portInput, _ = s.portInput.Update(keyMsg)
		s.err = nil
		s.checkPortAvailability()
		return nil, StepContinue
	}
}

// checkPortAvailability warns when the entered port already has a
// listener.
func (s *HTTPPortStep) checkPortAvailability() {
	s.warning = ""

	port, err := strconv.Atoi(strings.TrimSpace(s.portInput.Value()))
	if err != nil || port < 1 || port > 65535 {
		return
	}

	if s.portChecker != nil && s.portChecker(port) {
		s.warning = "Port " + strconv.Itoa(port) + " appears to be in use"
	}
}

// View renders the step UI.
func (s *HTTPPortStep) View() string {
	var b strings.Builder

	b.WriteString(styles.SectionTitle.Render("HTTP API Port"))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("The port the review service listens on:"))
	b.WriteString("\n\n")
	b.WriteString(s.portInput.View())

	if s.warning != "" {
		b.WriteString("\n\n")
		b.WriteString(FormatWarning(s.warning))
	}
	if s.err != nil {
		b.WriteString("\n\n")
		b.WriteString(FormatError(s.err))
	}

	b.WriteString("\n\n")
	b.WriteString(NavigationHelpWithInput())

	return b.String()
}

// Validate checks the port number.
func (s *HTTPPortStep) Validate() error {
	port, err := strconv.Atoi(strings.TrimSpace(s.portInput.Value()))
	if err != nil {
		return errors.New("port must be a number")
	}
	if port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// Apply writes the port to the config.
func (s *HTTPPortStep) Apply(cfg *config.Config) error {
	port, err := strconv.Atoi(strings.TrimSpace(s.portInput.Value()))
	if err != nil {
		return errors.New("port must be a number")
	}
	cfg.Server.HTTPPort = port
	return nil
}
