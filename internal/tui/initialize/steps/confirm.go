package steps

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/styles"
)

// ConfirmStep displays a configuration summary and asks for confirmation.
type ConfirmStep struct {
	BaseStep

	cfg *config.Config
}

// NewConfirmStep creates a new confirmation step.
func NewConfirmStep() *ConfirmStep {
	return &ConfirmStep{
		BaseStep: NewBaseStep("Confirm"),
	}
}

// Init initializes the step with the current configuration.
func (s *ConfirmStep) Init(cfg *config.Config) tea.Cmd {
	s.cfg = cfg
	return nil
}

// Update handles input.
func (s *ConfirmStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, StepContinue
	}

	switch keyMsg.Type {
	case tea.KeyEnter:
		return nil, StepNext

	case tea.KeyEsc:
		return nil, StepPrev
	}

	return nil, StepContinue
}

// View renders the configuration summary.
func (s *ConfirmStep) View() string {
	var b strings.Builder

	b.WriteString(styles.SectionTitle.Render("Configuration Summary"))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Review your settings before saving:"))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Primary).
		Width(20)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))

	b.WriteString(s.formatSection("Analysis"))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Provider", s.cfg.LLM.Provider))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Model", s.cfg.LLM.Model))
	if s.cfg.LLM.APIKey != nil && *s.cfg.LLM.APIKey != "" {
		b.WriteString(s.formatRow(labelStyle, valueStyle, "API Key", "********"))
	}
	b.WriteString("\n")

	b.WriteString(s.formatSection("Embeddings"))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Model", s.cfg.Embeddings.Model))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Dimension", fmt.Sprintf("%d", s.cfg.Embeddings.Dimension)))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Endpoint", s.cfg.Embeddings.BaseURL))
	b.WriteString("\n")

	b.WriteString(s.formatSection("Services"))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Qdrant", fmt.Sprintf("%s:%d", s.cfg.Vector.Host, s.cfg.Vector.Port)))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Redis", s.cfg.Bus.RedisAddr))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Blob store", s.cfg.Storage.Blob.Endpoint))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "Bucket", s.cfg.Storage.Blob.Bucket))
	b.WriteString("\n")

	b.WriteString(s.formatSection("Server"))
	b.WriteString(s.formatRow(labelStyle, valueStyle, "HTTP Port", fmt.Sprintf("%d", s.cfg.Server.HTTPPort)))
	b.WriteString("\n")

	confirmStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Success)

	b.WriteString(confirmStyle.Render("Press Enter to save the configuration."))
	b.WriteString("\n\n")
	b.WriteString(NavigationHelp())

	return b.String()
}

func (s *ConfirmStep) formatSection(title string) string {
	return styles.SectionTitle.Render(title) + "\n"
}

func (s *ConfirmStep) formatRow(labelStyle, valueStyle lipgloss.Style, label, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value) + "\n"
}

// Validate always passes for the confirm step.
func (s *ConfirmStep) Validate() error {
	return nil
}

// Apply is a no-op for the confirm step.
func (s *ConfirmStep) Apply(cfg *config.Config) error {
	return nil
}
