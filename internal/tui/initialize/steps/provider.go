package steps

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize/components"
	"github.com/archlens/archlens/internal/tui/styles"
)

// Provider selection phases.
type providerPhase int

const (
	phaseProvider providerPhase = iota
	phaseModel
	phaseAPIKey
)

// ModelInfo describes a chat completion model.
type ModelInfo struct {
	ID          string
	DisplayName string
	Description string
}

// ProviderInfo describes a chat completion provider.
type ProviderInfo struct {
	Name        string
	DisplayName string
	EnvVar      string
	KeyDetected bool
	Models      []ModelInfo
}

// ProviderStep configures the chat provider used by the analysis agents.
type ProviderStep struct {
	BaseStep

	phase         providerPhase
	providers     []ProviderInfo
	providerRadio components.RadioGroup
	modelRadio    components.RadioGroup
	keyInput      components.TextInput
	selectedIdx   int
}

// NewProviderStep creates a new chat provider configuration step.
func NewProviderStep() *ProviderStep {
	return &ProviderStep{
		BaseStep: NewBaseStep("Analysis Provider"),
		keyInput: components.NewTextInput("API Key:", ""),
	}
}

// buildProviders returns the chat providers the agents can run against.
func buildProviders() []ProviderInfo {
	return []ProviderInfo{
		{
			Name:        "openai",
			DisplayName: "OpenAI",
			EnvVar:      "OPENAI_API_KEY",
			Models: []ModelInfo{
				{ID: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Description: "Fast and cost-effective"},
				{ID: "gpt-4o", DisplayName: "GPT-4o", Description: "Higher quality findings"},
				{ID: "gpt-4.1-mini", DisplayName: "GPT-4.1 Mini", Description: "Latest compact model"},
			},
		},
		{
			Name:        "gemini",
			DisplayName: "Gemini (Google)",
			EnvVar:      "GEMINI_API_KEY",
			Models: []ModelInfo{
				{ID: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Description: "Fast, generous free tier"},
				{ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Description: "Most capable Gemini model"},
			},
		},
	}
}

// Init initializes the step with provider detection.
func (s *ProviderStep) Init(cfg *config.Config) tea.Cmd {
	s.providers = buildProviders()

	for i := range s.providers {
		s.providers[i].KeyDetected = DetectAPIKey(s.providers[i].EnvVar)
	}

	var options []components.RadioOption
	for _, p := range s.providers {
		label := p.DisplayName
		if p.KeyDetected {
			label += " (API Key detected)"
		}
		options = append(options, components.RadioOption{
			Label:       label,
			Value:       p.Name,
			Description: "Environment variable: " + p.EnvVar,
		})
	}

	s.providerRadio = components.NewRadioGroup(options)
	s.phase = phaseProvider

	// Pre-fill from existing config.
	if cfg.LLM.Provider != "" {
		for i, p := range s.providers {
			if p.Name == cfg.LLM.Provider {
				s.providerRadio.SetCursor(i)
				s.selectedIdx = i
				break
			}
		}
	}

	return nil
}

// Update handles input and phase transitions.
func (s *ProviderStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, StepContinue
	}

	switch s.phase {
	case phaseProvider:
		return s.handleProviderPhase(keyMsg)
	case phaseModel:
		return s.handleModelPhase(keyMsg)
	case phaseAPIKey:
		return s.handleAPIKeyPhase(keyMsg)
	}

	return nil, StepContinue
}

func (s *ProviderStep) handleProviderPhase(msg tea.KeyMsg) (tea.Cmd, StepResult) {
	switch msg.Type {
	case tea.KeyEnter:
		s.selectedIdx = s.providerRadio.Cursor()
		s.buildModelRadio()
		s.phase = phaseModel
		return nil, StepContinue

	case tea.KeyEsc:
		return nil, StepPrev

	default:
		s.providerRadio, _ = s.providerRadio.Update(msg)
		return nil, StepContinue
	}
}

func (s *ProviderStep) handleModelPhase(msg tea.KeyMsg) (tea.Cmd, StepResult) {
	switch msg.Type {
	case tea.KeyEnter:
		if s.providers[s.selectedIdx].KeyDetected {
			// Key already in the environment, nothing to ask for.
			return nil, StepNext
		}
		s.phase = phaseAPIKey
		s.keyInput.SetMasked(true)
		s.keyInput.Focus()
		return nil, StepContinue

	case tea.KeyEsc:
		s.phase = phaseProvider
		return nil, StepContinue

	default:
		s.modelRadio, _ = s.modelRadio.Update(msg)
		return nil, StepContinue
	}
}

func (s *ProviderStep) handleAPIKeyPhase(msg tea.KeyMsg) (tea.Cmd, StepResult) {
	switch msg.Type {
	case tea.KeyEnter:
		if err := s.Validate(); err == nil {
			return nil, StepNext
		}
		return nil, StepContinue

	case tea.KeyEsc:
		s.phase = phaseModel
		s.keyInput.Blur()
		return nil, StepContinue

	default:
		s.keyInput, _ = s.keyInput.Update(msg)
		return nil, StepContinue
	}
}

func (s *ProviderStep) buildModelRadio() {
	var options []components.RadioOption
	for _, m := range s.providers[s.selectedIdx].Models {
		options = append(options, components.RadioOption{
			Label:       m.DisplayName,
			Value:       m.ID,
			Description: m.Description,
		})
	}
	s.modelRadio = components.NewRadioGroup(options)
}

// View renders the step UI.
func (s *ProviderStep) View() string {
	var b strings.Builder

	b.WriteString(styles.SectionTitle.Render("Analysis Provider"))
	b.WriteString("\n\n")

	switch s.phase {
	case phaseProvider:
		b.WriteString(styles.MutedText.Render("Select the LLM provider for the analysis agents:"))
		b.WriteString("\n\n")
		b.WriteString(s.providerRadio.View())
		b.WriteString("\n")
		b.WriteString(FormatKeyStatus(s.providers[s.providerRadio.Cursor()].KeyDetected))
		b.WriteString("\n\n")
		b.WriteString(NavigationHelp())

	case phaseModel:
		b.WriteString(styles.MutedText.Render("Select the model:"))
		b.WriteString("\n\n")
		b.WriteString(s.modelRadio.View())
		b.WriteString("\n\n")
		b.WriteString(NavigationHelp())

	case phaseAPIKey:
		b.WriteString(styles.MutedText.Render("No " + s.providers[s.selectedIdx].EnvVar + " found. Enter an API key:"))
		b.WriteString("\n\n")
		b.WriteString(s.keyInput.View())
		b.WriteString("\n\n")
		b.WriteString(NavigationHelpWithInput())
	}

	return b.String()
}

// Validate checks that an API key is available for the selection.
func (s *ProviderStep) Validate() error {
	if len(s.providers) == 0 {
		return errors.New("no providers available")
	}
	provider := s.providers[s.selectedIdx]
	if !provider.KeyDetected && strings.TrimSpace(s.keyInput.Value()) == "" {
		return errors.New("an API key is required for " + provider.DisplayName)
	}
	return nil
}

// Apply writes the provider selection to the config.
func (s *ProviderStep) Apply(cfg *config.Config) error {
	provider := s.providers[s.selectedIdx]

	cfg.LLM.Provider = provider.Name
	cfg.LLM.Model = s.modelRadio.Value()
	cfg.LLM.APIKeyEnv = provider.EnvVar

	if key := strings.TrimSpace(s.keyInput.Value()); key != "" {
		cfg.LLM.APIKey = &key
	}
	return nil
}
