package steps

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize/components"
	"github.com/archlens/archlens/internal/tui/styles"
)

// EmbeddingsModelInfo describes an embeddings model.
type EmbeddingsModelInfo struct {
	ID          string
	DisplayName string
	Description string
	Dimensions  int
}

// EmbeddingsStep configures the embeddings provider used for RAG
// indexing. The endpoint is any OpenAI-compatible embeddings API.
type EmbeddingsStep struct {
	BaseStep

	modelRadio components.RadioGroup
	urlInput   components.TextInput
	models     []EmbeddingsModelInfo
	pickingURL bool
}

// NewEmbeddingsStep creates a new embeddings configuration step.
func NewEmbeddingsStep() *EmbeddingsStep {
	return &EmbeddingsStep{
		BaseStep: NewBaseStep("Embeddings"),
		urlInput: components.NewTextInput("Endpoint URL:", "https://api.openai.com/v1"),
	}
}

// buildEmbeddingsModels returns the supported embeddings models.
func buildEmbeddingsModels() []EmbeddingsModelInfo {
	return []EmbeddingsModelInfo{
		{ID: "text-embedding-3-small", DisplayName: "Embedding 3 Small", Description: "Cost-effective, 1536 dimensions", Dimensions: 1536},
		{ID: "text-embedding-3-large", DisplayName: "Embedding 3 Large", Description: "Highest quality, 3072 dimensions", Dimensions: 3072},
	}
}

// Init initializes the step.
func (s *EmbeddingsStep) Init(cfg *config.Config) tea.Cmd {
	s.models = buildEmbeddingsModels()

	var options []components.RadioOption
	for _, m := range s.models {
		options = append(options, components.RadioOption{
			Label:       m.DisplayName,
			Value:       m.ID,
			Description: m.Description,
		})
	}
	s.modelRadio = components.NewRadioGroup(options)
	s.pickingURL = false

	// Pre-fill from existing config.
	for i, m := range s.models {
		if m.ID == cfg.Embeddings.Model {
			s.modelRadio.SetCursor(i)
			break
		}
	}
	if cfg.Embeddings.BaseURL != "" {
		s.urlInput.SetValue(cfg.Embeddings.BaseURL)
	}

	return nil
}

// Update handles input.
func (s *EmbeddingsStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, StepContinue
	}

	if !s.pickingURL {
		switch keyMsg.Type {
		case tea.KeyEnter:
			s.pickingURL = true
			s.urlInput.Focus()
			return nil, StepContinue
		case tea.KeyEsc:
			return nil, StepPrev
		default:
			s.modelRadio, _ = s.modelRadio.Update(keyMsg)
			return nil, StepContinue
		}
	}

	switch keyMsg.Type {
	case tea.KeyEnter:
		if err := s.Validate(); err == nil {
			return nil, StepNext
		}
		return nil, StepContinue
	case tea.KeyEsc:
		s.pickingURL = false
		s.urlInput.Blur()
		return nil, StepContinue
	default:
		s.urlInput, _ = s.urlInput.Update(keyMsg)
		return nil, StepContinue
	}
}

// View renders the step UI.
func (s *EmbeddingsStep) View() string {
	var b strings.Builder

	b.WriteString(styles.SectionTitle.Render("Vector Embeddings"))
	b.WriteString("\n\n")

	if !s.pickingURL {
		b.WriteString(styles.MutedText.Render("Select the embeddings model used for similarity retrieval:"))
		b.WriteString("\n\n")
		b.WriteString(s.modelRadio.View())
		b.WriteString("\n\n")
		b.WriteString(NavigationHelp())
	} else {
		b.WriteString(styles.MutedText.Render("Embeddings endpoint (any OpenAI-compatible API):"))
		b.WriteString("\n\n")
		b.WriteString(s.urlInput.View())
		b.WriteString("\n\n")
		b.WriteString(NavigationHelpWithInput())
	}

	return b.String()
}

// Validate checks the endpoint URL.
func (s *EmbeddingsStep) Validate() error {
	url := strings.TrimSpace(s.urlInput.Value())
	if url == "" {
		return errors.New("endpoint URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New("endpoint URL must start with http:// or https://")
	}
	return nil
}

// Apply writes the embeddings selection to the config.
func (s *EmbeddingsStep) Apply(cfg *config.Config) error {
	model := s.models[s.modelRadio.Cursor()]

	cfg.Embeddings.Model = model.ID
	cfg.Embeddings.Dimension = model.Dimensions
	cfg.Embeddings.BaseURL = strings.TrimSpace(s.urlInput.Value())
	return nil
}
