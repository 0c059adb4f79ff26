package steps

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize/components"
	"github.com/archlens/archlens/internal/tui/styles"
)

// ServicesStep configures the backing services: Qdrant, Redis, and the
// blob store. Tab cycles between the fields.
type ServicesStep struct {
	BaseStep

	inputs  []components.TextInput
	focused int
	err     error
}

// Field order within the inputs slice.
const (
	fieldQdrantHost = iota
	fieldQdrantPort
	fieldRedisAddr
	fieldBlobEndpoint
	fieldBlobBucket
	fieldCount
)

// NewServicesStep creates a new backing services configuration step.
func NewServicesStep() *ServicesStep {
	inputs := make([]components.TextInput, fieldCount)
	inputs[fieldQdrantHost] = components.NewTextInput("Qdrant host:", config.DefaultVectorHost)
	inputs[fieldQdrantPort] = components.NewTextInput("Qdrant gRPC port:", strconv.Itoa(config.DefaultVectorPort))
	inputs[fieldRedisAddr] = components.NewTextInput("Redis address:", config.DefaultRedisAddr)
	inputs[fieldBlobEndpoint] = components.NewTextInput("Blob store endpoint:", config.DefaultBlobEndpoint)
	inputs[fieldBlobBucket] = components.NewTextInput("Blob bucket:", config.DefaultBlobBucket)

	return &ServicesStep{
		BaseStep: NewBaseStep("Services"),
		inputs:   inputs,
	}
}

// Init initializes the step.
func (s *ServicesStep) Init(cfg *config.Config) tea.Cmd {
	if cfg.Vector.Host != "" {
		s.inputs[fieldQdrantHost].SetValue(cfg.Vector.Host)
	}
	if cfg.Vector.Port != 0 {
		s.inputs[fieldQdrantPort].SetValue(strconv.Itoa(cfg.Vector.Port))
	}
	if cfg.Bus.RedisAddr != "" {
		s.inputs[fieldRedisAddr].SetValue(cfg.Bus.RedisAddr)
	}
	if cfg.Storage.Blob.Endpoint != "" {
		s.inputs[fieldBlobEndpoint].SetValue(cfg.Storage.Blob.Endpoint)
	}
	if cfg.Storage.Blob.Bucket != "" {
		s.inputs[fieldBlobBucket].SetValue(cfg.Storage.Blob.Bucket)
	}

	s.focused = 0
	s.err = nil
	return s.focusField(0)
}

func (s *ServicesStep) focusField(idx int) tea.Cmd {
	for i := range s.inputs {
		if i == idx {
			continue
		}
		s.inputs[i].Blur()
	}
	s.focused = idx
	return s.inputs[idx].Focus()
}

// Update handles input and field cycling.
func (s *ServicesStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, StepContinue
	}

	switch keyMsg.Type {
	case tea.KeyEnter:
		if s.focused < len(s.inputs)-1 {
			return s.focusField(s.focused + 1), StepContinue
		}
		if err := s.Validate(); err != nil {
			s.err = err
			return nil, StepContinue
		}
		s.err = nil
		return nil, StepNext

	case tea.KeyTab, tea.KeyDown:
		return s.focusField((s.focused + 1) % len(s.inputs)), StepContinue

	case tea.KeyShiftTab, tea.KeyUp:
		return s.focusField((s.focused - 1 + len(s.inputs)) % len(s.inputs)), StepContinue

	case tea.KeyEsc:
		return nil, StepPrev

	default:
		s.inputs[s.focused], _ = s.inputs[s.focused].Update(keyMsg)
		s.err = nil
		return nil, StepContinue
	}
}

// View renders the step UI.
func (s *ServicesStep) View() string {
	var b strings.Builder

	b.WriteString(styles.SectionTitle.Render("Backing Services"))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Where the vector database, command bus, and blob store live:"))
	b.WriteString("\n\n")

	for i := range s.inputs {
		b.WriteString(s.inputs[i].View())
		if i < len(s.inputs)-1 {
			b.WriteString("\n\n")
		}
	}

	if s.err != nil {
		b.WriteString("\n\n")
		b.WriteString(FormatError(s.err))
	}

	b.WriteString("\n\n")
	b.WriteString(NavigationHelpWithInput())

	return b.String()
}

// Validate checks all service addresses.
func (s *ServicesStep) Validate() error {
	if strings.TrimSpace(s.inputs[fieldQdrantHost].Value()) == "" {
		return errors.New("Qdrant host is required")
	}

	port, err := strconv.Atoi(strings.TrimSpace(s.inputs[fieldQdrantPort].Value()))
	if err != nil || port < 1 || port > 65535 {
		return errors.New("Qdrant port must be a number between 1 and 65535")
	}

	redisAddr := strings.TrimSpace(s.inputs[fieldRedisAddr].Value())
	if _, _, err := net.SplitHostPort(redisAddr); err != nil {
		return fmt.Errorf("Redis address must be host:port; %w", err)
	}

	if strings.TrimSpace(s.inputs[fieldBlobEndpoint].Value()) == "" {
		return errors.New("blob store endpoint is required")
	}
	if strings.TrimSpace(s.inputs[fieldBlobBucket].Value()) == "" {
		return errors.New("blob bucket is required")
	}
	return nil
}

// Apply writes the service addresses to the config.
func (s *ServicesStep) Apply(cfg *config.Config) error {
	port, err := strconv.Atoi(strings.TrimSpace(s.inputs[fieldQdrantPort].Value()))
	if err != nil {
		return fmt.Errorf("invalid Qdrant port; %w", err)
	}

	cfg.Vector.Host = strings.TrimSpace(s.inputs[fieldQdrantHost].Value())
	cfg.Vector.Port = port
	cfg.Bus.RedisAddr = strings.TrimSpace(s.inputs[fieldRedisAddr].Value())
	cfg.Storage.Blob.Endpoint = strings.TrimSpace(s.inputs[fieldBlobEndpoint].Value())
	cfg.Storage.Blob.Bucket = strings.TrimSpace(s.inputs[fieldBlobBucket].Value())
	return nil
}
