package initialize

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
)

// mockStep is a simple step for testing.
type mockStep struct {
	title     string
	viewText  string
	validated bool
	applied   bool
}

func (m *mockStep) Init(cfg *config.Config) tea.Cmd { return nil }

func (m *mockStep) Update(msg tea.Msg) (tea.Cmd, StepResult) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEnter {
			return nil, StepNext
		}
		if keyMsg.Type == tea.KeyEsc {
			return nil, StepPrev
		}
	}
	return nil, StepContinue
}

func (m *mockStep) View() string                 { return m.viewText }
func (m *mockStep) Title() string                { return m.title }
func (m *mockStep) Validate() error              { m.validated = true; return nil }
func (m *mockStep) Apply(*config.Config) error   { m.applied = true; return nil }

func TestWizardModel_Init(t *testing.T) {
	cfg := config.Starter()
	stepList := []Step{
		&mockStep{title: "Step 1", viewText: "First step"},
		&mockStep{title: "Step 2", viewText: "Second step"},
	}

	wizard := NewWizard(cfg, stepList)

	if wizard.currentStep != 0 {
		t.Errorf("expected currentStep 0, got %d", wizard.currentStep)
	}
	if len(wizard.steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(wizard.steps))
	}
}

func TestWizardModel_View(t *testing.T) {
	cfg := config.Starter()
	stepList := []Step{
		&mockStep{title: "Step 1", viewText: "First step content"},
	}

	wizard := NewWizard(cfg, stepList)
	view := wizard.View()

	if !strings.Contains(view, "ArchLens Setup Wizard") {
		t.Error("expected view to contain the wizard header")
	}
	if !strings.Contains(view, "First step content") {
		t.Error("expected view to contain the current step content")
	}
}

func TestWizardModel_Advance(t *testing.T) {
	cfg := config.Starter()
	first := &mockStep{title: "Step 1"}
	second := &mockStep{title: "Step 2"}

	wizard := NewWizard(cfg, []Step{first, second})

	model, _ := wizard.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m := model.(WizardModel)

	if !first.validated || !first.applied {
		t.Error("expected first step validated and applied on advance")
	}
	if m.currentStep != 1 {
		t.Errorf("expected currentStep 1, got %d", m.currentStep)
	}
}

func TestWizardModel_Back(t *testing.T) {
	cfg := config.Starter()
	wizard := NewWizard(cfg, []Step{
		&mockStep{title: "Step 1"},
		&mockStep{title: "Step 2"},
	})

	model, _ := wizard.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = model.(WizardModel).Update(tea.KeyMsg{Type: tea.KeyEsc})
	m := model.(WizardModel)

	if m.currentStep != 0 {
		t.Errorf("expected currentStep back at 0, got %d", m.currentStep)
	}
}

func TestWizardModel_CompleteOnLastStep(t *testing.T) {
	cfg := config.Starter()
	wizard := NewWizard(cfg, []Step{&mockStep{title: "Only"}})

	model, _ := wizard.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := model.(WizardModel).Result()

	if !result.Confirmed {
		t.Error("expected wizard confirmed after last step")
	}
	if result.Cancelled {
		t.Error("expected wizard not cancelled")
	}
}

func TestWizardModel_Cancel(t *testing.T) {
	cfg := config.Starter()
	wizard := NewWizard(cfg, []Step{&mockStep{title: "Only"}})

	model, _ := wizard.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	result := model.(WizardModel).Result()

	if !result.Cancelled {
		t.Error("expected wizard cancelled after Ctrl+C")
	}
	if result.Confirmed {
		t.Error("expected wizard not confirmed")
	}
}

func TestDefaultSteps(t *testing.T) {
	stepList := DefaultSteps()

	if len(stepList) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(stepList))
	}
	if stepList[len(stepList)-1].Title() != "Confirm" {
		t.Errorf("expected last step 'Confirm', got %q", stepList[len(stepList)-1].Title())
	}
}
