package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/archlens/archlens/internal/tui/styles"
)

// Progress tracks position within an ordered list of wizard steps and
// renders a dot trail plus a "Step N of M" counter.
type Progress struct {
	steps   []string
	current int
}

// NewProgress creates a progress indicator over the given step names.
func NewProgress(steps []string) Progress {
	return Progress{steps: steps}
}

// SetCurrent moves to the given step, clamping to the valid range.
func (p *Progress) SetCurrent(step int) {
	switch {
	case step < 0:
		p.current = 0
	case step >= len(p.steps):
		p.current = len(p.steps) - 1
	default:
		p.current = step
	}
}

// Current returns the current step index.
func (p Progress) Current() int {
	return p.current
}

// Total returns the total number of steps.
func (p Progress) Total() int {
	return len(p.steps)
}

// CurrentName returns the name of the current step, or "" when the
// indicator holds no steps.
func (p Progress) CurrentName() string {
	if p.current < 0 || p.current >= len(p.steps) {
		return ""
	}
	return p.steps[p.current]
}

// View renders one line: completed dots, pending dots, the counter, and
// the current step name.
func (p Progress) View() string {
	done := lipgloss.NewStyle().Foreground(styles.Primary)
	todo := lipgloss.NewStyle().Foreground(styles.Muted)

	dots := make([]string, len(p.steps))
	for i := range p.steps {
		if i <= p.current {
			dots[i] = done.Render(styles.ProgressFilled)
		} else {
			dots[i] = todo.Render(styles.ProgressEmpty)
		}
	}

	counter := styles.MutedText.Render(fmt.Sprintf("Step %d of %d:", p.current+1, len(p.steps)))
	return strings.Join(dots, " ") + "  " + counter + " " + styles.Title.Render(p.CurrentName()) + "\n"
}
