package components

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/quantiz/internal/ui/theme"
)

// AnswerInput is one answer field of a block. It starts blurred; the block
// screen moves focus between fields.
type AnswerInput struct {
	ItemID string
	Model  textinput.Model

	graded  bool
	correct bool
}

// NewAnswerInput creates an answer field for itemID.
func NewAnswerInput(itemID string, charLimit int) AnswerInput {
	ti := textinput.New()
	ti.Placeholder = "Your answer"
	ti.Prompt = "> "
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	return AnswerInput{ItemID: itemID, Model: ti}
}

// Focus focuses the field and returns the cursor blink command.
func (a *AnswerInput) Focus() tea.Cmd {
	return a.Model.Focus()
}

// Blur removes focus.
func (a *AnswerInput) Blur() {
	a.Model.Blur()
}

// Focused reports whether the field has focus.
func (a AnswerInput) Focused() bool {
	return a.Model.Focused()
}

// Update handles messages. Graded fields are read-only.
func (a AnswerInput) Update(msg tea.Msg) (AnswerInput, tea.Cmd) {
	if a.graded {
		return a, nil
	}
	var cmd tea.Cmd
	a.Model, cmd = a.Model.Update(msg)
	return a, cmd
}

// View renders the field with a mark once graded.
func (a AnswerInput) View() string {
	view := a.Model.View()
	if a.graded {
		if a.correct {
			view += " " + lipgloss.NewStyle().Foreground(theme.Success).Render("✓")
		} else {
			view += " " + lipgloss.NewStyle().Foreground(theme.Error).Render("✗")
		}
	}
	return view
}

// Value returns the current text.
func (a AnswerInput) Value() string {
	return a.Model.Value()
}

// Grade marks the field with the scoring result and blurs it.
func (a *AnswerInput) Grade(correct bool) {
	a.graded = true
	a.correct = correct
	a.Model.Blur()
}

// Graded reports whether Grade was called.
func (a AnswerInput) Graded() bool {
	return a.graded
}
