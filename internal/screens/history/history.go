package history

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/screen"
	"github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/ui/layout"
	"github.com/abhisek/quantiz/internal/ui/theme"
)

// Entry is one answered item together with the question it answered.
type Entry struct {
	Response session.Response

	// Text and AnswerKey are empty when the block is no longer cached.
	Text      string
	AnswerKey string
}

// Entries pairs every response of st with its item, in answer order.
func Entries(st *session.SessionState) []Entry {
	if st == nil {
		return nil
	}
	entries := make([]Entry, 0, len(st.History))
	for _, r := range st.History {
		e := Entry{Response: r}
		if b := st.Blocks[r.BlockIndex]; b != nil {
			for _, it := range b.Items {
				if it.ID == r.ItemID {
					e.Text = it.Text
					e.AnswerKey = it.AnswerKey
					break
				}
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// HistoryScreen lists the responses of the finished attempt.
type HistoryScreen struct {
	entries  []Entry
	selected int
	expanded map[int]bool
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(entries []Entry) *HistoryScreen {
	return &HistoryScreen{
		entries:  entries,
		expanded: make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return nil
}

func (s *HistoryScreen) Title() string {
	return "Review"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch kmsg.String() {
	case "esc":
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	case "up", "k":
		if s.selected > 0 {
			s.selected--
		}
	case "down", "j":
		if s.selected < len(s.entries)-1 {
			s.selected++
		}
	case "enter":
		s.expanded[s.selected] = !s.expanded[s.selected]
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if len(s.entries) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No answers recorded.")
	}

	var b strings.Builder
	b.WriteString("\n")

	lastBlock := -1
	for i, e := range s.entries {
		r := e.Response
		if r.BlockIndex != lastBlock {
			lastBlock = r.BlockIndex
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
				lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("Block %d", r.BlockIndex+1))))
			b.WriteString("\n")
		}

		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}
		mark := theme.Correct.Render("✓")
		if !r.Correct {
			mark = theme.Incorrect.Render("✗")
		}

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		line := style.Render(fmt.Sprintf("%s%-10s %-18s D%d", prefix, r.ItemID, r.Topic, r.Difficulty))
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, line+"  "+mark))
		b.WriteString("\n")

		if s.expanded[i] {
			b.WriteString(s.renderDetails(e, width))
		}
	}

	return b.String()
}

func (s *HistoryScreen) renderDetails(e Entry, width int) string {
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	wrap := lipgloss.NewStyle().Width(min(width-8, 72))

	var lines []string
	if e.Text != "" {
		lines = append(lines, wrap.Render(e.Text))
	}
	answer := e.Response.UserAnswer
	if answer == "" {
		answer = "(blank)"
	}
	lines = append(lines, dim.Render("Your answer: ")+answer)
	if e.AnswerKey != "" {
		lines = append(lines, dim.Render("Answer key:  ")+e.AnswerKey)
	}
	lines = append(lines, dim.Render("Cell:        ")+e.Response.Cell)

	block := lipgloss.NewStyle().PaddingLeft(4).Render(strings.Join(lines, "\n"))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, block) + "\n"
}
