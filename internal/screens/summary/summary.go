package summary

import (
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/screen"
	"github.com/abhisek/quantiz/internal/screens/history"
	"github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/ui/components"
	"github.com/abhisek/quantiz/internal/ui/layout"
	"github.com/abhisek/quantiz/internal/ui/theme"
)

// SummaryScreen displays the end-of-test report.
type SummaryScreen struct {
	summary *session.Summary
	entries []history.Entry
	restart tea.Cmd
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a SummaryScreen. entries back the review screen. restart runs
// when the user asks for a new attempt; it may be nil.
func New(summary *session.Summary, entries []history.Entry, restart tea.Cmd) *SummaryScreen {
	return &SummaryScreen{summary: summary, entries: entries, restart: restart}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Results"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	var hints []layout.KeyHint
	if s.restart != nil {
		hints = append(hints, layout.KeyHint{Key: "R", Description: "Restart"})
	}
	if len(s.entries) > 0 {
		hints = append(hints, layout.KeyHint{Key: "H", Description: "Review"})
	}
	return append(hints, layout.KeyHint{Key: "Q", Description: "Quit"})
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "r", "R":
			return s, s.restart
		case "h", "H":
			if len(s.entries) == 0 {
				return s, nil
			}
			review := history.New(s.entries)
			return s, func() tea.Msg { return router.PushScreenMsg{Screen: review} }
		case "q", "Q":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}

	var b strings.Builder
	center := func(str string) {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, str))
		b.WriteString("\n")
	}

	center(theme.Title.Render("Test complete!"))
	b.WriteString("\n")

	mins := int(sum.Duration.Minutes())
	secs := int(sum.Duration.Seconds()) % 60
	center(lipgloss.NewStyle().Foreground(theme.TextDim).
		Render(fmt.Sprintf("Attempt %d   Duration %d:%02d", sum.Attempt, mins, secs)))
	b.WriteString("\n")

	center(lipgloss.NewStyle().Foreground(theme.Text).Render(fmt.Sprintf(
		"Questions: %d      Correct: %d      Accuracy: %s      Avg difficulty: %.1f",
		sum.Answered, sum.Correct, components.PercentLabel(sum.Accuracy), sum.AverageDifficulty)))
	center(lipgloss.NewStyle().Foreground(theme.Accent).Render("Ability " + abilityTrail(sum.AbilityTrail)))
	if sum.InsufficientBlocks > 0 {
		center(lipgloss.NewStyle().Foreground(theme.Warning).Render(
			fmt.Sprintf("%d block(s) skipped: not enough eligible items", sum.InsufficientBlocks)))
	}
	b.WriteString("\n")

	if len(sum.Topics) > 0 {
		center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Topics"))
		center(layout.Divider(width))
		b.WriteString(s.renderTopics(width))
		b.WriteString("\n")

		center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Topic × difficulty"))
		center(layout.Divider(width))
		center(renderMatrix(sum))
	}

	return b.String()
}

// renderTopics draws one bar per topic, sized by its share of answered
// items.
func (s *SummaryScreen) renderTopics(width int) string {
	sum := s.summary
	labelWidth := 0
	for _, t := range sum.Topics {
		labelWidth = max(labelWidth, lipgloss.Width(string(t.Topic)))
	}
	barWidth := min(width-8, 72)

	var b strings.Builder
	for _, t := range sum.Topics {
		share := float64(t.Answered) / float64(max(sum.Answered, 1))
		acc := float64(t.Correct) / float64(max(t.Answered, 1))
		bar := components.NewProgressBar(string(t.Topic), labelWidth, share,
			fmt.Sprintf("%d answered, %s correct", t.Answered, components.PercentLabel(acc)), barWidth)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMatrix draws the topic × difficulty counts.
func renderMatrix(sum *session.Summary) string {
	headers := []string{"Topic"}
	for _, d := range sum.Difficulties {
		headers = append(headers, "D"+strconv.Itoa(d))
	}

	rows := make([][]string, 0, len(sum.Matrix))
	for _, r := range sum.Matrix {
		row := []string{string(r.Topic)}
		for _, c := range r.Counts {
			row = append(row, strconv.Itoa(c))
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.TableHeader
			case col == 0:
				return theme.TableCell.Align(lipgloss.Left)
			case rows[row][col] == "0":
				return theme.TableEmpty
			}
			return theme.TableCell
		}).
		String()
}

// abilityTrail renders the ability after each block, starting from 0.
func abilityTrail(trail []int) string {
	parts := make([]string, 0, len(trail)+1)
	parts = append(parts, "0")
	for _, a := range trail {
		parts = append(parts, fmt.Sprintf("%+d", a))
	}
	return strings.Join(parts, " → ")
}
