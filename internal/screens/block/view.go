package block

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/quantiz/internal/ui/layout"
	"github.com/abhisek/quantiz/internal/ui/theme"
)

const insufficientMessage = "Not enough eligible items for this block, even after widening the difficulty band.\n" +
	"Press Enter to continue; it counts as a block with no correct answers."

// renderBlock renders the items of the current block with their answer
// fields, plus the result line once submitted.
func (s *BlockScreen) renderBlock(width int) string {
	b := s.block
	var out strings.Builder

	infoLeft := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  Block %d of %d", b.Index+1, s.state.TotalBlocks))
	infoRight := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("Target difficulty %d", b.TargetDifficulty))
	if b.Margin > 0 {
		infoRight += lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf(" ±%d", b.Margin))
	}

	infoLine := infoLeft
	if pad := width - lipgloss.Width(infoLeft) - lipgloss.Width(infoRight) - 4; pad > 0 {
		infoLine += strings.Repeat(" ", pad) + infoRight
	}
	out.WriteString(infoLine)
	out.WriteString("\n")
	out.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	out.WriteString("\n\n")

	if b.Insufficient || len(b.Items) == 0 {
		box := theme.Advisory.Width(min(width-8, 72)).Render(insufficientMessage)
		out.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, box))
		out.WriteString("\n")
		if s.result != nil {
			out.WriteString("\n")
			out.WriteString(s.renderResult(width))
		}
		return out.String()
	}

	textWidth := max(min(width-10, 90), 20)
	for i, it := range b.Items {
		numStyle := theme.Blurred
		if i == s.focus && s.result == nil {
			numStyle = theme.Focused
		}
		meta := lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf("%s · difficulty %d", it.Topic, it.Difficulty))

		out.WriteString("  " + numStyle.Render(fmt.Sprintf("%d.", i+1)) + " " + meta + "\n")
		out.WriteString(lipgloss.NewStyle().
			PaddingLeft(5).
			Width(textWidth).
			Foreground(theme.Text).
			Render(it.Text))
		out.WriteString("\n")
		out.WriteString("     " + s.inputs[i].View())
		out.WriteString("\n\n")
	}

	if s.result != nil {
		out.WriteString(s.renderResult(width))
	}
	return out.String()
}

// renderResult renders the score line shown after a submit.
func (s *BlockScreen) renderResult(width int) string {
	r := s.result
	var out strings.Builder

	out.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, layout.Divider(width)))
	out.WriteString("\n")

	score := fmt.Sprintf("%d of %d correct", r.Correct, r.Size)
	style := theme.Correct
	if r.Size > 0 && r.Accuracy() < 0.5 {
		style = theme.Incorrect
	}
	out.WriteString(lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(style.Render(score)))
	out.WriteString("\n")

	out.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Render(fmt.Sprintf("Ability %+d → %+d", r.AbilityBefore, r.AbilityAfter)))
	out.WriteString("\n\n")

	next := "Press any key for the next block..."
	if r.Completed {
		next = "Press any key to see your results..."
	}
	out.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render(next))
	return out.String()
}

// renderLoading renders the block generation state.
func renderLoading(width int) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("\n\n\n  Assembling the next block...")
}

// renderError renders an error message.
func renderError(width int, errMsg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Error).
		Render(fmt.Sprintf("\n\n\n  Error: %s\n\n  Press any key to retry.", errMsg))
}
