package welcome

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/screen"
	"github.com/abhisek/quantiz/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	phase1End    = 300 * time.Millisecond
	phase2End    = 800 * time.Millisecond
	totalDur     = 1200 * time.Millisecond
)

const cardsArt = `┌───┐ ┌───┐ ┌───┐
│ ? │ │ ? │ │ ? │
└───┘ └───┘ └───┘`

var sparkleFrames = []string{"★", "✦"}

type tickMsg time.Time

// Info describes the test that is about to start.
type Info struct {
	TotalBlocks       int
	QuestionsPerBlock int
	Items             int
	Topics            int
}

// WelcomeScreen introduces the test before handing over to the first block.
type WelcomeScreen struct {
	info         Info
	next         func() screen.Screen
	elapsed      time.Duration
	tickCount    int
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen that is replaced by the screen next produces.
func New(info Info, next func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{
		info: info,
		next: next,
	}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.transitioned {
			return w, nil
		}
		if w.elapsed < totalDur {
			w.elapsed += tickInterval
		}
		w.tickCount++
		return w, tick()

	case tea.KeyPressMsg:
		// Any key skips the animation.
		return w, w.transition()
	}

	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	next := w.next()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	var sections []string

	rendered := lipgloss.NewStyle().Foreground(theme.Primary).Render(cardsArt)
	if w.elapsed >= phase1End {
		sparkle := sparkleFrames[w.tickCount%len(sparkleFrames)]
		s1 := lipgloss.NewStyle().Foreground(theme.Accent).Render(sparkle)
		s2 := lipgloss.NewStyle().Foreground(theme.Secondary).Render(sparkle)

		lines := strings.Split(rendered, "\n")
		if len(lines) > 1 {
			lines[1] = s1 + "  " + lines[1] + "  " + s2
		}
		rendered = strings.Join(lines, "\n")
	}
	sections = append(sections, rendered)

	if w.elapsed >= phase1End {
		sections = append(sections, "", RenderBanner(width), "")
		tagline := lipgloss.NewStyle().
			Foreground(theme.Text).
			Bold(true).
			Render("Adaptive practice test")
		sections = append(sections, tagline)
	}

	if w.elapsed >= phase2End {
		dim := lipgloss.NewStyle().Foreground(theme.TextDim)
		sections = append(sections, "",
			dim.Render(fmt.Sprintf("%d blocks of %d questions", w.info.TotalBlocks, w.info.QuestionsPerBlock)),
			dim.Render("Difficulty adapts to your answers after each block"),
			dim.Render(fmt.Sprintf("%d items across %d topics", w.info.Items, w.info.Topics)),
			"",
			dim.Italic(true).Render("press any key to begin"),
		)
	}

	content := strings.Join(sections, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
