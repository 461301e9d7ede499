package app

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/screen"
	"github.com/abhisek/quantiz/internal/screens/block"
	"github.com/abhisek/quantiz/internal/screens/welcome"
	"github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/ui/layout"
)

// Options wires the TUI to a session engine.
type Options struct {
	Engine *session.Engine
	Block  block.Options
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// newAppModel starts a session behind the intro screen.
func newAppModel(ctx context.Context, opts Options) AppModel {
	e := opts.Engine
	st := e.Start(ctx)
	info := welcome.Info{
		TotalBlocks:       e.Settings.TotalBlocks,
		QuestionsPerBlock: e.Settings.QuestionsPerBlock,
		Items:             len(e.Pool.All()),
		Topics:            len(e.Pool.Topics()),
	}
	intro := welcome.New(info, func() screen.Screen {
		return block.New(e, st, opts.Block)
	})
	return AppModel{router: router.New(intro)}
}

func (m AppModel) Init() tea.Cmd {
	if active := m.router.Active(); active != nil {
		return active.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the full frame for the current terminal size.
func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	var title, status string
	hints := []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	if active != nil {
		title = active.Title()
		if sp, ok := active.(screen.StatusProvider); ok {
			status = sp.Status()
		}
		if kp, ok := active.(screen.KeyHintProvider); ok {
			if h := kp.KeyHints(); len(h) > 0 {
				hints = h
			}
		}
	}

	header := layout.RenderHeader(title, status, m.width)
	footer := layout.RenderFooter(hints, m.width)

	content := m.router.View(m.width, layout.ContentHeight(header, footer, m.height))
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts a session and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if opts.Engine == nil {
		return errors.New("app: nil engine")
	}
	p := tea.NewProgram(newAppModel(ctx, opts), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
