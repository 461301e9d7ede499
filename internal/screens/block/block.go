// Package block is the test-taking screen: one block of items at a time,
// one answer field per item.
package block

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/screen"
	"github.com/abhisek/quantiz/internal/screens/history"
	"github.com/abhisek/quantiz/internal/screens/summary"
	sess "github.com/abhisek/quantiz/internal/session"
	"github.com/abhisek/quantiz/internal/ui/components"
	"github.com/abhisek/quantiz/internal/ui/layout"
)

const answerCharLimit = 64

// Options configures a BlockScreen.
type Options struct {
	// SolveTimeout bounds one block generation. Zero disables it.
	SolveTimeout time.Duration

	// OnComplete runs once when the last block is submitted, before the
	// summary is shown.
	OnComplete func(*sess.SessionState)
}

// BlockScreen implements screen.Screen for the block in progress.
type BlockScreen struct {
	engine *sess.Engine
	state  *sess.SessionState
	opts   Options

	block   *sess.Block
	inputs  []components.AnswerInput
	focus   int
	result  *sess.BlockResult
	loading bool
	errMsg  string
}

var _ screen.Screen = (*BlockScreen)(nil)
var _ screen.KeyHintProvider = (*BlockScreen)(nil)
var _ screen.StatusProvider = (*BlockScreen)(nil)

// New creates a BlockScreen over an existing session.
func New(engine *sess.Engine, state *sess.SessionState, opts Options) *BlockScreen {
	return &BlockScreen{
		engine: engine,
		state:  state,
		opts:   opts,
	}
}

func (s *BlockScreen) Init() tea.Cmd {
	s.loading = true
	return s.loadBlock()
}

func (s *BlockScreen) Title() string {
	return "Test"
}

func (s *BlockScreen) Status() string {
	index := min(s.state.BlockIndex+1, s.state.TotalBlocks)
	return fmt.Sprintf("Block %d/%d   Ability %+d", index, s.state.TotalBlocks, s.state.Ability)
}

func (s *BlockScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.loading:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	case s.errMsg != "":
		return []layout.KeyHint{
			{Key: "any key", Description: "Retry"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	case s.result != nil:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}}
	case s.block != nil && len(s.inputs) == 0:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Skip block"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "Tab", Description: "Next"},
		{Key: "Shift+Tab", Description: "Previous"},
		{Key: "Enter", Description: "Next / Submit"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *BlockScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return renderError(width, s.errMsg)
	case s.loading || s.block == nil:
		return renderLoading(width)
	}
	return s.renderBlock(width)
}

func (s *BlockScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case blockReadyMsg:
		return s.handleBlockReady(msg)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if cmd := s.updateFocused(msg); cmd != nil {
		return s, cmd
	}
	return s, nil
}

// loadBlock generates the current block off the UI goroutine. The session
// is not touched by Update while loading is set.
func (s *BlockScreen) loadBlock() tea.Cmd {
	engine, st, timeout := s.engine, s.state, s.opts.SolveTimeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		b, err := engine.CurrentBlock(ctx, st)
		return blockReadyMsg{Block: b, Err: err}
	}
}

func (s *BlockScreen) handleBlockReady(msg blockReadyMsg) (screen.Screen, tea.Cmd) {
	s.loading = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}

	s.block = msg.Block
	s.result = nil
	s.inputs = make([]components.AnswerInput, len(msg.Block.Items))
	for i, it := range msg.Block.Items {
		s.inputs[i] = components.NewAnswerInput(it.ID, answerCharLimit)
	}
	s.focus = 0
	if len(s.inputs) == 0 {
		return s, nil
	}
	return s, s.inputs[0].Focus()
}

func (s *BlockScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.loading {
		return s, nil
	}

	// Error state: any key retries generation.
	if s.errMsg != "" {
		s.errMsg = ""
		s.loading = true
		return s, s.loadBlock()
	}

	if s.result != nil {
		return s, s.advance()
	}

	if s.block == nil {
		return s, nil
	}

	switch msg.String() {
	case "tab", "down":
		return s, s.moveFocus(1)
	case "shift+tab", "up":
		return s, s.moveFocus(-1)
	case "enter":
		if len(s.inputs) == 0 || s.focus == len(s.inputs)-1 {
			return s.submit()
		}
		return s, s.moveFocus(1)
	}

	return s, s.updateFocused(msg)
}

// updateFocused forwards msg to the focused answer field.
func (s *BlockScreen) updateFocused(msg tea.Msg) tea.Cmd {
	if s.loading || s.result != nil || s.focus >= len(s.inputs) {
		return nil
	}
	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return cmd
}

// moveFocus moves focus by delta, wrapping around.
func (s *BlockScreen) moveFocus(delta int) tea.Cmd {
	n := len(s.inputs)
	if n == 0 {
		return nil
	}
	s.inputs[s.focus].Blur()
	s.focus = ((s.focus+delta)%n + n) % n
	return s.inputs[s.focus].Focus()
}

// submit scores the block and shows the result until the next key press.
func (s *BlockScreen) submit() (screen.Screen, tea.Cmd) {
	answers := make(map[string]string, len(s.inputs))
	for _, in := range s.inputs {
		answers[in.ItemID] = in.Value()
	}

	res, err := s.engine.Submit(context.Background(), s.state, s.block.Index, answers)
	if err != nil {
		s.errMsg = err.Error()
		return s, nil
	}

	correct := make(map[string]bool, len(res.Responses))
	for _, r := range res.Responses {
		correct[r.ItemID] = r.Correct
	}
	for i := range s.inputs {
		s.inputs[i].Grade(correct[s.inputs[i].ItemID])
	}
	s.result = res
	return s, nil
}

// advance leaves the result view: on to the next block, or to the summary
// once the session is complete.
func (s *BlockScreen) advance() tea.Cmd {
	if s.result.Completed {
		return s.complete()
	}
	s.result = nil
	s.block = nil
	s.inputs = nil
	s.loading = true
	return s.loadBlock()
}

func (s *BlockScreen) complete() tea.Cmd {
	st, onComplete := s.state, s.opts.OnComplete
	restart := s.restart
	return func() tea.Msg {
		if onComplete != nil {
			onComplete(st)
		}
		return router.ReplaceScreenMsg{Screen: summary.New(sess.BuildSummary(st), history.Entries(st), restart)}
	}
}

// restart resets the session in place and returns a fresh block screen.
func (s *BlockScreen) restart() tea.Msg {
	s.engine.Restart(context.Background(), s.state)
	return router.ReplaceScreenMsg{Screen: New(s.engine, s.state, s.opts)}
}
