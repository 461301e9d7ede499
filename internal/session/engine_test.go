package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/selection"
	"github.com/abhisek/quantiz/internal/solver"
	"github.com/abhisek/quantiz/internal/store"
)

// mockEventRepo implements store.EventRepo for testing.
type mockEventRepo struct {
	mu       sync.Mutex
	sessions []store.SessionEventData
	blocks   []store.BlockEventData
	answers  []store.AnswerEventData
	err      error
}

func (m *mockEventRepo) AppendSessionEvent(_ context.Context, d store.SessionEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, d)
	return m.err
}

func (m *mockEventRepo) AppendBlockEvent(_ context.Context, d store.BlockEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, d)
	return m.err
}

func (m *mockEventRepo) AppendAnswerEvent(_ context.Context, d store.AnswerEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, d)
	return m.err
}

func (m *mockEventRepo) BlockEvents(_ context.Context, _ string) ([]store.BlockEvent, error) {
	return nil, nil
}

func (m *mockEventRepo) Stats(_ context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}

func (m *mockEventRepo) Reset(_ context.Context) error {
	return nil
}

func tenItemPool(t *testing.T) *itempool.Pool {
	t.Helper()
	var items []itempool.Item
	for ti := 0; ti < 5; ti++ {
		for j := 0; j < 2; j++ {
			items = append(items, itempool.Item{
				ID:         fmt.Sprintf("T%dQ%d", ti, j),
				Topic:      itempool.Topic(fmt.Sprintf("T%d", ti)),
				Cell:       fmt.Sprintf("T%dC%d", ti, j),
				Text:       "question",
				Difficulty: 3,
				AnswerKey:  "A",
			})
		}
	}
	pool, err := itempool.New(items)
	require.NoError(t, err)
	return pool
}

func demoPool(t *testing.T) *itempool.Pool {
	t.Helper()
	pool, err := itempool.New(itempool.GenerateBank(itempool.DefaultBankConfig()))
	require.NoError(t, err)
	return pool
}

func newTestEngine(t *testing.T, pool itempool.Accessor, events store.EventRepo) *Engine {
	t.Helper()
	opt := selection.NewOptimizer(solver.NewBranchAndBound(0), selection.DefaultWeights(), selection.DefaultRecentCellWindow)
	relaxer := selection.NewRelaxer(opt, selection.DefaultRelaxConfig(), nil, nil)
	e, err := NewEngine(pool, relaxer, DefaultSettings(), events, metrics.New(), nil)
	require.NoError(t, err)
	return e
}

func answersFor(b *Block, text string) map[string]string {
	out := make(map[string]string, len(b.Items))
	for _, it := range b.Items {
		out[it.ID] = text
	}
	return out
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, nil, DefaultSettings(), nil, nil, nil)
	assert.Error(t, err)

	e := newTestEngine(t, tenItemPool(t), nil)
	bad := DefaultSettings()
	bad.TotalBlocks = 0
	_, err = NewEngine(e.Pool, e.Relaxer, bad, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestEngine_StartInitialState(t *testing.T) {
	e := newTestEngine(t, tenItemPool(t), nil)
	st := e.Start(context.Background())

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, 1, st.Attempt)
	assert.Equal(t, 0, st.BlockIndex)
	assert.Equal(t, 0, st.Ability)
	assert.Equal(t, PhaseInProgress, st.Phase())
	assert.Len(t, st.TopicCounts, 5)
	for topic, n := range st.TopicCounts {
		assert.Zero(t, n, topic)
	}

	other := e.Start(context.Background())
	assert.NotEqual(t, st.ID, other.ID)
}

func TestEngine_TenItemScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, tenItemPool(t), nil)
	st := e.Start(ctx)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)
	require.Len(t, b.Items, 3)
	assert.Equal(t, 3, b.TargetDifficulty)
	assert.Equal(t, selection.DefaultBaseMargin, b.Margin)

	topics := map[itempool.Topic]bool{}
	sum := 0
	for _, it := range b.Items {
		topics[it.Topic] = true
		sum += it.Difficulty
	}
	assert.Len(t, topics, 3, "items from distinct topics")
	assert.GreaterOrEqual(t, sum, 7)
	assert.LessOrEqual(t, sum, 9)

	used := map[string]bool{}
	submitted := 0
	for !st.Completed() {
		b, err := e.CurrentBlock(ctx, st)
		require.NoError(t, err)
		for _, it := range b.Items {
			assert.False(t, used[it.ID], "item %s reselected", it.ID)
			used[it.ID] = true
		}
		_, err = e.Submit(ctx, st, b.Index, answersFor(b, "z"))
		require.NoError(t, err)
		submitted++
	}

	assert.Equal(t, DefaultTotalBlocks, submitted)
	assert.Equal(t, DefaultTotalBlocks, st.BlockIndex)
	assert.LessOrEqual(t, len(st.History), 10)
	assert.Len(t, st.Attempted, len(st.History))
	assert.False(t, st.CompletedAt.IsZero())

	_, err = e.CurrentBlock(ctx, st)
	assert.ErrorIs(t, err, ErrSessionCompleted)
	_, err = e.Submit(ctx, st, st.BlockIndex, nil)
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestEngine_ExhaustedPool(t *testing.T) {
	ctx := context.Background()
	items := []itempool.Item{
		{ID: "A1", Topic: "A", Cell: "A1", Difficulty: 3, AnswerKey: "A"},
		{ID: "B1", Topic: "B", Cell: "B1", Difficulty: 3, AnswerKey: "A"},
	}
	pool, err := itempool.New(items)
	require.NoError(t, err)

	events := &mockEventRepo{}
	e := newTestEngine(t, pool, events)
	st := e.Start(ctx)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)
	assert.True(t, b.Insufficient)
	assert.Empty(t, b.Items)
	assert.Equal(t, selection.DefaultMaxAttempts, b.Attempts)

	res, err := e.Submit(ctx, st, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Size)
	assert.Equal(t, -1, st.Ability, "empty block counts as zero correct")
	assert.Equal(t, []int{-1}, st.AbilityTrail)
	assert.Equal(t, 1, st.BlockIndex)

	require.Len(t, events.blocks, 1)
	assert.True(t, events.blocks[0].Insufficient)
	assert.Empty(t, events.blocks[0].ItemIDs)

	assert.Equal(t, 1, BuildSummary(st).InsufficientBlocks)
}

func TestEngine_CurrentBlockIsCached(t *testing.T) {
	ctx := context.Background()
	events := &mockEventRepo{}
	e := newTestEngine(t, tenItemPool(t), events)
	st := e.Start(ctx)

	first, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)
	second, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, events.blocks, 1)
}

func TestEngine_SubmitRejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, tenItemPool(t), nil)
	st := e.Start(ctx)

	_, err := e.Submit(ctx, st, 0, nil)
	assert.ErrorIs(t, err, ErrBlockNotGenerated)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)

	partial := answersFor(b, "A")
	delete(partial, b.Items[0].ID)
	_, err = e.Submit(ctx, st, 0, partial)
	assert.ErrorIs(t, err, ErrIncompleteAnswers)

	extra := answersFor(b, "A")
	extra["nope"] = "A"
	_, err = e.Submit(ctx, st, 0, extra)
	assert.ErrorIs(t, err, ErrUnknownItem)

	// Rejected submissions leave the state untouched.
	assert.Equal(t, 0, st.BlockIndex)
	assert.Empty(t, st.History)
	assert.Empty(t, st.Attempted)
	assert.Empty(t, st.RecentCells)

	_, err = e.Submit(ctx, st, 1, answersFor(b, "A"))
	assert.ErrorIs(t, err, ErrBlockNotGenerated)

	res, err := e.Submit(ctx, st, 0, answersFor(b, "A"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Correct)
	assert.Equal(t, 1, res.AbilityAfter)
	assert.InDelta(t, 1.0, res.Accuracy(), 1e-9)

	_, err = e.Submit(ctx, st, 0, answersFor(b, "A"))
	assert.ErrorIs(t, err, ErrBlockAlreadySubmitted)
	assert.Len(t, st.History, 3, "block never counted twice")
}

func TestEngine_SubmitUpdatesState(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, tenItemPool(t), nil)
	st := e.Start(ctx)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)

	answers := answersFor(b, "wrong")
	answers[b.Items[0].ID] = " a "
	res, err := e.Submit(ctx, st, 0, answers)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 0, st.Ability, "1/3 is above the lower threshold")
	assert.Equal(t, []int{0}, st.AbilityTrail)
	require.Len(t, st.History, 3)
	assert.True(t, st.History[0].Correct)
	assert.False(t, st.History[1].Correct)
	for i, it := range b.Items {
		assert.Equal(t, it.Cell, st.RecentCells[i])
		assert.True(t, st.Attempted[it.ID])
		assert.Equal(t, 1, st.TopicCounts[it.Topic])
	}
}

func TestEngine_AbilityRisesOnDemoBank(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, demoPool(t), nil)
	st := e.Start(ctx)

	for !st.Completed() {
		b, err := e.CurrentBlock(ctx, st)
		require.NoError(t, err)
		require.False(t, b.Insufficient, "block %d", b.Index)

		sum := 0
		for _, it := range b.Items {
			sum += it.Difficulty
		}
		lo, hi := selection.DifficultyBand(b.TargetDifficulty, len(b.Items), b.Margin)
		assert.GreaterOrEqual(t, sum, lo, "block %d", b.Index)
		assert.LessOrEqual(t, sum, hi, "block %d", b.Index)

		_, err = e.Submit(ctx, st, b.Index, answersFor(b, "A"))
		require.NoError(t, err)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, st.AbilityTrail)
	assert.Equal(t, 5, st.Blocks[6].TargetDifficulty)
	assert.Len(t, st.Attempted, DefaultTotalBlocks*DefaultQuestionsPerBlock)
}

func TestEngine_RestartScenario(t *testing.T) {
	ctx := context.Background()
	pool := demoPool(t)
	events := &mockEventRepo{}
	e := newTestEngine(t, pool, events)
	st := e.Start(ctx)
	id := st.ID

	for !st.Completed() {
		b, err := e.CurrentBlock(ctx, st)
		require.NoError(t, err)
		_, err = e.Submit(ctx, st, b.Index, answersFor(b, "A"))
		require.NoError(t, err)
	}
	require.Equal(t, PhaseCompleted, st.Phase())

	e.Restart(ctx, st)

	assert.Equal(t, id, st.ID)
	assert.Equal(t, 2, st.Attempt)
	assert.Equal(t, 0, st.BlockIndex)
	assert.Equal(t, 0, st.Ability)
	assert.Empty(t, st.History)
	assert.Empty(t, st.Attempted)
	assert.Empty(t, st.RecentCells)
	assert.Empty(t, st.Blocks)
	assert.Empty(t, st.AbilityTrail)
	assert.True(t, st.CompletedAt.IsZero())
	assert.Len(t, st.TopicCounts, len(itempool.DefaultTopics))
	for _, n := range st.TopicCounts {
		assert.Zero(t, n)
	}
	assert.Equal(t, 800, pool.Len(), "pool unchanged")

	actions := make([]string, len(events.sessions))
	for i, ev := range events.sessions {
		actions[i] = ev.Action
	}
	assert.Equal(t, []string{store.ActionStart, store.ActionComplete, store.ActionRestart}, actions)
	assert.Equal(t, 2, events.sessions[2].Attempt)
	assert.Len(t, events.answers, DefaultTotalBlocks*DefaultQuestionsPerBlock)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)
	assert.Len(t, b.Items, DefaultQuestionsPerBlock)
}

func TestEngine_EventFailuresDoNotFailSession(t *testing.T) {
	ctx := context.Background()
	events := &mockEventRepo{err: errors.New("disk full")}
	e := newTestEngine(t, tenItemPool(t), events)
	st := e.Start(ctx)

	b, err := e.CurrentBlock(ctx, st)
	require.NoError(t, err)
	_, err = e.Submit(ctx, st, b.Index, answersFor(b, "A"))
	require.NoError(t, err)
	assert.Len(t, events.answers, 3)
}

func TestEngine_CanceledContext(t *testing.T) {
	e := newTestEngine(t, tenItemPool(t), nil)
	st := e.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.CurrentBlock(ctx, st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, st.CurrentCachedBlock(), "failed generation is not cached")
}

func TestDeliveredItemIDs(t *testing.T) {
	st := NewSessionState("s", nil, 1)
	st.History = []Response{{ItemID: "a"}, {ItemID: "b"}}
	assert.Equal(t, []string{"a", "b"}, DeliveredItemIDs(st))
}
