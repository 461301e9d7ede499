package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/selection"
	"github.com/abhisek/quantiz/internal/store"
)

var (
	// ErrSessionCompleted is returned for block operations after the last block.
	ErrSessionCompleted = errors.New("session completed")

	// ErrBlockAlreadySubmitted is returned when a block index has already been scored.
	ErrBlockAlreadySubmitted = errors.New("block already submitted")

	// ErrBlockNotGenerated is returned when submitting a block that was never presented.
	ErrBlockNotGenerated = errors.New("block not generated")

	// ErrIncompleteAnswers is returned when a block item has no answer.
	ErrIncompleteAnswers = errors.New("missing answers")

	// ErrUnknownItem is returned when an answer names an item outside the block.
	ErrUnknownItem = errors.New("answer for item outside block")
)

// BlockResult is the scored outcome of a submitted block.
type BlockResult struct {
	Index     int
	Responses []Response
	Correct   int
	Size      int

	AbilityBefore int
	AbilityAfter  int

	// Completed is set when this was the last block.
	Completed bool
}

// Accuracy returns Correct/Size, or 0 for an empty block.
func (r *BlockResult) Accuracy() float64 {
	if r.Size == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Size)
}

// Engine drives SessionState through its blocks.
type Engine struct {
	Pool     itempool.Accessor
	Relaxer  *selection.Relaxer
	Settings Settings

	// Events receives an audit trail. Nil disables recording.
	Events  store.EventRepo
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// NewEngine creates an Engine. events, m and logger may be nil.
func NewEngine(pool itempool.Accessor, relaxer *selection.Relaxer, settings Settings,
	events store.EventRepo, m *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	if pool == nil || relaxer == nil {
		return nil, errors.New("session engine needs a pool and a relaxer")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Pool:     pool,
		Relaxer:  relaxer,
		Settings: settings,
		Events:   events,
		Metrics:  m,
		Logger:   logger,
	}, nil
}

// Start creates a fresh session with a random id.
func (e *Engine) Start(ctx context.Context) *SessionState {
	st := NewSessionState(uuid.NewString(), e.Pool.Topics(), e.Settings.TotalBlocks)
	e.Metrics.SessionStarted()
	e.Logger.Info("session started", zap.String("session_id", st.ID))
	e.recordSession(ctx, st, store.ActionStart)
	return st
}

// Restart resets st in place, keeping its id.
func (e *Engine) Restart(ctx context.Context, st *SessionState) {
	st.Reset()
	e.Metrics.SessionStarted()
	e.Logger.Info("session restarted", zap.String("session_id", st.ID), zap.Int("attempt", st.Attempt))
	e.recordSession(ctx, st, store.ActionRestart)
}

// CurrentBlock returns the block at the current index, generating and
// caching it on first call. A block with Insufficient set has no items;
// submitting it advances the session without changing ability.
func (e *Engine) CurrentBlock(ctx context.Context, st *SessionState) (*Block, error) {
	if st.Completed() {
		return nil, ErrSessionCompleted
	}
	if b := st.CurrentCachedBlock(); b != nil {
		return b, nil
	}

	target := TargetDifficulty(st.Ability, e.Settings)
	res, err := e.Relaxer.Generate(ctx, selection.Request{
		Pool:             e.Pool,
		Attempted:        st.Attempted,
		TargetDifficulty: target,
		BatchSize:        e.Settings.QuestionsPerBlock,
		TopicCounts:      st.TopicCounts,
		RecentCells:      st.RecentCells,
	})
	if err != nil {
		return nil, fmt.Errorf("generate block %d: %w", st.BlockIndex, err)
	}

	b := &Block{
		Index:            st.BlockIndex,
		TargetDifficulty: target,
		Items:            res.Items,
		Margin:           res.Margin,
		Attempts:         len(res.Attempts),
		Insufficient:     res.Insufficient,
	}
	st.Blocks[b.Index] = b

	e.Logger.Debug("block generated",
		zap.String("session_id", st.ID),
		zap.Int("block", b.Index),
		zap.Int("target", target),
		zap.Int("items", len(b.Items)),
		zap.Bool("insufficient", b.Insufficient))
	e.recordBlock(ctx, st, b)
	return b, nil
}

// Submit scores the answers for block index and advances the session.
// answers maps item id to the raw answer text. Every item of the block must
// be answered and no other ids may appear; nothing is mutated on error.
func (e *Engine) Submit(ctx context.Context, st *SessionState, index int, answers map[string]string) (*BlockResult, error) {
	if st.Completed() {
		return nil, ErrSessionCompleted
	}
	b, ok := st.Blocks[index]
	switch {
	case ok && b.Submitted, index < st.BlockIndex:
		return nil, fmt.Errorf("%w: block %d", ErrBlockAlreadySubmitted, index)
	case !ok || index != st.BlockIndex:
		return nil, fmt.Errorf("%w: block %d", ErrBlockNotGenerated, index)
	}

	inBlock := make(map[string]bool, len(b.Items))
	for _, it := range b.Items {
		inBlock[it.ID] = true
		if _, answered := answers[it.ID]; !answered {
			return nil, fmt.Errorf("%w: item %s", ErrIncompleteAnswers, it.ID)
		}
	}
	for id := range answers {
		if !inBlock[id] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
	}

	res := &BlockResult{
		Index:         index,
		Size:          len(b.Items),
		AbilityBefore: st.Ability,
	}
	for _, it := range b.Items {
		r := Response{
			ItemID:     it.ID,
			UserAnswer: answers[it.ID],
			Correct:    CheckAnswer(answers[it.ID], it.AnswerKey),
			Topic:      it.Topic,
			Cell:       it.Cell,
			Difficulty: it.Difficulty,
			BlockIndex: index,
		}
		if r.Correct {
			res.Correct++
		}
		st.History = append(st.History, r)
		st.TopicCounts[it.Topic]++
		st.RecentCells = append(st.RecentCells, it.Cell)
		st.Attempted[it.ID] = true
		res.Responses = append(res.Responses, r)
	}

	st.Ability = UpdateAbility(st.Ability, res.Correct, e.Settings.QuestionsPerBlock, e.Settings)
	st.AbilityTrail = append(st.AbilityTrail, st.Ability)
	b.Submitted = true
	st.BlockIndex++
	res.AbilityAfter = st.Ability
	res.Completed = st.Completed()

	e.Metrics.BlockSubmitted()
	e.Logger.Debug("block submitted",
		zap.String("session_id", st.ID),
		zap.Int("block", index),
		zap.Int("correct", res.Correct),
		zap.Int("size", res.Size),
		zap.Int("ability", st.Ability))
	for _, r := range res.Responses {
		e.recordAnswer(ctx, st, r)
	}

	if res.Completed {
		st.CompletedAt = time.Now()
		e.Metrics.SessionCompleted()
		e.Logger.Info("session completed",
			zap.String("session_id", st.ID),
			zap.Int("attempt", st.Attempt),
			zap.Int("answered", len(st.History)),
			zap.Int("ability", st.Ability))
		e.recordSession(ctx, st, store.ActionComplete)
	}
	return res, nil
}

// DeliveredItemIDs returns the ids of every item answered in st.
func DeliveredItemIDs(st *SessionState) []string {
	ids := make([]string, 0, len(st.History))
	for _, r := range st.History {
		ids = append(ids, r.ItemID)
	}
	return ids
}

func (e *Engine) recordSession(ctx context.Context, st *SessionState, action string) {
	if e.Events == nil {
		return
	}
	correct := 0
	for _, r := range st.History {
		if r.Correct {
			correct++
		}
	}
	err := e.Events.AppendSessionEvent(ctx, store.SessionEventData{
		SessionID:       st.ID,
		Attempt:         st.Attempt,
		Action:          action,
		BlocksCompleted: st.BlockIndex,
		Answered:        len(st.History),
		Correct:         correct,
		Ability:         st.Ability,
	})
	if err != nil {
		e.Logger.Warn("record session event", zap.String("action", action), zap.Error(err))
	}
}

func (e *Engine) recordBlock(ctx context.Context, st *SessionState, b *Block) {
	if e.Events == nil {
		return
	}
	ids := make([]string, len(b.Items))
	for i, it := range b.Items {
		ids[i] = it.ID
	}
	err := e.Events.AppendBlockEvent(ctx, store.BlockEventData{
		SessionID:        st.ID,
		Attempt:          st.Attempt,
		BlockIndex:       b.Index,
		TargetDifficulty: b.TargetDifficulty,
		Margin:           b.Margin,
		Attempts:         b.Attempts,
		ItemIDs:          ids,
		Insufficient:     b.Insufficient,
	})
	if err != nil {
		e.Logger.Warn("record block event", zap.Int("block", b.Index), zap.Error(err))
	}
}

func (e *Engine) recordAnswer(ctx context.Context, st *SessionState, r Response) {
	if e.Events == nil {
		return
	}
	err := e.Events.AppendAnswerEvent(ctx, store.AnswerEventData{
		SessionID:  st.ID,
		Attempt:    st.Attempt,
		BlockIndex: r.BlockIndex,
		ItemID:     r.ItemID,
		Topic:      string(r.Topic),
		Cell:       r.Cell,
		Difficulty: r.Difficulty,
		UserAnswer: r.UserAnswer,
		Correct:    r.Correct,
	})
	if err != nil {
		e.Logger.Warn("record answer event", zap.String("item_id", r.ItemID), zap.Error(err))
	}
}
