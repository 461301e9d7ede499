package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/quantiz/internal/itempool"
)

// Phase is the lifecycle state of a test attempt.
type Phase int

const (
	PhaseInProgress Phase = iota // Blocks remain to be answered
	PhaseCompleted               // Every block has been submitted
)

func (p Phase) String() string {
	if p == PhaseCompleted {
		return "completed"
	}
	return "in_progress"
}

// Reference rubric.
const (
	DefaultTotalBlocks       = 7
	DefaultQuestionsPerBlock = 3
	DefaultBaseTarget        = 3
	DefaultRaiseThreshold    = 0.8
	DefaultLowerThreshold    = 0.3
)

// Settings is the per-test configuration of the state machine.
type Settings struct {
	TotalBlocks       int
	QuestionsPerBlock int

	// BaseTarget is the target difficulty at ability 0.
	BaseTarget int

	// MinDifficulty and MaxDifficulty clamp the target difficulty.
	MinDifficulty int
	MaxDifficulty int

	// Block accuracy at or above RaiseThreshold raises ability by one; at
	// or below LowerThreshold lowers it by one.
	RaiseThreshold float64
	LowerThreshold float64
}

// DefaultSettings returns the reference rubric: 7 blocks of 3 items,
// baseline target 3 clamped to [1,5], thresholds 0.8 and 0.3.
func DefaultSettings() Settings {
	return Settings{
		TotalBlocks:       DefaultTotalBlocks,
		QuestionsPerBlock: DefaultQuestionsPerBlock,
		BaseTarget:        DefaultBaseTarget,
		MinDifficulty:     itempool.MinDifficulty,
		MaxDifficulty:     itempool.MaxDifficulty,
		RaiseThreshold:    DefaultRaiseThreshold,
		LowerThreshold:    DefaultLowerThreshold,
	}
}

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid session settings")

// Validate rejects settings the state machine cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.TotalBlocks <= 0:
		return fmt.Errorf("%w: total blocks %d", ErrInvalidSettings, s.TotalBlocks)
	case s.QuestionsPerBlock <= 0:
		return fmt.Errorf("%w: questions per block %d", ErrInvalidSettings, s.QuestionsPerBlock)
	case s.MinDifficulty > s.MaxDifficulty:
		return fmt.Errorf("%w: difficulty clamp [%d,%d]", ErrInvalidSettings, s.MinDifficulty, s.MaxDifficulty)
	case s.LowerThreshold >= s.RaiseThreshold:
		return fmt.Errorf("%w: lower threshold %.2f not below raise threshold %.2f",
			ErrInvalidSettings, s.LowerThreshold, s.RaiseThreshold)
	}
	return nil
}

// Response is one answered item.
type Response struct {
	ItemID     string
	UserAnswer string
	Correct    bool
	Topic      itempool.Topic
	Cell       string
	Difficulty int
	BlockIndex int
}

// Block is a generated batch cached at its index.
type Block struct {
	Index            int
	TargetDifficulty int
	Items            []itempool.Item

	// Margin is the difficulty slack the batch was found at.
	Margin   int
	Attempts int

	// Insufficient is set when the pool could not supply a full batch.
	Insufficient bool
	Submitted    bool
}

// SessionState tracks one test attempt. It is owned by a single caller and
// is not safe for concurrent use; see Registry for shared access.
type SessionState struct {
	// ID identifies the attempt across restarts.
	ID string

	// Attempt counts restarts, starting at 1.
	Attempt int

	TotalBlocks int

	// BlockIndex is the index of the block being worked on.
	BlockIndex int

	// Ability is the unbounded proficiency estimate.
	Ability int

	// AbilityTrail is the ability after each submitted block.
	AbilityTrail []int

	// TopicCounts counts answered items per topic.
	TopicCounts map[itempool.Topic]int

	// RecentCells is the full cell history; selection only looks at its tail.
	RecentCells []string

	// Attempted holds the ids of every answered item.
	Attempted map[string]bool

	// History is every response in answer order.
	History []Response

	// Blocks caches generated batches by block index.
	Blocks map[int]*Block

	StartTime   time.Time
	CompletedAt time.Time

	topics []itempool.Topic
}

// NewSessionState creates an in-progress state at block 0 with every topic
// count initialized to zero.
func NewSessionState(id string, topics []itempool.Topic, totalBlocks int) *SessionState {
	st := &SessionState{
		ID:          id,
		TotalBlocks: totalBlocks,
		topics:      append([]itempool.Topic(nil), topics...),
	}
	st.reset()
	st.Attempt = 1
	return st
}

func (s *SessionState) reset() {
	s.BlockIndex = 0
	s.Ability = 0
	s.AbilityTrail = nil
	s.TopicCounts = make(map[itempool.Topic]int, len(s.topics))
	for _, t := range s.topics {
		s.TopicCounts[t] = 0
	}
	s.RecentCells = nil
	s.Attempted = make(map[string]bool)
	s.History = nil
	s.Blocks = make(map[int]*Block)
	s.StartTime = time.Now()
	s.CompletedAt = time.Time{}
}

// Reset wipes the state back to its initial values and bumps Attempt.
func (s *SessionState) Reset() {
	s.reset()
	s.Attempt++
}

// Phase reports whether blocks remain.
func (s *SessionState) Phase() Phase {
	if s.BlockIndex >= s.TotalBlocks {
		return PhaseCompleted
	}
	return PhaseInProgress
}

// Completed reports whether every block has been submitted.
func (s *SessionState) Completed() bool {
	return s.Phase() == PhaseCompleted
}

// Responses returns a copy of the response history.
func (s *SessionState) Responses() []Response {
	out := make([]Response, len(s.History))
	copy(out, s.History)
	return out
}

// CurrentCachedBlock returns the block generated for the current index, or
// nil if none has been generated yet.
func (s *SessionState) CurrentCachedBlock() *Block {
	return s.Blocks[s.BlockIndex]
}
