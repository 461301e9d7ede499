package store

import (
	"context"
	"time"

	"github.com/abhisek/quantiz/internal/itempool"
)

// Session event actions.
const (
	ActionStart    = "start"
	ActionRestart  = "restart"
	ActionComplete = "complete"
)

// SessionEventData captures a session lifecycle transition.
type SessionEventData struct {
	SessionID       string
	Attempt         int
	Action          string
	BlocksCompleted int
	Answered        int
	Correct         int
	Ability         int
}

// BlockEventData captures one generated block.
type BlockEventData struct {
	SessionID        string
	Attempt          int
	BlockIndex       int
	TargetDifficulty int
	Margin           int
	Attempts         int
	ItemIDs          []string
	Insufficient     bool
}

// AnswerEventData captures one scored response.
type AnswerEventData struct {
	SessionID  string
	Attempt    int
	BlockIndex int
	ItemID     string
	Topic      string
	Cell       string
	Difficulty int
	UserAnswer string
	Correct    bool
}

// BlockEvent is a stored BlockEventData.
type BlockEvent struct {
	Sequence  int64
	Timestamp time.Time
	BlockEventData
}

// TopicStats aggregates answers for one topic.
type TopicStats struct {
	Topic    string
	Answered int
	Correct  int
}

// Accuracy returns Correct/Answered, or 0 with no answers.
func (t TopicStats) Accuracy() float64 {
	if t.Answered == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Answered)
}

// Stats aggregates the whole event log.
type Stats struct {
	SessionsStarted   int
	SessionsCompleted int
	Blocks            int
	InsufficientPools int
	Answered          int
	Correct           int
	Topics            []TopicStats
}

// Accuracy returns Correct/Answered, or 0 with no answers.
func (s Stats) Accuracy() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answered)
}

// EventRepo provides append access to test events plus aggregate reads.
type EventRepo interface {
	// AppendSessionEvent records a start, restart or completion.
	AppendSessionEvent(ctx context.Context, data SessionEventData) error

	// AppendBlockEvent records a generated block.
	AppendBlockEvent(ctx context.Context, data BlockEventData) error

	// AppendAnswerEvent records a scored response.
	AppendAnswerEvent(ctx context.Context, data AnswerEventData) error

	// BlockEvents returns the block events of a session in sequence order.
	BlockEvents(ctx context.Context, sessionID string) ([]BlockEvent, error)

	// Stats aggregates every recorded event.
	Stats(ctx context.Context) (*Stats, error)

	// Reset deletes every event. Items are kept.
	Reset(ctx context.Context) error
}

// ItemRepo persists the item bank.
type ItemRepo interface {
	// SaveItems inserts items, replacing any with the same id.
	SaveItems(ctx context.Context, items []itempool.Item) error

	// LoadItems returns every item ordered by id.
	LoadItems(ctx context.Context) ([]itempool.Item, error)

	// LoadTopic returns the items of one topic ordered by id.
	LoadTopic(ctx context.Context, topic itempool.Topic) ([]itempool.Item, error)

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)

	// AddExposure increments the exposure count of each id by one.
	AddExposure(ctx context.Context, ids []string) error
}
