package session

import (
	"sort"
	"time"

	"github.com/abhisek/quantiz/internal/itempool"
)

// TopicStat is the per-topic slice of a summary.
type TopicStat struct {
	Topic    itempool.Topic
	Answered int
	Correct  int
}

// MatrixRow counts answered items of one topic per difficulty column.
type MatrixRow struct {
	Topic  itempool.Topic
	Counts []int // parallel to Summary.Difficulties
}

// Summary is the end-of-test report.
type Summary struct {
	SessionID string
	Attempt   int

	Answered          int
	Correct           int
	Accuracy          float64
	AverageDifficulty float64

	// Topics is ordered by answered count descending, then topic name.
	Topics []TopicStat

	// Difficulties are the columns of Matrix, ascending. Only difficulties
	// that were answered at least once appear.
	Difficulties []int
	Matrix       []MatrixRow

	FinalAbility       int
	AbilityTrail       []int
	InsufficientBlocks int
	Duration           time.Duration
}

// BuildSummary derives the report from st. It can be called at any time;
// callers normally wait for Completed.
func BuildSummary(st *SessionState) *Summary {
	s := &Summary{
		SessionID:    st.ID,
		Attempt:      st.Attempt,
		Answered:     len(st.History),
		FinalAbility: st.Ability,
		AbilityTrail: append([]int(nil), st.AbilityTrail...),
	}

	byTopic := make(map[itempool.Topic]*TopicStat)
	cells := make(map[itempool.Topic]map[int]int)
	seenDifficulty := make(map[int]bool)
	totalDifficulty := 0
	for _, r := range st.History {
		if r.Correct {
			s.Correct++
		}
		totalDifficulty += r.Difficulty

		ts := byTopic[r.Topic]
		if ts == nil {
			ts = &TopicStat{Topic: r.Topic}
			byTopic[r.Topic] = ts
			cells[r.Topic] = make(map[int]int)
		}
		ts.Answered++
		if r.Correct {
			ts.Correct++
		}
		cells[r.Topic][r.Difficulty]++
		seenDifficulty[r.Difficulty] = true
	}
	if s.Answered > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Answered)
		s.AverageDifficulty = float64(totalDifficulty) / float64(s.Answered)
	}

	for _, ts := range byTopic {
		s.Topics = append(s.Topics, *ts)
	}
	sort.Slice(s.Topics, func(i, j int) bool {
		if s.Topics[i].Answered != s.Topics[j].Answered {
			return s.Topics[i].Answered > s.Topics[j].Answered
		}
		return s.Topics[i].Topic < s.Topics[j].Topic
	})

	for d := range seenDifficulty {
		s.Difficulties = append(s.Difficulties, d)
	}
	sort.Ints(s.Difficulties)

	topics := make([]itempool.Topic, 0, len(cells))
	for t := range cells {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	for _, t := range topics {
		row := MatrixRow{Topic: t, Counts: make([]int, len(s.Difficulties))}
		for i, d := range s.Difficulties {
			row.Counts[i] = cells[t][d]
		}
		s.Matrix = append(s.Matrix, row)
	}

	for _, b := range st.Blocks {
		if b.Insufficient {
			s.InsufficientBlocks++
		}
	}

	end := st.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	s.Duration = end.Sub(st.StartTime)
	return s
}
