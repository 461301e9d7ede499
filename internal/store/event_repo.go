package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const sumCorrect = "COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0)"

type eventRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

// insert assigns the next sequence number and a timestamp to one event row.
func (r *eventRepo) insert(ctx context.Context, table string, columns []string, values []any) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(table).
		Columns(append([]string{"sequence", "created_at"}, columns...)...).
		Values(append([]any{seqNum, time.Now().UnixMilli()}, values...)...).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func (r *eventRepo) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	return r.insert(ctx, "session_events",
		[]string{"session_id", "attempt", "action", "blocks_completed", "answered", "correct", "ability"},
		[]any{data.SessionID, data.Attempt, data.Action, data.BlocksCompleted, data.Answered, data.Correct, data.Ability},
	)
}

func (r *eventRepo) AppendBlockEvent(ctx context.Context, data BlockEventData) error {
	ids := data.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode item ids: %w", err)
	}
	return r.insert(ctx, "block_events",
		[]string{"session_id", "attempt", "block_index", "target_difficulty", "margin", "attempts", "item_ids", "insufficient"},
		[]any{data.SessionID, data.Attempt, data.BlockIndex, data.TargetDifficulty, data.Margin, data.Attempts, string(encoded), data.Insufficient},
	)
}

func (r *eventRepo) AppendAnswerEvent(ctx context.Context, data AnswerEventData) error {
	return r.insert(ctx, "answer_events",
		[]string{"session_id", "attempt", "block_index", "item_id", "topic", "cell", "difficulty", "user_answer", "correct"},
		[]any{data.SessionID, data.Attempt, data.BlockIndex, data.ItemID, data.Topic, data.Cell, data.Difficulty, data.UserAnswer, data.Correct},
	)
}

func (r *eventRepo) BlockEvents(ctx context.Context, sessionID string) ([]BlockEvent, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select("sequence", "created_at", "session_id", "attempt", "block_index",
			"target_difficulty", "margin", "attempts", "item_ids", "insufficient").
		From(entsql.Table("block_events")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("sequence").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query block events: %w", err)
	}
	defer rows.Close()

	var events []BlockEvent
	for rows.Next() {
		var (
			ev      BlockEvent
			millis  int64
			encoded string
		)
		if err := rows.Scan(&ev.Sequence, &millis, &ev.SessionID, &ev.Attempt, &ev.BlockIndex,
			&ev.TargetDifficulty, &ev.Margin, &ev.Attempts, &encoded, &ev.Insufficient); err != nil {
			return nil, fmt.Errorf("scan block event: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &ev.ItemIDs); err != nil {
			return nil, fmt.Errorf("decode item ids of event %d: %w", ev.Sequence, err)
		}
		ev.Timestamp = time.UnixMilli(millis)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block events: %w", err)
	}
	return events, nil
}

func (r *eventRepo) count(ctx context.Context, table string, p *entsql.Predicate) (int, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table(table))
	if p != nil {
		sel.Where(p)
	}
	query, args := sel.Query()
	n, err := scanInt(ctx, r.drv, query, args)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (r *eventRepo) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.SessionsStarted, err = r.count(ctx, "session_events", entsql.EQ("action", ActionStart)); err != nil {
		return nil, err
	}
	if st.SessionsCompleted, err = r.count(ctx, "session_events", entsql.EQ("action", ActionComplete)); err != nil {
		return nil, err
	}
	if st.Blocks, err = r.count(ctx, "block_events", nil); err != nil {
		return nil, err
	}
	if st.InsufficientPools, err = r.count(ctx, "block_events", entsql.EQ("insufficient", true)); err != nil {
		return nil, err
	}

	query, args := entsql.Dialect(r.drv.Dialect()).
		Select("topic", entsql.Count("*"), sumCorrect).
		From(entsql.Table("answer_events")).
		GroupBy("topic").
		OrderBy("topic").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query topic stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts TopicStats
		if err := rows.Scan(&ts.Topic, &ts.Answered, &ts.Correct); err != nil {
			return nil, fmt.Errorf("scan topic stats: %w", err)
		}
		st.Answered += ts.Answered
		st.Correct += ts.Correct
		st.Topics = append(st.Topics, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic stats: %w", err)
	}
	return &st, nil
}

func (r *eventRepo) Reset(ctx context.Context) error {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	for _, table := range []string{"session_events", "block_events", "answer_events"} {
		query, args := entsql.Dialect(r.drv.Dialect()).Delete(table).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			tx.Rollback()
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
