package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/quantiz/internal/itempool"
)

// saveBatch bounds the rows per INSERT to stay under SQLite's variable limit.
const saveBatch = 200

var itemColumns = []string{
	"id", "topic", "cell", "text", "difficulty", "answer_key", "expected_minutes", "exposure_count",
}

type itemRepo struct {
	drv *entsql.Driver
}

func (r *itemRepo) SaveItems(ctx context.Context, items []itempool.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin save items: %w", err)
	}
	for start := 0; start < len(items); start += saveBatch {
		end := min(start+saveBatch, len(items))
		ins := entsql.Dialect(r.drv.Dialect()).Insert("items").Columns(itemColumns...)
		for _, it := range items[start:end] {
			ins.Values(it.ID, string(it.Topic), it.Cell, it.Text, it.Difficulty,
				it.AnswerKey, it.ExpectedMinutes, it.ExposureCount)
		}
		ins.OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())

		query, args := ins.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			tx.Rollback()
			return fmt.Errorf("save items: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save items: %w", err)
	}
	return nil
}

func (r *itemRepo) LoadItems(ctx context.Context) ([]itempool.Item, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(itemColumns...).
		From(entsql.Table("items")).
		OrderBy("id")
	return r.query(ctx, sel)
}

func (r *itemRepo) LoadTopic(ctx context.Context, topic itempool.Topic) ([]itempool.Item, error) {
	sel := entsql.Dialect(r.drv.Dialect()).
		Select(itemColumns...).
		From(entsql.Table("items")).
		Where(entsql.EQ("topic", string(topic))).
		OrderBy("id")
	return r.query(ctx, sel)
}

func (r *itemRepo) query(ctx context.Context, sel *entsql.Selector) ([]itempool.Item, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []itempool.Item
	for rows.Next() {
		var (
			it    itempool.Item
			topic string
		)
		if err := rows.Scan(&it.ID, &topic, &it.Cell, &it.Text, &it.Difficulty,
			&it.AnswerKey, &it.ExpectedMinutes, &it.ExposureCount); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Topic = itempool.Topic(topic)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *itemRepo) Count(ctx context.Context) (int, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table("items")).
		Query()
	return scanInt(ctx, r.drv, query, args)
}

func (r *itemRepo) AddExposure(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	values := make([]driver.Value, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Update("items").
		Add("exposure_count", 1).
		Where(entsql.InValues("id", values...)).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("add exposure: %w", err)
	}
	return nil
}

// scanInt runs a single-value query.
func scanInt(ctx context.Context, drv *entsql.Driver, query string, args []any) (int, error) {
	var rows entsql.Rows
	if err := drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan: %w", err)
		}
	}
	return n, rows.Err()
}
