package itempool

import (
	"fmt"
)

// Accessor is the read-only view over an item pool that selection needs.
type Accessor interface {
	// All returns every item in pool order.
	All() []Item

	// Get looks up an item by id.
	Get(id string) (Item, bool)

	// Topics returns the distinct topics in order of first appearance.
	Topics() []Topic

	// Where returns the items matching pred, in pool order.
	Where(pred func(Item) bool) []Item
}

// Pool is an immutable, indexed collection of items. It is safe for
// concurrent use by any number of sessions.
type Pool struct {
	items  []Item
	byID   map[string]int
	topics []Topic
}

var _ Accessor = (*Pool)(nil)

// New builds a Pool, validating every item and rejecting duplicate ids.
func New(items []Item) (*Pool, error) {
	p := &Pool{
		items: make([]Item, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	seenTopic := make(map[Topic]bool)
	cellTopic := make(map[string]Topic)

	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		if _, dup := p.byID[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidItem, it.ID)
		}
		if t, ok := cellTopic[it.Cell]; ok && t != it.Topic {
			return nil, fmt.Errorf("%w: %s: cell %q spans topics %q and %q",
				ErrInvalidItem, it.ID, it.Cell, t, it.Topic)
		}
		cellTopic[it.Cell] = it.Topic

		p.byID[it.ID] = len(p.items)
		p.items = append(p.items, it)
		if !seenTopic[it.Topic] {
			seenTopic[it.Topic] = true
			p.topics = append(p.topics, it.Topic)
		}
	}
	return p, nil
}

// Len returns the number of items in the pool.
func (p *Pool) Len() int {
	return len(p.items)
}

func (p *Pool) All() []Item {
	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Pool) Get(id string) (Item, bool) {
	i, ok := p.byID[id]
	if !ok {
		return Item{}, false
	}
	return p.items[i], true
}

func (p *Pool) Topics() []Topic {
	out := make([]Topic, len(p.topics))
	copy(out, p.topics)
	return out
}

func (p *Pool) Where(pred func(Item) bool) []Item {
	var out []Item
	for _, it := range p.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// ExcludingIDs returns the items whose id is not in ids.
func (p *Pool) ExcludingIDs(ids map[string]bool) []Item {
	return p.Where(func(it Item) bool { return !ids[it.ID] })
}

// ByTopic returns the items of a single topic.
func (p *Pool) ByTopic(t Topic) []Item {
	return p.Where(func(it Item) bool { return it.Topic == t })
}

// ExcludingCells returns the items whose cell is not in cells.
func (p *Pool) ExcludingCells(cells map[string]bool) []Item {
	return p.Where(func(it Item) bool { return !cells[it.Cell] })
}
