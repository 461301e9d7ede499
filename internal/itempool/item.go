package itempool

import (
	"errors"
	"fmt"
)

// Topic is the content area an item belongs to.
type Topic string

// Difficulty bounds for pool items.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Item is a single selectable question.
type Item struct {
	ID    string
	Topic Topic

	// Cell groups closely related items. Every item of a cell shares its topic.
	Cell string

	Text            string
	Difficulty      int
	AnswerKey       string
	ExpectedMinutes float64

	// ExposureCount is how many times the item has been delivered historically.
	// Selection reads it; only the pool bank updates it.
	ExposureCount int
}

// ErrInvalidItem is returned when an item fails validation.
var ErrInvalidItem = errors.New("invalid item")

// Validate checks the static attributes of an item.
func (it Item) Validate() error {
	switch {
	case it.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	case it.Topic == "":
		return fmt.Errorf("%w: %s: empty topic", ErrInvalidItem, it.ID)
	case it.Cell == "":
		return fmt.Errorf("%w: %s: empty cell", ErrInvalidItem, it.ID)
	case it.Difficulty < MinDifficulty || it.Difficulty > MaxDifficulty:
		return fmt.Errorf("%w: %s: difficulty %d outside [%d,%d]",
			ErrInvalidItem, it.ID, it.Difficulty, MinDifficulty, MaxDifficulty)
	case it.ExposureCount < 0:
		return fmt.Errorf("%w: %s: negative exposure count", ErrInvalidItem, it.ID)
	}
	return nil
}
