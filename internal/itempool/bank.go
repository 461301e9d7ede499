package itempool

import (
	"fmt"
	"math/rand/v2"
)

// DefaultTopics are the quant topics of the demo bank.
var DefaultTopics = []Topic{
	"Algebra",
	"Coordinate Geometry",
	"Word Problems",
	"Arithmetic",
	"Combinations",
	"Probability",
	"Fraction",
	"Distance and Speed",
}

// BankConfig controls demo bank generation.
type BankConfig struct {
	Topics        []Topic
	CellsPerTopic int
	ItemsPerCell  int

	// MaxExposure is the upper bound (inclusive) of the random prior exposure.
	MaxExposure int

	// Seed makes generation reproducible.
	Seed uint64
}

// DefaultBankConfig returns the 8 topics x 20 cells x 5 items layout.
func DefaultBankConfig() BankConfig {
	return BankConfig{
		Topics:        DefaultTopics,
		CellsPerTopic: 20,
		ItemsPerCell:  5,
		MaxExposure:   2,
		Seed:          1,
	}
}

var expectedMinutes = []float64{1.5, 2.0, 2.5}

// GenerateBank builds a synthetic cell-based item bank. Cell numbers are
// global across topics, so ids stay unique even when topics share an initial.
func GenerateBank(cfg BankConfig) []Item {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	items := make([]Item, 0, len(cfg.Topics)*cfg.CellsPerTopic*cfg.ItemsPerCell)
	cellNum := 0
	for _, topic := range cfg.Topics {
		initial := topicInitial(topic)
		for c := 0; c < cfg.CellsPerTopic; c++ {
			cell := fmt.Sprintf("%sC%d", initial, cellNum)
			for j := 0; j < cfg.ItemsPerCell; j++ {
				items = append(items, Item{
					ID:              fmt.Sprintf("%sQ%d", cell, j),
					Topic:           topic,
					Cell:            cell,
					Text:            fmt.Sprintf("[%s] Cell %d Q%d: Dummy question text?", topic, cellNum, j),
					Difficulty:      MinDifficulty + rng.IntN(MaxDifficulty-MinDifficulty+1),
					AnswerKey:       "A",
					ExpectedMinutes: expectedMinutes[rng.IntN(len(expectedMinutes))],
					ExposureCount:   rng.IntN(cfg.MaxExposure + 1),
				})
			}
			cellNum++
		}
	}
	return items
}

func topicInitial(t Topic) string {
	for _, r := range string(t) {
		return string(r)
	}
	return "X"
}
