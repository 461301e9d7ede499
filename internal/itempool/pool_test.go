package itempool

import (
	"errors"
	"testing"
)

func testItems() []Item {
	return []Item{
		{ID: "a1", Topic: "Algebra", Cell: "c1", Difficulty: 2, AnswerKey: "A"},
		{ID: "a2", Topic: "Algebra", Cell: "c1", Difficulty: 3, AnswerKey: "B"},
		{ID: "p1", Topic: "Probability", Cell: "c2", Difficulty: 4, AnswerKey: "C"},
		{ID: "f1", Topic: "Fraction", Cell: "c3", Difficulty: 1, AnswerKey: "D", ExposureCount: 2},
	}
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	items := testItems()
	items = append(items, items[0])
	_, err := New(items)
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("err = %v, want ErrInvalidItem", err)
	}
}

func TestNew_RejectsInvalidItems(t *testing.T) {
	tests := []struct {
		name string
		item Item
	}{
		{"empty id", Item{Topic: "T", Cell: "c", Difficulty: 1}},
		{"empty topic", Item{ID: "x", Cell: "c", Difficulty: 1}},
		{"empty cell", Item{ID: "x", Topic: "T", Difficulty: 1}},
		{"difficulty too low", Item{ID: "x", Topic: "T", Cell: "c", Difficulty: 0}},
		{"difficulty too high", Item{ID: "x", Topic: "T", Cell: "c", Difficulty: 6}},
		{"negative exposure", Item{ID: "x", Topic: "T", Cell: "c", Difficulty: 3, ExposureCount: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New([]Item{tt.item}); !errors.Is(err, ErrInvalidItem) {
				t.Errorf("err = %v, want ErrInvalidItem", err)
			}
		})
	}
}

func TestNew_RejectsCellSpanningTopics(t *testing.T) {
	items := []Item{
		{ID: "x1", Topic: "A", Cell: "c", Difficulty: 1},
		{ID: "x2", Topic: "B", Cell: "c", Difficulty: 1},
	}
	if _, err := New(items); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("err = %v, want ErrInvalidItem", err)
	}
}

func TestPool_Queries(t *testing.T) {
	p, err := New(testItems())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	if p.Len() != 4 {
		t.Errorf("Len = %d, want 4", p.Len())
	}

	it, ok := p.Get("p1")
	if !ok || it.Topic != "Probability" {
		t.Errorf("Get(p1) = %+v, %v", it, ok)
	}
	if _, ok := p.Get("missing"); ok {
		t.Error("expected Get(missing) to fail")
	}

	topics := p.Topics()
	want := []Topic{"Algebra", "Probability", "Fraction"}
	if len(topics) != len(want) {
		t.Fatalf("Topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("Topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}

	if got := p.ByTopic("Algebra"); len(got) != 2 {
		t.Errorf("ByTopic(Algebra) len = %d, want 2", len(got))
	}
	if got := p.ExcludingIDs(map[string]bool{"a1": true, "f1": true}); len(got) != 2 {
		t.Errorf("ExcludingIDs len = %d, want 2", len(got))
	}
	if got := p.ExcludingCells(map[string]bool{"c1": true}); len(got) != 2 {
		t.Errorf("ExcludingCells len = %d, want 2", len(got))
	}
}

func TestPool_AllReturnsCopy(t *testing.T) {
	p, _ := New(testItems())
	all := p.All()
	all[0].Difficulty = 5

	it, _ := p.Get(all[0].ID)
	if it.Difficulty == 5 {
		t.Error("mutating All() result changed the pool")
	}
}

func TestEligible(t *testing.T) {
	p, _ := New(testItems())

	if got := Eligible(p, nil); len(got) != p.Len() {
		t.Errorf("Eligible(nil) len = %d, want %d", len(got), p.Len())
	}

	got := Eligible(p, map[string]bool{"a1": true, "p1": true})
	if len(got) != 2 {
		t.Fatalf("Eligible len = %d, want 2", len(got))
	}
	for _, it := range got {
		if it.ID == "a1" || it.ID == "p1" {
			t.Errorf("attempted item %s returned as eligible", it.ID)
		}
	}
}
