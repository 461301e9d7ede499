package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/abhisek/quantiz/internal/itempool"
)

func TestBuildSummary(t *testing.T) {
	st := NewSessionState("s1", []itempool.Topic{"Algebra", "Probability", "Fraction"}, 2)
	st.StartTime = time.Unix(1000, 0)
	st.CompletedAt = time.Unix(1090, 0)
	st.BlockIndex = 2
	st.Ability = 1
	st.AbilityTrail = []int{1, 1}
	st.History = []Response{
		{ItemID: "a1", Topic: "Algebra", Difficulty: 2, Correct: true},
		{ItemID: "p1", Topic: "Probability", Difficulty: 4, Correct: true},
		{ItemID: "f1", Topic: "Fraction", Difficulty: 3, Correct: false},
		{ItemID: "a2", Topic: "Algebra", Difficulty: 4, Correct: true},
	}
	st.Blocks[0] = &Block{Index: 0}
	st.Blocks[1] = &Block{Index: 1, Insufficient: true}

	got := BuildSummary(st)
	want := &Summary{
		SessionID:         "s1",
		Attempt:           1,
		Answered:          4,
		Correct:           3,
		Accuracy:          0.75,
		AverageDifficulty: 3.25,
		Topics: []TopicStat{
			{Topic: "Algebra", Answered: 2, Correct: 2},
			{Topic: "Fraction", Answered: 1, Correct: 0},
			{Topic: "Probability", Answered: 1, Correct: 1},
		},
		Difficulties: []int{2, 3, 4},
		Matrix: []MatrixRow{
			{Topic: "Algebra", Counts: []int{1, 0, 1}},
			{Topic: "Fraction", Counts: []int{0, 1, 0}},
			{Topic: "Probability", Counts: []int{0, 0, 1}},
		},
		FinalAbility:       1,
		AbilityTrail:       []int{1, 1},
		InsufficientBlocks: 1,
		Duration:           90 * time.Second,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("BuildSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSummary_Empty(t *testing.T) {
	st := NewSessionState("s1", nil, 7)
	s := BuildSummary(st)
	if s.Answered != 0 || s.Accuracy != 0 || s.AverageDifficulty != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	if len(s.Matrix) != 0 || len(s.Topics) != 0 {
		t.Errorf("empty summary has rows: %+v", s)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	st := NewSessionState("s1", nil, 7)
	r.Add(st)

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	err := r.With("missing", func(*SessionState) error { return nil })
	if err != ErrSessionNotFound {
		t.Errorf("With(missing) = %v, want ErrSessionNotFound", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With("s1", func(s *SessionState) error {
				s.Ability++
				return nil
			})
		}()
	}
	wg.Wait()
	if st.Ability != 50 {
		t.Errorf("Ability = %d, want 50", st.Ability)
	}

	if err := r.Remove("s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Remove("s1"); err != ErrSessionNotFound {
		t.Errorf("second Remove = %v, want ErrSessionNotFound", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_AddIfBelow(t *testing.T) {
	r := NewRegistry()
	const limit = 10

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.AddIfBelow(NewSessionState("s"+strconv.Itoa(i), nil, 7), limit) {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if added != limit {
		t.Errorf("added = %d, want %d", added, limit)
	}
	if r.Len() != limit {
		t.Errorf("Len = %d, want %d", r.Len(), limit)
	}
}
