package history

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/quantiz/internal/itempool"
	"github.com/abhisek/quantiz/internal/router"
	"github.com/abhisek/quantiz/internal/session"
)

func testState() *session.SessionState {
	st := session.NewSessionState("s1", []itempool.Topic{"Algebra", "Geometry"}, 7)
	st.Blocks[0] = &session.Block{
		Index: 0,
		Items: []itempool.Item{
			{ID: "alg-1", Topic: "Algebra", Cell: "alg-a", Text: "Solve 2x = 4.", Difficulty: 3, AnswerKey: "2"},
			{ID: "geo-1", Topic: "Geometry", Cell: "geo-a", Text: "Angles of a triangle sum to?", Difficulty: 3, AnswerKey: "180"},
		},
	}
	st.History = []session.Response{
		{ItemID: "alg-1", UserAnswer: "2", Correct: true, Topic: "Algebra", Cell: "alg-a", Difficulty: 3, BlockIndex: 0},
		{ItemID: "geo-1", UserAnswer: "", Correct: false, Topic: "Geometry", Cell: "geo-a", Difficulty: 3, BlockIndex: 0},
		{ItemID: "alg-9", UserAnswer: "7", Correct: true, Topic: "Algebra", Cell: "alg-b", Difficulty: 4, BlockIndex: 1},
	}
	return st
}

func key(s string) tea.KeyPressMsg {
	switch s {
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	}
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

func TestEntries(t *testing.T) {
	entries := Entries(testState())
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Text != "Solve 2x = 4." || entries[0].AnswerKey != "2" {
		t.Errorf("entry 0 = %+v, want item text and key attached", entries[0])
	}
	if entries[2].Text != "" {
		t.Errorf("entry for an uncached block should have no text, got %q", entries[2].Text)
	}
	if Entries(nil) != nil {
		t.Error("Entries(nil) should be nil")
	}
}

func TestHistoryScreen_Title(t *testing.T) {
	if got := New(nil).Title(); got != "Review" {
		t.Errorf("Title = %q, want %q", got, "Review")
	}
}

func TestHistoryScreen_Empty(t *testing.T) {
	view := New(nil).View(80, 24)
	if !strings.Contains(view, "No answers recorded") {
		t.Errorf("empty view = %q", view)
	}
}

func TestHistoryScreen_Navigate(t *testing.T) {
	s := New(Entries(testState()))

	s.Update(key("up"))
	if s.selected != 0 {
		t.Errorf("selected = %d after up at top, want 0", s.selected)
	}
	s.Update(key("down"))
	s.Update(key("j"))
	s.Update(key("down"))
	if s.selected != 2 {
		t.Errorf("selected = %d, want 2 (clamped)", s.selected)
	}
	s.Update(key("k"))
	if s.selected != 1 {
		t.Errorf("selected = %d, want 1", s.selected)
	}
}

func TestHistoryScreen_ExpandShowsDetails(t *testing.T) {
	s := New(Entries(testState()))
	view := s.View(100, 40)
	for _, want := range []string{"Block 1", "Block 2", "alg-1", "geo-1", "✓", "✗"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Answer key") {
		t.Error("details should be hidden until expanded")
	}

	s.Update(key("down"))
	s.Update(key("enter"))
	view = s.View(100, 40)
	for _, want := range []string{"Angles of a triangle", "(blank)", "180", "geo-a"} {
		if !strings.Contains(view, want) {
			t.Errorf("expanded view missing %q", want)
		}
	}

	s.Update(key("enter"))
	if strings.Contains(s.View(100, 40), "Answer key") {
		t.Error("second enter should collapse the details")
	}
}

func TestHistoryScreen_EscPops(t *testing.T) {
	_, cmd := New(nil).Update(key("esc"))
	if cmd == nil {
		t.Fatal("esc should return a command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Errorf("expected PopScreenMsg, got %T", cmd())
	}
}
