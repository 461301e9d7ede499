package httpapi

import (
	"time"

	"github.com/abhisek/quantiz/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

type sessionView struct {
	ID          string `json:"id"`
	Attempt     int    `json:"attempt"`
	Phase       string `json:"phase"`
	BlockIndex  int    `json:"block_index"`
	TotalBlocks int    `json:"total_blocks"`
	Ability     int    `json:"ability"`
	Answered    int    `json:"answered"`
}

func newSessionView(st *session.SessionState) sessionView {
	return sessionView{
		ID:          st.ID,
		Attempt:     st.Attempt,
		Phase:       st.Phase().String(),
		BlockIndex:  st.BlockIndex,
		TotalBlocks: st.TotalBlocks,
		Ability:     st.Ability,
		Answered:    len(st.History),
	}
}

// itemView never carries the answer key.
type itemView struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

type blockView struct {
	Index            int        `json:"index"`
	TargetDifficulty int        `json:"target_difficulty"`
	Insufficient     bool       `json:"insufficient"`
	Message          string     `json:"message,omitempty"`
	Items            []itemView `json:"items"`
}

const insufficientMessage = "Not enough eligible questions remain for a full block. Submit it empty to continue."

func newBlockView(b *session.Block) blockView {
	v := blockView{
		Index:            b.Index,
		TargetDifficulty: b.TargetDifficulty,
		Insufficient:     b.Insufficient,
		Items:            make([]itemView, 0, len(b.Items)),
	}
	if b.Insufficient {
		v.Message = insufficientMessage
	}
	for _, it := range b.Items {
		v.Items = append(v.Items, itemView{ID: it.ID, Topic: string(it.Topic), Text: it.Text})
	}
	return v
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

type responseView struct {
	ItemID     string `json:"item_id"`
	Topic      string `json:"topic"`
	Difficulty int    `json:"difficulty"`
	UserAnswer string `json:"user_answer"`
	Correct    bool   `json:"correct"`
	BlockIndex int    `json:"block_index"`
}

func newResponseViews(rs []session.Response) []responseView {
	out := make([]responseView, 0, len(rs))
	for _, r := range rs {
		out = append(out, responseView{
			ItemID:     r.ItemID,
			Topic:      string(r.Topic),
			Difficulty: r.Difficulty,
			UserAnswer: r.UserAnswer,
			Correct:    r.Correct,
			BlockIndex: r.BlockIndex,
		})
	}
	return out
}

type resultView struct {
	Index         int            `json:"index"`
	Correct       int            `json:"correct"`
	Size          int            `json:"size"`
	Accuracy      float64        `json:"accuracy"`
	AbilityBefore int            `json:"ability_before"`
	AbilityAfter  int            `json:"ability_after"`
	Completed     bool           `json:"completed"`
	Responses     []responseView `json:"responses"`
}

func newResultView(r *session.BlockResult) resultView {
	return resultView{
		Index:         r.Index,
		Correct:       r.Correct,
		Size:          r.Size,
		Accuracy:      r.Accuracy(),
		AbilityBefore: r.AbilityBefore,
		AbilityAfter:  r.AbilityAfter,
		Completed:     r.Completed,
		Responses:     newResponseViews(r.Responses),
	}
}

type topicView struct {
	Topic    string `json:"topic"`
	Answered int    `json:"answered"`
	Correct  int    `json:"correct"`
}

type matrixRowView struct {
	Topic  string `json:"topic"`
	Counts []int  `json:"counts"`
}

type summaryView struct {
	SessionID          string          `json:"session_id"`
	Attempt            int             `json:"attempt"`
	Answered           int             `json:"answered"`
	Correct            int             `json:"correct"`
	Accuracy           float64         `json:"accuracy"`
	AverageDifficulty  float64         `json:"average_difficulty"`
	Topics             []topicView     `json:"topics"`
	Difficulties       []int           `json:"difficulties"`
	Matrix             []matrixRowView `json:"matrix"`
	FinalAbility       int             `json:"final_ability"`
	AbilityTrail       []int           `json:"ability_trail"`
	InsufficientBlocks int             `json:"insufficient_blocks"`
	DurationSeconds    float64         `json:"duration_seconds"`
}

func newSummaryView(s *session.Summary) summaryView {
	v := summaryView{
		SessionID:          s.SessionID,
		Attempt:            s.Attempt,
		Answered:           s.Answered,
		Correct:            s.Correct,
		Accuracy:           s.Accuracy,
		AverageDifficulty:  s.AverageDifficulty,
		Topics:             make([]topicView, 0, len(s.Topics)),
		Difficulties:       append([]int{}, s.Difficulties...),
		Matrix:             make([]matrixRowView, 0, len(s.Matrix)),
		FinalAbility:       s.FinalAbility,
		AbilityTrail:       append([]int{}, s.AbilityTrail...),
		InsufficientBlocks: s.InsufficientBlocks,
		DurationSeconds:    s.Duration.Round(time.Millisecond).Seconds(),
	}
	for _, t := range s.Topics {
		v.Topics = append(v.Topics, topicView{Topic: string(t.Topic), Answered: t.Answered, Correct: t.Correct})
	}
	for _, row := range s.Matrix {
		v.Matrix = append(v.Matrix, matrixRowView{Topic: string(row.Topic), Counts: row.Counts})
	}
	return v
}
