package session

import (
	"fmt"

	"quizbook-service/internal/domain"
)

// PaletteStatus is the indicator shown for a question in the question palette.
type PaletteStatus string

const (
	PaletteCurrent     PaletteStatus = "current"
	PaletteMarked      PaletteStatus = "marked"
	PaletteAttempted   PaletteStatus = "attempted"
	PaletteUnattempted PaletteStatus = "unattempted"
)

// OptionFeedback marks a single option once feedback is revealed.
type OptionFeedback struct {
	Index   int  `json:"index"`
	Correct bool `json:"correct"`
	// Wrong is set on the chosen option when it is not the correct one.
	Wrong bool `json:"wrong"`
}

// Feedback is the correctness reveal for one answered question.
type Feedback struct {
	QuestionID  string           `json:"questionId"`
	Chosen      int              `json:"chosen"`
	Revealed    bool             `json:"revealed"`
	IsCorrect   bool             `json:"isCorrect,omitempty"`
	Options     []OptionFeedback `json:"options,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
}

// OptionView is a populated option slot.
type OptionView struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// QuestionView is the question currently on screen.
type QuestionView struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	Text          string       `json:"text"`
	Options       []OptionView `json:"options"`
	CorrectScore  float64      `json:"correctScore"`
	NegativeScore float64      `json:"negativeScore"`
	Marked        bool         `json:"marked"`
}

// Progress counts questions by answer state.
type Progress struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Marked     int `json:"marked"`
}

// View is everything a client needs to render the session.
type View struct {
	QuizID           string          `json:"quizId"`
	Title            string          `json:"title"`
	Status           Status          `json:"status"`
	Mode             domain.Mode     `json:"mode"`
	Current          int             `json:"current"`
	Question         *QuestionView   `json:"question,omitempty"`
	RemainingSeconds int             `json:"remainingSeconds"`
	Clock            string          `json:"clock"`
	Progress         Progress        `json:"progress"`
	Palette          []PaletteStatus `json:"palette"`
	Feedback         *Feedback       `json:"feedback,omitempty"`
	Result           *domain.Result  `json:"result,omitempty"`
}

// View renders the current session.
func (m *Machine) View() View {
	v := View{
		QuizID:           m.quiz.ID,
		Title:            m.quiz.Title,
		Status:           m.status,
		Mode:             m.state.Mode,
		Current:          m.state.Current,
		RemainingSeconds: m.state.RemainingSeconds,
		Clock:            Clock(m.state.RemainingSeconds),
	}
	if m.status == StatusSubmitted && m.result != nil {
		result := *m.result
		v.Result = &result
		v.Clock = Clock(0)
		v.RemainingSeconds = 0
		return v
	}
	if m.status != StatusActive || len(m.records) == 0 {
		return v
	}

	q := m.records[m.state.Current]
	chosen := m.state.Answers[q.ID]
	_, marked := m.marked[m.state.Current]
	qv := &QuestionView{
		ID:            q.ID,
		Number:        m.state.Current + 1,
		Text:          q.Text,
		CorrectScore:  q.CorrectScore,
		NegativeScore: q.NegativeScore,
		Marked:        marked,
	}
	for i, text := range q.Options {
		if text == "" {
			continue
		}
		qv.Options = append(qv.Options, OptionView{Index: i + 1, Text: text, Selected: chosen == i+1})
	}
	v.Question = qv

	if m.state.Mode == domain.ModeImmediate && chosen != 0 {
		fb := m.feedback(m.state.Current)
		v.Feedback = &fb
	}

	v.Palette = make([]PaletteStatus, len(m.records))
	v.Progress.Total = len(m.records)
	for i, rec := range m.records {
		_, isMarked := m.marked[i]
		_, answered := m.state.Answers[rec.ID]
		if answered {
			v.Progress.Answered++
		}
		if isMarked {
			v.Progress.Marked++
		}
		switch {
		case i == m.state.Current:
			v.Palette[i] = PaletteCurrent
		case isMarked:
			v.Palette[i] = PaletteMarked
		case answered:
			v.Palette[i] = PaletteAttempted
		default:
			v.Palette[i] = PaletteUnattempted
		}
	}
	v.Progress.Unanswered = v.Progress.Total - v.Progress.Answered
	return v
}

// feedback reveals correctness for the answered question i.
func (m *Machine) feedback(i int) Feedback {
	q := m.records[i]
	chosen := m.state.Answers[q.ID]
	fb := Feedback{
		QuestionID:  q.ID,
		Chosen:      chosen,
		Revealed:    true,
		IsCorrect:   q.Correct != 0 && chosen == q.Correct,
		Explanation: q.Explanation,
	}
	for idx, text := range q.Options {
		if text == "" {
			continue
		}
		slot := idx + 1
		fb.Options = append(fb.Options, OptionFeedback{
			Index:   slot,
			Correct: slot == q.Correct,
			Wrong:   slot == chosen && slot != q.Correct,
		})
	}
	return fb
}

// Clock formats seconds as mm:ss. Minutes are not capped at 59.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
