package domain

import "time"

// LineBreak joins the primary and secondary language renderings of a text.
const LineBreak = "<br>"

// MaxOptions is the number of option slots a question carries.
const MaxOptions = 5

// QuestionRecord models one MCQ question recovered from quiz text.
type QuestionRecord struct {
	ID            string             `json:"id"`
	Text          string             `json:"question"`
	Options       [MaxOptions]string `json:"options"`
	Correct       int                `json:"answer"` // 1-based; 0 when the source had no answer line
	Explanation   string             `json:"solution_text,omitempty"`
	CorrectScore  float64            `json:"correct_score"`
	NegativeScore float64            `json:"negative_score"`
}

// OptionCount returns the number of populated option slots.
func (q QuestionRecord) OptionCount() int {
	n := 0
	for _, opt := range q.Options {
		if opt != "" {
			n++
		}
	}
	return n
}

// HasOption reports whether the 1-based option slot is populated.
func (q QuestionRecord) HasOption(index int) bool {
	if index < 1 || index > MaxOptions {
		return false
	}
	return q.Options[index-1] != ""
}

// Valid reports whether the record satisfies the schema invariants.
func (q QuestionRecord) Valid() bool {
	if q.Text == "" || q.OptionCount() < 2 {
		return false
	}
	if q.Correct == 0 {
		return true
	}
	return q.HasOption(q.Correct)
}

// Quiz is a published, ordered set of questions with its timing and marking scheme.
type Quiz struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Creator          string           `json:"creator,omitempty"`
	Questions        []QuestionRecord `json:"questions"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	CorrectScore     float64          `json:"correct_score"`
	NegativeScore    float64          `json:"negative_score"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Identity is the resolved quiz taker.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Mode selects when answer feedback is shown.
type Mode string

const (
	// ModeDeferred shows correctness only after submission ("test" mode).
	ModeDeferred Mode = "test"
	// ModeImmediate reveals correctness as soon as an option is chosen ("quiz" mode).
	ModeImmediate Mode = "quiz"
)

// SessionState is the in-progress, resumable quiz-taking state.
type SessionState struct {
	Current          int            `json:"current"`
	Answers          map[string]int `json:"answers"`
	Marked           []int          `json:"markedForReview"`
	RemainingSeconds int            `json:"seconds"`
	Mode             Mode           `json:"mode"`
}

// OutcomeStatus classifies a question in a result.
type OutcomeStatus string

const (
	OutcomeCorrect    OutcomeStatus = "correct"
	OutcomeWrong      OutcomeStatus = "wrong"
	OutcomeUnanswered OutcomeStatus = "unattempted"
)

// QuestionOutcome is the per-question line of a result.
type QuestionOutcome struct {
	QuestionID string        `json:"questionId"`
	Chosen     int           `json:"userAnswer,omitempty"`
	Correct    int           `json:"correctAnswer"`
	Status     OutcomeStatus `json:"status"`
	Awarded    float64       `json:"awarded"`
}

// Result is the immutable scored outcome of one completed attempt.
type Result struct {
	QuizID          string            `json:"quizId"`
	UserID          string            `json:"userId"`
	DisplayName     string            `json:"displayName,omitempty"`
	Email           string            `json:"email,omitempty"`
	Outcomes        []QuestionOutcome `json:"answers"`
	Score           float64           `json:"score"`
	MaxMarks        float64           `json:"maxMarks"`
	CorrectCount    int               `json:"correct"`
	WrongCount      int               `json:"wrong"`
	UnansweredCount int               `json:"unattempted"`
	Accuracy        float64           `json:"accuracy"`
	TimeTaken       int               `json:"timeTaken"`
	SubmittedAt     time.Time         `json:"submittedAt"`
}

// LeaderboardEntry is a ranked, derived view over results.
type LeaderboardEntry struct {
	Position    int     `json:"position"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
	TimeTaken   int     `json:"timeTaken"`
}

// Leaderboard captures the ordered top results for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
