package scoring

import (
	"reflect"
	"testing"

	"quizbook-service/internal/domain"
)

func twoQuestions(correct, negative float64) []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{ID: "50001", Text: "2+2?", Options: [5]string{"3", "4"}, Correct: 2, CorrectScore: correct, NegativeScore: negative},
		{ID: "50002", Text: "3+3?", Options: [5]string{"6", "7"}, Correct: 1, CorrectScore: correct, NegativeScore: negative},
	}
}

func TestScoreMixedAnswers(t *testing.T) {
	result := Score(twoQuestions(3, 1), map[string]int{"50001": 2, "50002": 2}, 600, 420)

	if result.Score != 2 {
		t.Fatalf("expected score 2, got %v", result.Score)
	}
	if result.CorrectCount != 1 || result.WrongCount != 1 || result.UnansweredCount != 0 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Accuracy != 50.0 {
		t.Fatalf("expected accuracy 50.0, got %v", result.Accuracy)
	}
	if result.MaxMarks != 6 {
		t.Fatalf("expected max marks 6, got %v", result.MaxMarks)
	}
	if result.TimeTaken != 180 {
		t.Fatalf("expected time taken 180, got %d", result.TimeTaken)
	}
	if result.Outcomes[0].Status != domain.OutcomeCorrect || result.Outcomes[1].Status != domain.OutcomeWrong {
		t.Fatalf("unexpected outcomes %+v", result.Outcomes)
	}
	if result.Outcomes[1].Awarded != -1 {
		t.Fatalf("expected -1 awarded on wrong answer, got %v", result.Outcomes[1].Awarded)
	}
}

func TestScoreUnansweredContributesNothing(t *testing.T) {
	result := Score(twoQuestions(3, 1), map[string]int{}, 60, 0)
	if result.Score != 0 || result.UnansweredCount != 2 {
		t.Fatalf("expected zero score with 2 unanswered, got %+v", result)
	}
	if result.Accuracy != 0 {
		t.Fatalf("expected accuracy 0 when nothing answered, got %v", result.Accuracy)
	}
}

func TestScoreFractionalNegativeMarks(t *testing.T) {
	records := make([]domain.QuestionRecord, 0, 10)
	answers := map[string]int{}
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		records = append(records, domain.QuestionRecord{ID: id, Options: [5]string{"x", "y"}, Correct: 1, CorrectScore: 1, NegativeScore: 0.1})
		answers[id] = 2
	}
	result := Score(records, answers, 100, 0)
	if result.Score != -1 {
		t.Fatalf("expected exact -1 after ten 0.1 deductions, got %v", result.Score)
	}
}

func TestScoreUnsetAnswerIsNeverCorrect(t *testing.T) {
	records := []domain.QuestionRecord{{ID: "q", Options: [5]string{"x", "y"}, Correct: 0, CorrectScore: 3, NegativeScore: 1}}
	result := Score(records, map[string]int{"q": 1}, 10, 5)
	if result.CorrectCount != 0 || result.WrongCount != 1 || result.Score != -1 {
		t.Fatalf("expected unset answer key to count as wrong, got %+v", result)
	}
}

func TestScoreIsDeterministicAndPure(t *testing.T) {
	records := twoQuestions(2, 0.5)
	answers := map[string]int{"50001": 1}
	first := Score(records, answers, 300, 100)
	second := Score(records, answers, 300, 100)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
	if len(answers) != 1 || answers["50001"] != 1 {
		t.Fatalf("answers mutated: %v", answers)
	}
	if records[0].Correct != 2 {
		t.Fatalf("records mutated: %+v", records[0])
	}
}

func TestAccuracyRounding(t *testing.T) {
	if got := Accuracy(2, 3); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
	if got := Accuracy(1, 3); got != 33.3 {
		t.Fatalf("expected 33.3, got %v", got)
	}
}
