// Package scoring converts a set of answers into a quiz result.
package scoring

import (
	"github.com/shopspring/decimal"

	"quizbook-service/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Score grades answers (question ID -> 1-based option) against records.
//
// A correct answer adds the record's CorrectScore, a wrong one subtracts its
// NegativeScore and an unanswered question contributes nothing. Records without
// a correct index are never counted as correct. Score does not modify its
// arguments and always returns the same result for the same input; identity and
// submission time are left for the caller to fill in.
func Score(records []domain.QuestionRecord, answers map[string]int, timeAllotted, timeRemaining int) domain.Result {
	var (
		total    = decimal.Zero
		maxMarks = decimal.Zero
		result   = domain.Result{Outcomes: make([]domain.QuestionOutcome, 0, len(records))}
	)

	for _, q := range records {
		correctScore := decimal.NewFromFloat(q.CorrectScore)
		negativeScore := decimal.NewFromFloat(q.NegativeScore)
		maxMarks = maxMarks.Add(correctScore)

		outcome := domain.QuestionOutcome{QuestionID: q.ID, Correct: q.Correct}
		chosen, answered := answers[q.ID]
		switch {
		case !answered || chosen == 0:
			outcome.Status = domain.OutcomeUnanswered
			result.UnansweredCount++
		case q.Correct != 0 && chosen == q.Correct:
			outcome.Chosen = chosen
			outcome.Status = domain.OutcomeCorrect
			outcome.Awarded = correctScore.InexactFloat64()
			total = total.Add(correctScore)
			result.CorrectCount++
		default:
			outcome.Chosen = chosen
			outcome.Status = domain.OutcomeWrong
			outcome.Awarded = negativeScore.Neg().InexactFloat64()
			total = total.Sub(negativeScore)
			result.WrongCount++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Score = total.InexactFloat64()
	result.MaxMarks = maxMarks.InexactFloat64()
	result.Accuracy = Accuracy(result.CorrectCount, result.CorrectCount+result.WrongCount)
	result.TimeTaken = timeAllotted - timeRemaining
	return result
}

// Accuracy is correct/answered as a percentage rounded to one decimal place,
// or 0 when nothing was answered.
func Accuracy(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).Mul(hundred).Div(decimal.NewFromInt(int64(answered)))
	return pct.Round(1).InexactFloat64()
}
