// Package scoring turns recorded answers into counts and accuracy. Everything
// here is pure; callers supply already-loaded rows.
package scoring

import (
	"quiz-attempt-service/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CorrectCount counts answers whose recorded choice is correct.
func CorrectCount(answers []domain.AttemptAnswer) int {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return correct
}

// Accuracy returns correct/total as a percentage rounded to 2 decimal places,
// or 0 when total is 0.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred).
		Round(2)
	f, _ := pct.Float64()
	return f
}

// ValidateQuizIntegrity fails with a *domain.IntegrityError naming the first
// question that does not have exactly one correct choice.
func ValidateQuizIntegrity(questions []domain.Question) error {
	for _, q := range questions {
		n := 0
		for _, c := range q.Choices {
			if c.IsCorrect {
				n++
			}
		}
		if n != 1 {
			return &domain.IntegrityError{QuestionID: q.ID, CorrectCount: n}
		}
	}
	return nil
}

// ValidateAnswerCount rejects an unset total and answer sets larger than the
// total, which can only happen when the (attempt, question) uniqueness was bypassed.
func ValidateAnswerCount(answerCount int, totalQuestions *int) error {
	if totalQuestions == nil {
		return domain.ErrTotalQuestionsUnset
	}
	if answerCount > *totalQuestions {
		return domain.ErrTooManyAnswers
	}
	return nil
}

// Evaluate scores answers against totalQuestions. Unanswered questions count
// as incorrect.
func Evaluate(answers []domain.AttemptAnswer, totalQuestions *int) (domain.Evaluation, error) {
	if err := ValidateAnswerCount(len(answers), totalQuestions); err != nil {
		return domain.Evaluation{}, err
	}
	total := *totalQuestions
	correct := CorrectCount(answers)
	incorrect := total - correct
	if incorrect < 0 {
		incorrect = 0
	}
	return domain.Evaluation{
		Correct:   correct,
		Incorrect: incorrect,
		Accuracy:  Accuracy(correct, total),
	}, nil
}
