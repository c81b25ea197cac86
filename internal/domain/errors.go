package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these,
// so callers classify with errors.Is(err, domain.ErrConflict) and friends.
var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var (
	// ErrAttemptNotFound is returned when an attempt id does not resolve.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrNotOwner is returned when the caller neither owns the attempt nor is an administrator.
	ErrNotOwner = fmt.Errorf("%w: you do not have permission to access this attempt", ErrPermission)
	// ErrNotSubmitted guards projections that only exist for a submitted attempt.
	ErrNotSubmitted = fmt.Errorf("%w: attempt not submitted", ErrPermission)
	// ErrAlreadySubmitted is the idempotency boundary of submit and of answer writes.
	ErrAlreadySubmitted = fmt.Errorf("%w: attempt already submitted", ErrConflict)
	// ErrQuestionNotInQuiz indicates a question id that is not part of the attempt's quiz.
	ErrQuestionNotInQuiz = fmt.Errorf("%w: question does not belong to quiz", ErrValidation)
	// ErrChoiceNotInQuestion indicates a choice id that is not an option of the question.
	ErrChoiceNotInQuestion = fmt.Errorf("%w: choice does not belong to question", ErrValidation)
	// ErrTotalQuestionsUnset is returned when scoring an attempt without a question total.
	ErrTotalQuestionsUnset = fmt.Errorf("%w: total questions is required for scoring", ErrValidation)
	// ErrTooManyAnswers signals corrupted answer rows for an attempt.
	ErrTooManyAnswers = fmt.Errorf("%w: answer count exceeds total questions", ErrValidation)
)

// IntegrityError reports a question that does not have exactly one correct choice.
type IntegrityError struct {
	QuestionID   int64
	CorrectCount int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("question %d must have exactly one correct choice (has %d)", e.QuestionID, e.CorrectCount)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *IntegrityError) Unwrap() error { return ErrValidation }
