package domain

import "time"

// AttemptStatus is the lifecycle state of an attempt. The only transition is
// InProgress -> Submitted.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "IN_PROGRESS"
	StatusSubmitted  AttemptStatus = "SUBMITTED"
)

// User is the caller identity, resolved by the auth layer and passed explicitly.
type User struct {
	ID      int64
	IsAdmin bool
}

// Quiz is a fixed ordered set of questions under a category.
type Quiz struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Choice represents a possible answer for a question.
type Choice struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question models an MCQ question; content management guarantees (and submit
// re-checks) exactly one correct choice.
type Question struct {
	ID            int64    `json:"id"`
	QuizID        int64    `json:"quiz_id"`
	Text          string   `json:"text"`
	Image         string   `json:"image,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	AIExplanation string   `json:"ai_explanation,omitempty"`
	Choices       []Choice `json:"choices"`
}

// BestAvailableExplanation prefers the AI-generated text and falls back to the
// manual explanation.
func (q Question) BestAvailableExplanation() string {
	if q.AIExplanation != "" {
		return q.AIExplanation
	}
	return q.Explanation
}

// Choice returns the option with the given id.
func (q Question) Choice(id int64) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// CorrectChoiceID returns the first option flagged correct, or 0.
func (q Question) CorrectChoiceID() int64 {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.ID
		}
	}
	return 0
}

// Attempt is one user's run through a quiz.
type Attempt struct {
	ID               int64         `json:"id"`
	UserID           int64         `json:"user_id"`
	QuizID           int64         `json:"quiz_id"`
	Status           AttemptStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	Score            *int          `json:"score,omitempty"`
	TotalQuestions   *int          `json:"total_questions,omitempty"`
	TimeTakenSeconds *int          `json:"time_taken_seconds,omitempty"`
}

// Submitted reports whether the attempt reached its terminal state.
func (a Attempt) Submitted() bool { return a.Status == StatusSubmitted }

// AttemptAnswer is the choice recorded for one question of one attempt.
// (AttemptID, QuestionID) is unique.
type AttemptAnswer struct {
	AttemptID  int64     `json:"attempt_id"`
	QuestionID int64     `json:"question_id"`
	ChoiceID   int64     `json:"choice_id"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Submission is the immutable record of a scored attempt.
type Submission struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	QuizID      int64     `json:"quiz_id"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// UserRank is the derived leaderboard entry for one user. Rank is only as
// fresh as the user's last recomputation.
type UserRank struct {
	UserID     int64     `json:"user_id"`
	Rank       int       `json:"rank"`
	TotalScore int       `json:"total_score"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RankJob asks the leaderboard updater to recompute one user's rank.
type RankJob struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Raw is the payload as delivered by the queue, used to acknowledge it.
	Raw string `json:"-"`
}
