package domain

import "time"

// SubmitResult is returned to the caller of submit.
type SubmitResult struct {
	AttemptID      int64     `json:"attempt_id"`
	QuizID         int64     `json:"quiz_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Evaluation is the score calculator output.
type Evaluation struct {
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}

type AttemptResults struct {
	AttemptID        int64     `json:"attempt_id"`
	QuizID           int64     `json:"quiz_id"`
	QuizTitle        string    `json:"quiz_title"`
	Category         string    `json:"category"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	Accuracy         float64   `json:"accuracy"`
	SubmittedAt      time.Time `json:"submitted_at"`
	TimeTakenSeconds *int      `json:"time_taken_seconds"`
}

type ReviewItem struct {
	ID                int64    `json:"id"`
	Text              string   `json:"text"`
	Image             string   `json:"image,omitempty"`
	Choices           []Choice `json:"choices"`
	SelectedChoiceID  *int64   `json:"selected_choice_id"`
	CorrectChoiceID   *int64   `json:"correct_choice_id"`
	Explanation       string   `json:"explanation"`
	ManualExplanation string   `json:"manual_explanation,omitempty"`
	AIExplanation     string   `json:"ai_explanation,omitempty"`
}

type AttemptAnalysis struct {
	AttemptID      int64   `json:"attempt_id"`
	QuizID         int64   `json:"quiz_id"`
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	TotalQuestions int     `json:"total_questions"`
	Accuracy       float64 `json:"accuracy"`
}

// SubmittedAttempt is the analytics read model: one submitted attempt joined
// with its quiz.
type SubmittedAttempt struct {
	AttemptID      int64     `json:"attempt_id"`
	UserID         int64     `json:"user_id"`
	QuizID         int64     `json:"quiz_id"`
	QuizTitle      string    `json:"quiz_title"`
	Category       string    `json:"category"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// ContentCounts feeds the admin summary.
type ContentCounts struct {
	Users     int `json:"users"`
	Quizzes   int `json:"quizzes"`
	Questions int `json:"questions"`
}

type LastAttempt struct {
	AttemptID      int64     `json:"attempt_id"`
	QuizID         int64     `json:"quiz_id"`
	QuizTitle      string    `json:"quiz_title"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type DashboardSummary struct {
	TotalAttempts  int          `json:"total_attempts"`
	TotalQuestions int          `json:"total_questions"`
	TotalScore     int          `json:"total_score"`
	Accuracy       float64      `json:"accuracy"`
	LastAttempt    *LastAttempt `json:"last_attempt"`
}

type SubjectPerformance struct {
	Subject  string  `json:"subject"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

type TrendPoint struct {
	Date     string  `json:"date"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Attempts int     `json:"attempts,omitempty"`
	Accuracy float64 `json:"accuracy"`
}

type AdminSummary struct {
	TotalUsers             int     `json:"total_users"`
	TotalQuizzes           int     `json:"total_quizzes"`
	TotalQuestions         int     `json:"total_questions"`
	TotalAttempts          int     `json:"total_attempts"`
	TotalScore             int     `json:"total_score"`
	TotalQuestionsAnswered int     `json:"total_questions_answered"`
	AverageScore           float64 `json:"average_score"`
}
