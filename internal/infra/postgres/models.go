package postgres

import (
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/uptrace/bun"
)

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull"`
	Category  string    `bun:"category,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID            int64  `bun:"id,pk,autoincrement"`
	QuizID        int64  `bun:"quiz_id,notnull"`
	Position      int    `bun:"position,notnull"`
	Text          string `bun:"text,notnull"`
	Image         string `bun:"image,notnull"`
	Explanation   string `bun:"explanation,notnull"`
	AIExplanation string `bun:"ai_explanation,notnull"`
}

type choiceModel struct {
	bun.BaseModel `bun:"table:choices,alias:ch"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
}

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:at"`

	ID               int64      `bun:"id,pk,autoincrement"`
	UserID           int64      `bun:"user_id,notnull"`
	QuizID           int64      `bun:"quiz_id,notnull"`
	Status           string     `bun:"status,notnull"`
	StartedAt        time.Time  `bun:"started_at,notnull"`
	SubmittedAt      *time.Time `bun:"submitted_at"`
	Score            *int       `bun:"score"`
	TotalQuestions   *int       `bun:"total_questions"`
	TimeTakenSeconds *int       `bun:"time_taken_seconds"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:attempt_answers,alias:aa"`

	AttemptID  int64     `bun:"attempt_id,notnull"`
	QuestionID int64     `bun:"question_id,notnull"`
	ChoiceID   int64     `bun:"choice_id,notnull"`
	// IsCorrect is copied from the choice when the answer is written.
	IsCorrect  bool      `bun:"is_correct,notnull"`
	AnsweredAt time.Time `bun:"answered_at,notnull"`
}

type submissionModel struct {
	bun.BaseModel `bun:"table:quiz_submissions,alias:qs"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	QuizID      int64     `bun:"quiz_id,notnull"`
	Score       int       `bun:"score,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

type rankModel struct {
	bun.BaseModel `bun:"table:user_ranks,alias:ur"`

	UserID     int64     `bun:"user_id,pk"`
	Rank       int       `bun:"rank,notnull"`
	TotalScore int       `bun:"total_score,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (m quizModel) toDomain(questionCount int) domain.Quiz {
	return domain.Quiz{
		ID:            m.ID,
		Title:         m.Title,
		Category:      m.Category,
		QuestionCount: questionCount,
		CreatedAt:     m.CreatedAt,
	}
}

func (m questionModel) toDomain(choices []domain.Choice) domain.Question {
	return domain.Question{
		ID:            m.ID,
		QuizID:        m.QuizID,
		Text:          m.Text,
		Image:         m.Image,
		Explanation:   m.Explanation,
		AIExplanation: m.AIExplanation,
		Choices:       choices,
	}
}

func attemptFromDomain(a domain.Attempt) attemptModel {
	return attemptModel{
		ID:               a.ID,
		UserID:           a.UserID,
		QuizID:           a.QuizID,
		Status:           string(a.Status),
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
		Score:            a.Score,
		TotalQuestions:   a.TotalQuestions,
		TimeTakenSeconds: a.TimeTakenSeconds,
	}
}

func (m attemptModel) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:               m.ID,
		UserID:           m.UserID,
		QuizID:           m.QuizID,
		Status:           domain.AttemptStatus(m.Status),
		StartedAt:        m.StartedAt,
		SubmittedAt:      m.SubmittedAt,
		Score:            m.Score,
		TotalQuestions:   m.TotalQuestions,
		TimeTakenSeconds: m.TimeTakenSeconds,
	}
}

func (m rankModel) toDomain() domain.UserRank {
	return domain.UserRank{
		UserID:     m.UserID,
		Rank:       m.Rank,
		TotalScore: m.TotalScore,
		UpdatedAt:  m.UpdatedAt,
	}
}
