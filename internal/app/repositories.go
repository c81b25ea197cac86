package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// QuizRepository reads quiz content owned by content management.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	CountQuestions(ctx context.Context, quizID int64) (int, error)
}

// QuestionRepository reads questions with their choices, in quiz order.
type QuestionRepository interface {
	ListForQuiz(ctx context.Context, quizID int64) ([]domain.Question, error)
	GetForQuiz(ctx context.Context, quizID, questionID int64) (domain.Question, error)
}

// AttemptRepository owns attempts and their answers.
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	GetByID(ctx context.Context, attemptID int64) (domain.Attempt, error)
	// GetForUpdate takes an exclusive row lock held until the surrounding
	// transaction ends. Only valid inside Store.InTx.
	GetForUpdate(ctx context.Context, attemptID int64) (domain.Attempt, error)
	Save(ctx context.Context, attempt domain.Attempt) error
	// UpsertAnswer inserts or replaces the answer keyed by (attempt, question).
	UpsertAnswer(ctx context.Context, answer domain.AttemptAnswer) error
	// ListAnswers returns the answers with IsCorrect taken from the chosen
	// choice as it is stored now.
	ListAnswers(ctx context.Context, attemptID int64) ([]domain.AttemptAnswer, error)
}

// SubmissionRepository appends submissions and aggregates them for ranking.
type SubmissionRepository interface {
	Create(ctx context.Context, submission domain.Submission) (domain.Submission, error)
	TotalScore(ctx context.Context, userID int64) (int, error)
	// CountUsersAbove counts distinct users whose summed score is strictly greater than score.
	CountUsersAbove(ctx context.Context, score int) (int, error)
	// ListUserIDs returns every user that has at least one submission.
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// RankRepository stores the derived UserRank rows.
type RankRepository interface {
	Upsert(ctx context.Context, rank domain.UserRank) error
	Get(ctx context.Context, userID int64) (domain.UserRank, error)
	Top(ctx context.Context, limit int) ([]domain.UserRank, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Quizzes() QuizRepository
	Questions() QuestionRepository
	Attempts() AttemptRepository
	Submissions() SubmissionRepository
	Ranks() RankRepository
	// InTx runs fn in a transaction. tx is bound to it; fn must use tx, not the
	// outer store. A non-nil error rolls back. InTx returns only after commit.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// RankJobQueue is the work queue used to schedule leaderboard recomputation.
// Delivery is at-least-once: a job that is dequeued but never acked is redelivered.
type RankJobQueue interface {
	Enqueue(ctx context.Context, job domain.RankJob) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (domain.RankJob, error)
	Ack(ctx context.Context, job domain.RankJob) error
}

// Cache is a TTL key/value store for JSON-serialisable projections.
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// AnalyticsSource is the read path over persisted attempts. userID 0 means all users.
type AnalyticsSource interface {
	SubmittedAttempts(ctx context.Context, userID int64) ([]domain.SubmittedAttempt, error)
	ContentCounts(ctx context.Context) (domain.ContentCounts, error)
}
