package postgres

import (
	"context"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// AnalyticsSource reads submitted attempts straight from Postgres over a pgx
// pool, keeping analytics scans off the bun connection used by submits.
type AnalyticsSource struct {
	pool *pgxpool.Pool
}

func NewAnalyticsSource(pool *pgxpool.Pool) *AnalyticsSource {
	return &AnalyticsSource{pool: pool}
}

const submittedAttemptsSQL = `
SELECT a.id, a.user_id, a.quiz_id, q.title, q.category,
       COALESCE(a.score, 0), COALESCE(a.total_questions, 0), a.submitted_at
FROM quiz_attempts a
JOIN quizzes q ON q.id = a.quiz_id
WHERE a.status = 'SUBMITTED'
  AND ($1::bigint = 0 OR a.user_id = $1::bigint)
ORDER BY a.id`

func (s *AnalyticsSource) SubmittedAttempts(ctx context.Context, userID int64) ([]domain.SubmittedAttempt, error) {
	rows, err := s.pool.Query(ctx, submittedAttemptsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("query submitted attempts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SubmittedAttempt, 0)
	for rows.Next() {
		var a domain.SubmittedAttempt
		if err := rows.Scan(&a.AttemptID, &a.UserID, &a.QuizID, &a.QuizTitle, &a.Category,
			&a.Score, &a.TotalQuestions, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submitted attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submitted attempts: %w", err)
	}
	return out, nil
}

func (s *AnalyticsSource) ContentCounts(ctx context.Context) (domain.ContentCounts, error) {
	var c domain.ContentCounts
	err := s.pool.QueryRow(ctx, `
SELECT (SELECT count(DISTINCT user_id) FROM quiz_attempts),
       (SELECT count(*) FROM quizzes),
       (SELECT count(*) FROM questions)`).Scan(&c.Users, &c.Quizzes, &c.Questions)
	if err != nil {
		return domain.ContentCounts{}, fmt.Errorf("content counts: %w", err)
	}
	return c, nil
}
