package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/uptrace/bun"
)

// SeedQuiz inserts a quiz with its questions and choices in one transaction
// and returns them with database ids. Quiz content is owned elsewhere in
// production; this backs demo data and integration tests.
func SeedQuiz(ctx context.Context, db *bun.DB, quiz domain.Quiz, questions []domain.Question) (domain.Quiz, []domain.Question, error) {
	out := make([]domain.Question, 0, len(questions))
	err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		qm := quizModel{Title: quiz.Title, Category: quiz.Category}
		if _, err := tx.NewInsert().Model(&qm).ExcludeColumn("id", "created_at").Returning("id, created_at").Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		quiz.ID = qm.ID
		quiz.CreatedAt = qm.CreatedAt

		for pos, q := range questions {
			m := questionModel{
				QuizID:        qm.ID,
				Position:      pos,
				Text:          q.Text,
				Image:         q.Image,
				Explanation:   q.Explanation,
				AIExplanation: q.AIExplanation,
			}
			if _, err := tx.NewInsert().Model(&m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
			choices := make([]domain.Choice, 0, len(q.Choices))
			for _, c := range q.Choices {
				cm := choiceModel{QuestionID: m.ID, Text: c.Text, IsCorrect: c.IsCorrect}
				if _, err := tx.NewInsert().Model(&cm).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
					return fmt.Errorf("insert choice: %w", err)
				}
				c.ID = cm.ID
				choices = append(choices, c)
			}
			out = append(out, m.toDomain(choices))
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	quiz.QuestionCount = len(out)
	return quiz, out, nil
}
