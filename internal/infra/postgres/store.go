package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects bun to Postgres through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements app.Store on bun. Outside InTx every call runs in its own
// implicit transaction; inside, all repositories share the bun.Tx.
type Store struct {
	db   *bun.DB
	conn bun.IDB
	inTx bool
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, conn: db}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: s.db, conn: tx, inTx: true})
	})
}

func (s *Store) Quizzes() app.QuizRepository           { return quizRepo{s.conn} }
func (s *Store) Questions() app.QuestionRepository     { return questionRepo{s.conn} }
func (s *Store) Attempts() app.AttemptRepository       { return attemptRepo{s.conn} }
func (s *Store) Submissions() app.SubmissionRepository { return submissionRepo{s.conn} }
func (s *Store) Ranks() app.RankRepository             { return rankRepo{s.conn} }

type quizRepo struct{ db bun.IDB }

func (r quizRepo) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var m quizModel
	err := r.db.NewSelect().Model(&m).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	count, err := r.CountQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return m.toDomain(count), nil
}

func (r quizRepo) CountQuestions(ctx context.Context, quizID int64) (int, error) {
	n, err := r.db.NewSelect().Model((*questionModel)(nil)).Where("quiz_id = ?", quizID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

type questionRepo struct{ db bun.IDB }

func (r questionRepo) ListForQuiz(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var rows []questionModel
	err := r.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(rows) == 0 {
		return []domain.Question{}, nil
	}

	ids := make([]int64, len(rows))
	for i, q := range rows {
		ids[i] = q.ID
	}
	choices, err := r.choicesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(rows))
	for _, q := range rows {
		out = append(out, q.toDomain(choices[q.ID]))
	}
	return out, nil
}

func (r questionRepo) GetForQuiz(ctx context.Context, quizID, questionID int64) (domain.Question, error) {
	var q questionModel
	err := r.db.NewSelect().Model(&q).
		Where("id = ?", questionID).
		Where("quiz_id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, fmt.Errorf("question %d: %w", questionID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	choices, err := r.choicesFor(ctx, []int64{q.ID})
	if err != nil {
		return domain.Question{}, err
	}
	return q.toDomain(choices[q.ID]), nil
}

func (r questionRepo) choicesFor(ctx context.Context, questionIDs []int64) (map[int64][]domain.Choice, error) {
	var rows []choiceModel
	err := r.db.NewSelect().Model(&rows).
		Where("question_id IN (?)", bun.In(questionIDs)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	out := make(map[int64][]domain.Choice, len(questionIDs))
	for _, c := range rows {
		out[c.QuestionID] = append(out[c.QuestionID], domain.Choice{ID: c.ID, Text: c.Text, IsCorrect: c.IsCorrect})
	}
	return out, nil
}

type attemptRepo struct{ db bun.IDB }

func (r attemptRepo) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	m := attemptFromDomain(attempt)
	if _, err := r.db.NewInsert().Model(&m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return m.toDomain(), nil
}

func (r attemptRepo) GetByID(ctx context.Context, attemptID int64) (domain.Attempt, error) {
	return r.get(ctx, attemptID, false)
}

// GetForUpdate issues SELECT ... FOR UPDATE; concurrent submitters of the same
// attempt queue behind the lock until the holder commits.
func (r attemptRepo) GetForUpdate(ctx context.Context, attemptID int64) (domain.Attempt, error) {
	return r.get(ctx, attemptID, true)
}

func (r attemptRepo) get(ctx context.Context, attemptID int64, lock bool) (domain.Attempt, error) {
	var m attemptModel
	q := r.db.NewSelect().Model(&m).Where("id = ?", attemptID)
	if lock {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return m.toDomain(), nil
}

func (r attemptRepo) Save(ctx context.Context, attempt domain.Attempt) error {
	m := attemptFromDomain(attempt)
	res, err := r.db.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (r attemptRepo) UpsertAnswer(ctx context.Context, answer domain.AttemptAnswer) error {
	m := answerModel{
		AttemptID:  answer.AttemptID,
		QuestionID: answer.QuestionID,
		ChoiceID:   answer.ChoiceID,
		IsCorrect:  answer.IsCorrect,
		AnsweredAt: answer.AnsweredAt,
	}
	_, err := r.db.NewInsert().Model(&m).
		On("CONFLICT (attempt_id, question_id) DO UPDATE").
		Set("choice_id = EXCLUDED.choice_id").
		Set("is_correct = EXCLUDED.is_correct").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (r attemptRepo) ListAnswers(ctx context.Context, attemptID int64) ([]domain.AttemptAnswer, error) {
	var rows []answerModel
	err := r.db.NewSelect().Model(&rows).
		Where("aa.attempt_id = ?", attemptID).
		Order("aa.question_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.AttemptAnswer, 0, len(rows))
	for _, a := range rows {
		out = append(out, domain.AttemptAnswer{
			AttemptID:  a.AttemptID,
			QuestionID: a.QuestionID,
			ChoiceID:   a.ChoiceID,
			IsCorrect:  a.IsCorrect,
			AnsweredAt: a.AnsweredAt,
		})
	}
	return out, nil
}

type submissionRepo struct{ db bun.IDB }

func (r submissionRepo) Create(ctx context.Context, submission domain.Submission) (domain.Submission, error) {
	m := submissionModel{
		UserID:      submission.UserID,
		QuizID:      submission.QuizID,
		Score:       submission.Score,
		SubmittedAt: submission.SubmittedAt,
	}
	if _, err := r.db.NewInsert().Model(&m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
		return domain.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	submission.ID = m.ID
	return submission, nil
}

func (r submissionRepo) TotalScore(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.NewSelect().Model((*submissionModel)(nil)).
		ColumnExpr("COALESCE(SUM(score), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("total score: %w", err)
	}
	return total, nil
}

func (r submissionRepo) CountUsersAbove(ctx context.Context, score int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT count(*) FROM (
    SELECT user_id FROM quiz_submissions GROUP BY user_id HAVING SUM(score) > ?
) AS above`, score).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users above: %w", err)
	}
	return n, nil
}

func (r submissionRepo) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().Model((*submissionModel)(nil)).
		ColumnExpr("DISTINCT user_id").
		Order("user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

type rankRepo struct{ db bun.IDB }

func (r rankRepo) Upsert(ctx context.Context, rank domain.UserRank) error {
	m := rankModel{
		UserID:     rank.UserID,
		Rank:       rank.Rank,
		TotalScore: rank.TotalScore,
		UpdatedAt:  rank.UpdatedAt,
	}
	_, err := r.db.NewInsert().Model(&m).
		On("CONFLICT (user_id) DO UPDATE").
		Set("rank = EXCLUDED.rank").
		Set("total_score = EXCLUDED.total_score").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert rank: %w", err)
	}
	return nil
}

func (r rankRepo) Get(ctx context.Context, userID int64) (domain.UserRank, error) {
	var m rankModel
	err := r.db.NewSelect().Model(&m).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserRank{}, fmt.Errorf("rank for user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.UserRank{}, fmt.Errorf("get rank: %w", err)
	}
	return m.toDomain(), nil
}

func (r rankRepo) Top(ctx context.Context, limit int) ([]domain.UserRank, error) {
	var rows []rankModel
	q := r.db.NewSelect().Model(&rows).Order("total_score DESC", "user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("top ranks: %w", err)
	}
	out := make([]domain.UserRank, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}
