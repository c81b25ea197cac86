package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/scoring"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AttemptManager contains the attempt use cases: start, answer, submit and the
// read-only projections over a submitted attempt.
type AttemptManager struct {
	store Store
	queue RankJobQueue
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewAttemptManager(store Store, queue RankJobQueue, log logrus.FieldLogger) *AttemptManager {
	return NewAttemptManagerWithClock(store, queue, log, time.Now)
}

// NewAttemptManagerWithClock allows deterministic timestamps in tests.
func NewAttemptManagerWithClock(store Store, queue RankJobQueue, log logrus.FieldLogger, now func() time.Time) *AttemptManager {
	return &AttemptManager{store: store, queue: queue, log: log, now: now}
}

// StartAttempt creates an in-progress attempt sized to the quiz's current
// question count. Several open attempts per user and quiz are allowed.
func (m *AttemptManager) StartAttempt(ctx context.Context, user domain.User, quizID int64) (domain.Attempt, error) {
	quiz, err := m.store.Quizzes().GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	total, err := m.store.Quizzes().CountQuestions(ctx, quiz.ID)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt, err := m.store.Attempts().Create(ctx, domain.Attempt{
		UserID:         user.ID,
		QuizID:         quiz.ID,
		Status:         domain.StatusInProgress,
		StartedAt:      m.now().UTC(),
		TotalQuestions: &total,
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	m.log.WithFields(logrus.Fields{"attempt_id": attempt.ID, "user_id": user.ID, "quiz_id": quiz.ID}).Debug("attempt started")
	return attempt, nil
}

// GetAttemptForUser is the authorization gate every other operation goes through.
func (m *AttemptManager) GetAttemptForUser(ctx context.Context, attemptID int64, user domain.User) (domain.Attempt, error) {
	attempt, err := m.store.Attempts().GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, err
	}
	if !user.IsAdmin && attempt.UserID != user.ID {
		return domain.Attempt{}, domain.ErrNotOwner
	}
	return attempt, nil
}

// ListQuestions returns the attempt's quiz questions with choices.
func (m *AttemptManager) ListQuestions(ctx context.Context, attempt domain.Attempt) ([]domain.Question, error) {
	return m.store.Questions().ListForQuiz(ctx, attempt.QuizID)
}

// SaveAnswer records (or replaces) the choice for one question. Writes after
// submission are rejected with ErrAlreadySubmitted; the status check runs under
// the attempt lock so it cannot interleave with a concurrent submit.
func (m *AttemptManager) SaveAnswer(ctx context.Context, attempt domain.Attempt, questionID, choiceID int64) error {
	question, err := m.store.Questions().GetForQuiz(ctx, attempt.QuizID, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrQuestionNotInQuiz
		}
		return err
	}
	choice, ok := question.Choice(choiceID)
	if !ok {
		return domain.ErrChoiceNotInQuestion
	}

	return m.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		locked, err := tx.Attempts().GetForUpdate(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if locked.Submitted() {
			return domain.ErrAlreadySubmitted
		}
		return tx.Attempts().UpsertAnswer(ctx, domain.AttemptAnswer{
			AttemptID:  locked.ID,
			QuestionID: question.ID,
			ChoiceID:   choice.ID,
			IsCorrect:  choice.IsCorrect,
			AnsweredAt: m.now().UTC(),
		})
	})
}

// Submit scores the attempt from one consistent snapshot of its answers and
// freezes it. Exactly one concurrent caller wins; the others get
// ErrAlreadySubmitted. The rank job is scheduled only after commit.
func (m *AttemptManager) Submit(ctx context.Context, attemptID int64, user domain.User, timeTakenSeconds string) (domain.SubmitResult, error) {
	attempt, err := m.GetAttemptForUser(ctx, attemptID, user)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if attempt.Submitted() {
		return domain.SubmitResult{}, domain.ErrAlreadySubmitted
	}

	var submitted domain.Attempt
	err = m.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		locked, err := tx.Attempts().GetForUpdate(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if locked.Submitted() {
			return domain.ErrAlreadySubmitted
		}

		questions, err := tx.Questions().ListForQuiz(ctx, locked.QuizID)
		if err != nil {
			return err
		}
		if err := scoring.ValidateQuizIntegrity(questions); err != nil {
			return err
		}

		answers, err := tx.Attempts().ListAnswers(ctx, locked.ID)
		if err != nil {
			return err
		}
		total := locked.TotalQuestions
		if total == nil {
			// Rows created before total_questions was recorded at start.
			n, err := tx.Quizzes().CountQuestions(ctx, locked.QuizID)
			if err != nil {
				return err
			}
			total = &n
		}
		eval, err := scoring.Evaluate(answers, total)
		if err != nil {
			return err
		}

		now := m.now().UTC()
		score := eval.Correct
		locked.Status = domain.StatusSubmitted
		locked.SubmittedAt = &now
		locked.Score = &score
		locked.TotalQuestions = total
		if secs, ok := parseTimeTaken(timeTakenSeconds); ok {
			locked.TimeTakenSeconds = &secs
		}

		if err := tx.Attempts().Save(ctx, locked); err != nil {
			return err
		}
		if _, err := tx.Submissions().Create(ctx, domain.Submission{
			UserID:      locked.UserID,
			QuizID:      locked.QuizID,
			Score:       score,
			SubmittedAt: now,
		}); err != nil {
			return err
		}
		submitted = locked
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	m.scheduleRankUpdate(context.WithoutCancel(ctx), submitted.UserID)

	return domain.SubmitResult{
		AttemptID:      submitted.ID,
		QuizID:         submitted.QuizID,
		Score:          *submitted.Score,
		TotalQuestions: *submitted.TotalQuestions,
		SubmittedAt:    *submitted.SubmittedAt,
	}, nil
}

// scheduleRankUpdate never fails the submit: the attempt is already committed
// and a stale rank is corrected by the user's next submission or a sweep.
func (m *AttemptManager) scheduleRankUpdate(ctx context.Context, userID int64) {
	job := NewRankJob(userID, m.now())
	if err := m.queue.Enqueue(ctx, job); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "job_id": job.ID}).Error("enqueue rank job")
	}
}

// GetResults summarises a submitted attempt.
func (m *AttemptManager) GetResults(ctx context.Context, attempt domain.Attempt) (domain.AttemptResults, error) {
	if !attempt.Submitted() {
		return domain.AttemptResults{}, domain.ErrNotSubmitted
	}
	quiz, err := m.store.Quizzes().GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.AttemptResults{}, err
	}
	total, err := m.totalQuestions(ctx, attempt)
	if err != nil {
		return domain.AttemptResults{}, err
	}
	score := derefInt(attempt.Score)
	results := domain.AttemptResults{
		AttemptID:        attempt.ID,
		QuizID:           attempt.QuizID,
		QuizTitle:        quiz.Title,
		Category:         quiz.Category,
		Score:            score,
		TotalQuestions:   total,
		Accuracy:         scoring.Accuracy(score, total),
		TimeTakenSeconds: attempt.TimeTakenSeconds,
	}
	if attempt.SubmittedAt != nil {
		results.SubmittedAt = *attempt.SubmittedAt
	}
	return results, nil
}

// GetReview pairs every question with the recorded and the correct choice.
func (m *AttemptManager) GetReview(ctx context.Context, attempt domain.Attempt) ([]domain.ReviewItem, error) {
	if !attempt.Submitted() {
		return nil, domain.ErrNotSubmitted
	}
	questions, err := m.store.Questions().ListForQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := m.store.Attempts().ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	selected := make(map[int64]int64, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.ChoiceID
	}

	items := make([]domain.ReviewItem, 0, len(questions))
	for _, q := range questions {
		item := domain.ReviewItem{
			ID:                q.ID,
			Text:              q.Text,
			Image:             q.Image,
			Choices:           q.Choices,
			Explanation:       q.BestAvailableExplanation(),
			ManualExplanation: q.Explanation,
			AIExplanation:     q.AIExplanation,
		}
		if choiceID, ok := selected[q.ID]; ok {
			item.SelectedChoiceID = &choiceID
		}
		if correct := q.CorrectChoiceID(); correct != 0 {
			item.CorrectChoiceID = &correct
		}
		items = append(items, item)
	}
	return items, nil
}

// GetAnalysis re-evaluates the stored answers against the frozen total.
func (m *AttemptManager) GetAnalysis(ctx context.Context, attempt domain.Attempt) (domain.AttemptAnalysis, error) {
	if !attempt.Submitted() {
		return domain.AttemptAnalysis{}, domain.ErrNotSubmitted
	}
	answers, err := m.store.Attempts().ListAnswers(ctx, attempt.ID)
	if err != nil {
		return domain.AttemptAnalysis{}, err
	}
	total, err := m.totalQuestions(ctx, attempt)
	if err != nil {
		return domain.AttemptAnalysis{}, err
	}
	eval, err := scoring.Evaluate(answers, &total)
	if err != nil {
		return domain.AttemptAnalysis{}, err
	}
	return domain.AttemptAnalysis{
		AttemptID:      attempt.ID,
		QuizID:         attempt.QuizID,
		Correct:        eval.Correct,
		Incorrect:      eval.Incorrect,
		TotalQuestions: total,
		Accuracy:       eval.Accuracy,
	}, nil
}

func (m *AttemptManager) totalQuestions(ctx context.Context, attempt domain.Attempt) (int, error) {
	if attempt.TotalQuestions != nil {
		return *attempt.TotalQuestions, nil
	}
	return m.store.Quizzes().CountQuestions(ctx, attempt.QuizID)
}

// NewRankJob builds a leaderboard job for userID.
func NewRankJob(userID int64, now time.Time) domain.RankJob {
	return domain.RankJob{ID: uuid.NewString(), UserID: userID, EnqueuedAt: now.UTC()}
}

// parseTimeTaken accepts a non-negative integer, optionally JSON-quoted, that
// fits the INT column.
func parseTimeTaken(raw string) (int, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || secs < 0 {
		return 0, false
	}
	return int(secs), true
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
