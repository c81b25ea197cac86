package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedQuiz(sampleQuiz(), sampleQuestions())

	attempt, err := store.Attempts().Create(ctx, domain.Attempt{UserID: 1, QuizID: 1, Status: domain.StatusInProgress})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	boom := errors.New("boom")
	err = store.InTx(ctx, func(ctx context.Context, tx app.Store) error {
		attempt.Status = domain.StatusSubmitted
		if err := tx.Attempts().Save(ctx, attempt); err != nil {
			return err
		}
		if _, err := tx.Submissions().Create(ctx, domain.Submission{UserID: 1, QuizID: 1, Score: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := store.Attempts().GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("expected rollback to keep IN_PROGRESS, got %s", got.Status)
	}
	if n := len(store.AllSubmissions()); n != 0 {
		t.Fatalf("expected no submissions after rollback, got %d", n)
	}
}

func TestUpsertAnswerKeepsOneRowPerQuestion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedQuiz(sampleQuiz(), sampleQuestions())
	attempt, _ := store.Attempts().Create(ctx, domain.Attempt{UserID: 1, QuizID: 1, Status: domain.StatusInProgress})

	for _, choiceID := range []int64{11, 11, 12} {
		answer := domain.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, ChoiceID: choiceID, IsCorrect: choiceID == 12}
		if err := store.Attempts().UpsertAnswer(ctx, answer); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	answers, err := store.Attempts().ListAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 || answers[0].ChoiceID != 12 {
		t.Fatalf("expected single answer with choice 12, got %+v", answers)
	}
	if !answers[0].IsCorrect {
		t.Fatalf("expected the last write's correctness, got %+v", answers[0])
	}
}

func TestListAnswersKeepsCorrectnessFromWriteTime(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedQuiz(sampleQuiz(), sampleQuestions())
	attempt, _ := store.Attempts().Create(ctx, domain.Attempt{UserID: 1, QuizID: 1, Status: domain.StatusInProgress})

	if err := store.Attempts().UpsertAnswer(ctx, domain.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, ChoiceID: 12, IsCorrect: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Content is edited afterwards: choice 11 becomes the correct one.
	edited := sampleQuestions()
	edited[0].Choices[0].IsCorrect = true
	edited[0].Choices[1].IsCorrect = false
	store.SeedQuiz(sampleQuiz(), edited)

	answers, err := store.Attempts().ListAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 || !answers[0].IsCorrect {
		t.Fatalf("expected correctness recorded at write time, got %+v", answers)
	}
}

func TestRankAggregates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, s := range []domain.Submission{
		{UserID: 1, Score: 60}, {UserID: 1, Score: 40},
		{UserID: 2, Score: 80},
		{UserID: 3, Score: 90},
	} {
		if _, err := store.Submissions().Create(ctx, s); err != nil {
			t.Fatalf("create submission: %v", err)
		}
	}

	total, _ := store.Submissions().TotalScore(ctx, 1)
	if total != 100 {
		t.Fatalf("expected total 100, got %d", total)
	}
	above, _ := store.Submissions().CountUsersAbove(ctx, 80)
	if above != 2 {
		t.Fatalf("expected 2 users above 80, got %d", above)
	}
	ids, _ := store.Submissions().ListUserIDs(ctx)
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected user ids %v", ids)
	}

	_ = store.Ranks().Upsert(ctx, domain.UserRank{UserID: 2, Rank: 2, TotalScore: 80})
	_ = store.Ranks().Upsert(ctx, domain.UserRank{UserID: 1, Rank: 1, TotalScore: 100})
	top, _ := store.Ranks().Top(ctx, 1)
	if len(top) != 1 || top[0].UserID != 1 {
		t.Fatalf("expected user 1 on top, got %+v", top)
	}
	if _, err := store.Ranks().Get(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown rank, got %v", err)
	}
}

func TestSubmittedAttemptsFiltersByUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedQuiz(sampleQuiz(), sampleQuestions())

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	score, total := 1, 2
	for _, a := range []domain.Attempt{
		{UserID: 1, QuizID: 1, Status: domain.StatusSubmitted, SubmittedAt: &now, Score: &score, TotalQuestions: &total},
		{UserID: 2, QuizID: 1, Status: domain.StatusSubmitted, SubmittedAt: &now, Score: &score, TotalQuestions: &total},
		{UserID: 1, QuizID: 1, Status: domain.StatusInProgress},
	} {
		if _, err := store.Attempts().Create(ctx, a); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
	}

	mine, _ := store.SubmittedAttempts(ctx, 1)
	if len(mine) != 1 || mine[0].QuizTitle != "Biology 1" || mine[0].Category != "Biology" {
		t.Fatalf("unexpected attempts %+v", mine)
	}
	all, _ := store.SubmittedAttempts(ctx, 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 submitted attempts, got %d", len(all))
	}
	counts, _ := store.ContentCounts(ctx)
	if counts.Users != 2 || counts.Quizzes != 1 || counts.Questions != 2 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{ID: 1, Title: "Biology 1", Category: "Biology"}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:   1,
			Text: "Powerhouse of the cell?",
			Choices: []domain.Choice{
				{ID: 11, Text: "Nucleus"},
				{ID: 12, Text: "Mitochondria", IsCorrect: true},
			},
		},
		{
			ID:   2,
			Text: "Basic unit of life?",
			Choices: []domain.Choice{
				{ID: 21, Text: "Cell", IsCorrect: true},
				{ID: 22, Text: "Atom"},
			},
		},
	}
}
