package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. A transaction holds the
// store mutex for its whole duration, which gives the same exclusion as a row
// lock (coarser), and restores a snapshot when fn fails.
type Store struct {
	mu    *sync.Mutex
	state *state
	inTx  bool
}

type state struct {
	quizzes      map[int64]domain.Quiz
	questions    map[int64][]domain.Question
	attempts     map[int64]domain.Attempt
	answers      map[int64]map[int64]domain.AttemptAnswer
	submissions  []domain.Submission
	ranks        map[int64]domain.UserRank
	nextAttempt  int64
	nextSubmitID int64
}

func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		state: &state{
			quizzes:   make(map[int64]domain.Quiz),
			questions: make(map[int64][]domain.Question),
			attempts:  make(map[int64]domain.Attempt),
			answers:   make(map[int64]map[int64]domain.AttemptAnswer),
			ranks:     make(map[int64]domain.UserRank),
		},
	}
}

func (s *state) clone() *state {
	c := &state{
		quizzes:      make(map[int64]domain.Quiz, len(s.quizzes)),
		questions:    make(map[int64][]domain.Question, len(s.questions)),
		attempts:     make(map[int64]domain.Attempt, len(s.attempts)),
		answers:      make(map[int64]map[int64]domain.AttemptAnswer, len(s.answers)),
		submissions:  append([]domain.Submission(nil), s.submissions...),
		ranks:        make(map[int64]domain.UserRank, len(s.ranks)),
		nextAttempt:  s.nextAttempt,
		nextSubmitID: s.nextSubmitID,
	}
	for k, v := range s.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, byQuestion := range s.answers {
		m := make(map[int64]domain.AttemptAnswer, len(byQuestion))
		for q, a := range byQuestion {
			m[q] = a
		}
		c.answers[k] = m
	}
	for k, v := range s.ranks {
		c.ranks[k] = v
	}
	return c
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// SeedQuiz stores quiz content as given. Content is owned by content
// management in production; this is for tests and demo mode.
func (s *Store) SeedQuiz(quiz domain.Quiz, questions []domain.Question) {
	defer s.lock()()
	questions = append([]domain.Question(nil), questions...)
	for i := range questions {
		questions[i].QuizID = quiz.ID
	}
	quiz.QuestionCount = len(questions)
	s.state.quizzes[quiz.ID] = quiz
	s.state.questions[quiz.ID] = questions
}

// AddQuestion appends a question to an existing quiz.
func (s *Store) AddQuestion(quizID int64, question domain.Question) {
	defer s.lock()()
	question.QuizID = quizID
	qs := append([]domain.Question(nil), s.state.questions[quizID]...)
	s.state.questions[quizID] = append(qs, question)
	quiz := s.state.quizzes[quizID]
	quiz.QuestionCount = len(s.state.questions[quizID])
	s.state.quizzes[quizID] = quiz
}

// AllSubmissions returns a copy of every stored submission.
func (s *Store) AllSubmissions() []domain.Submission {
	defer s.lock()()
	return append([]domain.Submission(nil), s.state.submissions...)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &Store{mu: s.mu, state: s.state, inTx: true}
	if err := fn(ctx, tx); err != nil {
		*s.state = *snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *Store) Quizzes() app.QuizRepository           { return quizRepo{s} }
func (s *Store) Questions() app.QuestionRepository     { return questionRepo{s} }
func (s *Store) Attempts() app.AttemptRepository       { return attemptRepo{s} }
func (s *Store) Submissions() app.SubmissionRepository { return submissionRepo{s} }
func (s *Store) Ranks() app.RankRepository             { return rankRepo{s} }

type quizRepo struct{ s *Store }

func (r quizRepo) GetQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	defer r.s.lock()()
	quiz, ok := r.s.state.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (r quizRepo) CountQuestions(_ context.Context, quizID int64) (int, error) {
	defer r.s.lock()()
	return len(r.s.state.questions[quizID]), nil
}

type questionRepo struct{ s *Store }

func (r questionRepo) ListForQuiz(_ context.Context, quizID int64) ([]domain.Question, error) {
	defer r.s.lock()()
	return append([]domain.Question(nil), r.s.state.questions[quizID]...), nil
}

func (r questionRepo) GetForQuiz(_ context.Context, quizID, questionID int64) (domain.Question, error) {
	defer r.s.lock()()
	for _, q := range r.s.state.questions[quizID] {
		if q.ID == questionID {
			return q, nil
		}
	}
	return domain.Question{}, fmt.Errorf("question %d: %w", questionID, domain.ErrNotFound)
}

type attemptRepo struct{ s *Store }

func (r attemptRepo) Create(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	defer r.s.lock()()
	r.s.state.nextAttempt++
	attempt.ID = r.s.state.nextAttempt
	r.s.state.attempts[attempt.ID] = attempt
	return attempt, nil
}

func (r attemptRepo) GetByID(_ context.Context, attemptID int64) (domain.Attempt, error) {
	defer r.s.lock()()
	attempt, ok := r.s.state.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (r attemptRepo) GetForUpdate(ctx context.Context, attemptID int64) (domain.Attempt, error) {
	return r.GetByID(ctx, attemptID)
}

func (r attemptRepo) Save(_ context.Context, attempt domain.Attempt) error {
	defer r.s.lock()()
	if _, ok := r.s.state.attempts[attempt.ID]; !ok {
		return domain.ErrAttemptNotFound
	}
	r.s.state.attempts[attempt.ID] = attempt
	return nil
}

func (r attemptRepo) UpsertAnswer(_ context.Context, answer domain.AttemptAnswer) error {
	defer r.s.lock()()
	byQuestion, ok := r.s.state.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[int64]domain.AttemptAnswer)
		r.s.state.answers[answer.AttemptID] = byQuestion
	}
	byQuestion[answer.QuestionID] = answer
	return nil
}

func (r attemptRepo) ListAnswers(_ context.Context, attemptID int64) ([]domain.AttemptAnswer, error) {
	defer r.s.lock()()
	if _, ok := r.s.state.attempts[attemptID]; !ok {
		return nil, domain.ErrAttemptNotFound
	}
	out := make([]domain.AttemptAnswer, 0, len(r.s.state.answers[attemptID]))
	for _, a := range r.s.state.answers[attemptID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(_ context.Context, submission domain.Submission) (domain.Submission, error) {
	defer r.s.lock()()
	r.s.state.nextSubmitID++
	submission.ID = r.s.state.nextSubmitID
	r.s.state.submissions = append(r.s.state.submissions, submission)
	return submission, nil
}

func (r submissionRepo) totals() map[int64]int {
	totals := make(map[int64]int)
	for _, sub := range r.s.state.submissions {
		totals[sub.UserID] += sub.Score
	}
	return totals
}

func (r submissionRepo) TotalScore(_ context.Context, userID int64) (int, error) {
	defer r.s.lock()()
	return r.totals()[userID], nil
}

func (r submissionRepo) CountUsersAbove(_ context.Context, score int) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, total := range r.totals() {
		if total > score {
			n++
		}
	}
	return n, nil
}

func (r submissionRepo) ListUserIDs(_ context.Context) ([]int64, error) {
	defer r.s.lock()()
	totals := r.totals()
	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type rankRepo struct{ s *Store }

func (r rankRepo) Upsert(_ context.Context, rank domain.UserRank) error {
	defer r.s.lock()()
	r.s.state.ranks[rank.UserID] = rank
	return nil
}

func (r rankRepo) Get(_ context.Context, userID int64) (domain.UserRank, error) {
	defer r.s.lock()()
	rank, ok := r.s.state.ranks[userID]
	if !ok {
		return domain.UserRank{}, fmt.Errorf("rank for user %d: %w", userID, domain.ErrNotFound)
	}
	return rank, nil
}

func (r rankRepo) Top(_ context.Context, limit int) ([]domain.UserRank, error) {
	defer r.s.lock()()
	out := make([]domain.UserRank, 0, len(r.s.state.ranks))
	for _, rank := range r.s.state.ranks {
		out = append(out, rank)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubmittedAttempts implements app.AnalyticsSource over the in-memory rows.
func (s *Store) SubmittedAttempts(_ context.Context, userID int64) ([]domain.SubmittedAttempt, error) {
	defer s.lock()()
	out := make([]domain.SubmittedAttempt, 0)
	for _, a := range s.state.attempts {
		if !a.Submitted() || (userID != 0 && a.UserID != userID) {
			continue
		}
		quiz := s.state.quizzes[a.QuizID]
		view := domain.SubmittedAttempt{
			AttemptID: a.ID,
			UserID:    a.UserID,
			QuizID:    a.QuizID,
			QuizTitle: quiz.Title,
			Category:  quiz.Category,
		}
		if a.Score != nil {
			view.Score = *a.Score
		}
		if a.TotalQuestions != nil {
			view.TotalQuestions = *a.TotalQuestions
		}
		if a.SubmittedAt != nil {
			view.SubmittedAt = *a.SubmittedAt
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptID < out[j].AttemptID })
	return out, nil
}

// ContentCounts implements app.AnalyticsSource.
func (s *Store) ContentCounts(_ context.Context) (domain.ContentCounts, error) {
	defer s.lock()()
	users := make(map[int64]struct{})
	for _, a := range s.state.attempts {
		users[a.UserID] = struct{}{}
	}
	questions := 0
	for _, qs := range s.state.questions {
		questions += len(qs)
	}
	return domain.ContentCounts{Users: len(users), Quizzes: len(s.state.quizzes), Questions: questions}, nil
}
