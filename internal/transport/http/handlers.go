package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler exposes the attempt, analytics and leaderboard use cases over HTTP.
type Handler struct {
	attempts    *app.AttemptManager
	analytics   *app.AnalyticsService
	leaderboard *app.LeaderboardUpdater
	feed        *app.RankFeed
	validate    *validator.Validate
	upgrader    websocket.Upgrader
	log         logrus.FieldLogger
}

func NewHandler(attempts *app.AttemptManager, analytics *app.AnalyticsService, leaderboard *app.LeaderboardUpdater, feed *app.RankFeed, log logrus.FieldLogger) *Handler {
	return &Handler{
		attempts:    attempts,
		analytics:   analytics,
		leaderboard: leaderboard,
		feed:        feed,
		validate:    validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/quizzes/{quizID}/attempts", h.startAttempt)
		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", h.getAttempt)
			r.Get("/questions", h.listQuestions)
			r.Put("/answers", h.saveAnswer)
			r.Post("/submit", h.submit)
			r.Get("/results", h.results)
			r.Get("/review", h.review)
			r.Get("/analysis", h.analysis)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", h.dashboard)
			r.Get("/recent", h.recent)
			r.Get("/subjects", h.subjects)
			r.Get("/trend", h.trend)
		})
		r.Route("/admin/analytics", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/summary", h.adminSummary)
			r.Get("/subjects", h.adminSubjects)
			r.Get("/trend", h.adminTrend)
		})

		r.Get("/leaderboard", h.top)
		r.Get("/ws/ranks", h.ServeRanks)
	})
	return r
}

type saveAnswerRequest struct {
	QuestionID int64 `json:"question_id" validate:"required,gt=0"`
	ChoiceID   int64 `json:"choice_id" validate:"required,gt=0"`
}

type openChoice struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type openQuestion struct {
	ID      int64        `json:"id"`
	QuizID  int64        `json:"quiz_id"`
	Text    string       `json:"text"`
	Image   string       `json:"image,omitempty"`
	Choices []openChoice `json:"choices"`
}

type submitRequest struct {
	// TimeTakenSeconds is accepted as a number or a numeric string.
	TimeTakenSeconds json.RawMessage `json:"time_taken_seconds"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	attempt, err := h.attempts.StartAttempt(r.Context(), userFrom(r), quizID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// attemptFor resolves the path attempt through the ownership gate.
func (h *Handler) attemptFor(w http.ResponseWriter, r *http.Request) (domain.Attempt, bool) {
	attemptID, err := pathID(r, "attemptID")
	if err != nil {
		h.respondError(w, r, err)
		return domain.Attempt{}, false
	}
	attempt, err := h.attempts.GetAttemptForUser(r.Context(), attemptID, userFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return domain.Attempt{}, false
	}
	return attempt, true
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	questions, err := h.attempts.ListQuestions(r.Context(), attempt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if attempt.Submitted() {
		writeJSON(w, http.StatusOK, questions)
		return
	}
	// Correctness stays hidden while the attempt is open.
	out := make([]openQuestion, 0, len(questions))
	for _, q := range questions {
		view := openQuestion{ID: q.ID, QuizID: q.QuizID, Text: q.Text, Image: q.Image, Choices: make([]openChoice, 0, len(q.Choices))}
		for _, c := range q.Choices {
			view.Choices = append(view.Choices, openChoice{ID: c.ID, Text: c.Text})
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) saveAnswer(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	var req saveAnswerRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.attempts.SaveAnswer(r.Context(), attempt, req.QuestionID, req.ChoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attemptID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req submitRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.attempts.Submit(r.Context(), attemptID, userFrom(r), string(req.TimeTakenSeconds))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	res, err := h.attempts.GetResults(r.Context(), attempt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	items, err := h.attempts.GetReview(r.Context(), attempt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) analysis(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.attemptFor(w, r)
	if !ok {
		return
	}
	res, err := h.attempts.GetAnalysis(r.Context(), attempt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.DashboardSummary(r.Context(), userFrom(r).ID)
	h.respond(w, r, res, err)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.analytics.RecentAttempts(r.Context(), userFrom(r).ID, limit)
	h.respond(w, r, res, err)
}

func (h *Handler) subjects(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.SubjectPerformance(r.Context(), userFrom(r).ID)
	h.respond(w, r, res, err)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.ProgressTrend(r.Context(), userFrom(r).ID)
	h.respond(w, r, res, err)
}

func (h *Handler) adminSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.AdminSummary(r.Context())
	h.respond(w, r, res, err)
}

func (h *Handler) adminSubjects(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.AdminSubjectPerformance(r.Context())
	h.respond(w, r, res, err)
}

func (h *Handler) adminTrend(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.AdminProgressTrend(r.Context())
	h.respond(w, r, res, err)
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	res, err := h.leaderboard.Top(r.Context(), limit)
	h.respond(w, r, res, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decode reads an optional JSON body and validates it. An empty body decodes
// to the zero value.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrValidation, name)
	}
	return n, nil
}
