package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type testServer struct {
	*httptest.Server
	store   *memory.Store
	queue   *memory.Queue
	feed    *app.RankFeed
	updater *app.LeaderboardUpdater
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	store.SeedQuiz(domain.Quiz{ID: 1, Title: "Arithmetic", Category: "Math"}, []domain.Question{
		{
			ID:   1,
			Text: "What is 2 + 2?",
			Choices: []domain.Choice{
				{ID: 11, Text: "3"},
				{ID: 12, Text: "4", IsCorrect: true},
			},
		},
		{
			ID:   2,
			Text: "What is 3 * 3?",
			Choices: []domain.Choice{
				{ID: 21, Text: "9", IsCorrect: true},
				{ID: 22, Text: "6"},
			},
		},
	})
	queue := memory.NewQueue(16)
	feed := app.NewRankFeed()
	updater := app.NewLeaderboardUpdater(store, feed, log)
	handler := NewHandler(
		app.NewAttemptManager(store, queue, log),
		app.NewAnalyticsService(store, memory.NewCache(), app.AnalyticsOptions{}, log),
		updater,
		feed,
		log,
	)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, queue: queue, feed: feed, updater: updater}
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, admin bool, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != 0 {
		req.Header.Set(headerUserID, strconv.FormatInt(userID, 10))
	}
	if admin {
		req.Header.Set(headerIsAdmin, "true")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func TestAttemptLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/quizzes/1/attempts", 5, false, nil)
	expectStatus(t, resp, http.StatusCreated)
	attempt := decodeBody[domain.Attempt](t, resp)
	base := "/attempts/" + strconv.FormatInt(attempt.ID, 10)

	resp = srv.do(t, http.MethodGet, base+"/questions", 5, false, nil)
	expectStatus(t, resp, http.StatusOK)
	questions := decodeBody[[]map[string]any](t, resp)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	for _, c := range questions[0]["choices"].([]any) {
		if _, leaked := c.(map[string]any)["is_correct"]; leaked {
			t.Fatalf("expected correctness hidden on open attempt")
		}
	}

	resp = srv.do(t, http.MethodPut, base+"/answers", 5, false, map[string]int64{"question_id": 1, "choice_id": 12})
	expectStatus(t, resp, http.StatusNoContent)

	resp = srv.do(t, http.MethodGet, base+"/results", 5, false, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = srv.do(t, http.MethodPost, base+"/submit", 5, false, map[string]any{"time_taken_seconds": "42"})
	expectStatus(t, resp, http.StatusOK)
	submitted := decodeBody[domain.SubmitResult](t, resp)
	if submitted.Score != 1 || submitted.TotalQuestions != 2 {
		t.Fatalf("expected 1/2, got %d/%d", submitted.Score, submitted.TotalQuestions)
	}

	resp = srv.do(t, http.MethodPost, base+"/submit", 5, false, nil)
	expectStatus(t, resp, http.StatusConflict)
	if e := decodeBody[errorResponse](t, resp); e.Code != "conflict" {
		t.Fatalf("expected conflict code, got %q", e.Code)
	}

	resp = srv.do(t, http.MethodGet, base+"/results", 5, false, nil)
	expectStatus(t, resp, http.StatusOK)
	results := decodeBody[domain.AttemptResults](t, resp)
	if results.Accuracy != 50 || results.TimeTakenSeconds == nil || *results.TimeTakenSeconds != 42 {
		t.Fatalf("unexpected results %+v", results)
	}

	resp = srv.do(t, http.MethodGet, base+"/review", 5, false, nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeBody[[]domain.ReviewItem](t, resp); len(items) != 2 {
		t.Fatalf("expected 2 review items, got %d", len(items))
	}
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/quizzes/1/attempts", 0, false, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = srv.do(t, http.MethodPost, "/quizzes/99/attempts", 5, false, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = srv.do(t, http.MethodPost, "/quizzes/1/attempts", 5, false, nil)
	attempt := decodeBody[domain.Attempt](t, resp)
	base := "/attempts/" + strconv.FormatInt(attempt.ID, 10)

	resp = srv.do(t, http.MethodGet, base, 6, false, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = srv.do(t, http.MethodGet, base, 6, true, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = srv.do(t, http.MethodPut, base+"/answers", 5, false, map[string]int64{"question_id": 1, "choice_id": 21})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = srv.do(t, http.MethodPut, base+"/answers", 5, false, map[string]int64{"question_id": 1})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	if e := decodeBody[errorResponse](t, resp); e.Code != "validation" {
		t.Fatalf("expected validation code, got %q", e.Code)
	}

	resp = srv.do(t, http.MethodGet, "/attempts/abc", 5, false, nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = srv.do(t, http.MethodGet, "/admin/analytics/summary", 5, false, nil)
	expectStatus(t, resp, http.StatusForbidden)
}

func TestAnalyticsAndLeaderboardRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/quizzes/1/attempts", 5, false, nil)
	attempt := decodeBody[domain.Attempt](t, resp)
	base := "/attempts/" + strconv.FormatInt(attempt.ID, 10)
	srv.do(t, http.MethodPut, base+"/answers", 5, false, map[string]int64{"question_id": 1, "choice_id": 12})
	srv.do(t, http.MethodPut, base+"/answers", 5, false, map[string]int64{"question_id": 2, "choice_id": 21})
	expectStatus(t, srv.do(t, http.MethodPost, base+"/submit", 5, false, nil), http.StatusOK)

	resp = srv.do(t, http.MethodGet, "/analytics/dashboard", 5, false, nil)
	expectStatus(t, resp, http.StatusOK)
	summary := decodeBody[domain.DashboardSummary](t, resp)
	if summary.TotalAttempts != 1 || summary.Accuracy != 100 {
		t.Fatalf("unexpected dashboard %+v", summary)
	}

	resp = srv.do(t, http.MethodGet, "/admin/analytics/summary", 1, true, nil)
	expectStatus(t, resp, http.StatusOK)
	admin := decodeBody[domain.AdminSummary](t, resp)
	if admin.TotalAttempts != 1 || admin.TotalQuizzes != 1 || admin.TotalQuestions != 2 {
		t.Fatalf("unexpected admin summary %+v", admin)
	}

	resp = srv.do(t, http.MethodGet, "/analytics/recent?limit=-1", 5, false, nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	// Drain the rank job the submit scheduled.
	job, err := srv.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if _, err := srv.updater.Recompute(context.Background(), job.UserID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	resp = srv.do(t, http.MethodGet, "/leaderboard?limit=10", 5, false, nil)
	expectStatus(t, resp, http.StatusOK)
	top := decodeBody[[]domain.UserRank](t, resp)
	if len(top) != 1 || top[0].UserID != 5 || top[0].Rank != 1 || top[0].TotalScore != 2 {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
}

func TestRankFeedWebSocket(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + srv.URL[len("http"):] + "/ws/ranks"
	header := http.Header{}
	header.Set(headerUserID, "9")
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the handler to subscribe before publishing.
	deadline := time.Now().Add(5 * time.Second)
	for srv.feed.Subscribers(9) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for subscription")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx := context.Background()
	if _, err := srv.store.Submissions().Create(ctx, domain.Submission{UserID: 9, QuizID: 1, Score: 3}); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if _, err := srv.updater.Recompute(ctx, 9); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg outboundMessage[domain.UserRank]
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "rank" || msg.Payload.UserID != 9 || msg.Payload.TotalScore != 3 || msg.Payload.Rank != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}
}
