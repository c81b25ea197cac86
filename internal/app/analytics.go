package app

import (
	"context"
	"sort"
	"strconv"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/scoring"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAnalyticsTTL      = 60 * time.Second
	DefaultAdminAnalyticsTTL = 300 * time.Second
	DefaultRecentLimit       = 5
)

// AnalyticsService serves read-only aggregations over submitted attempts.
// Results are cached per {query, user, params} and never invalidated on write:
// a fresh submission shows up once the entry expires.
type AnalyticsService struct {
	source      AnalyticsSource
	cache       Cache
	ttl         time.Duration
	adminTTL    time.Duration
	recentLimit int
	log         logrus.FieldLogger
	sf          singleflight.Group
}

type AnalyticsOptions struct {
	TTL         time.Duration
	AdminTTL    time.Duration
	RecentLimit int
}

func NewAnalyticsService(source AnalyticsSource, cache Cache, opts AnalyticsOptions, log logrus.FieldLogger) *AnalyticsService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultAnalyticsTTL
	}
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = DefaultAdminAnalyticsTTL
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	return &AnalyticsService{
		source:      source,
		cache:       cache,
		ttl:         opts.TTL,
		adminTTL:    opts.AdminTTL,
		recentLimit: opts.RecentLimit,
		log:         log,
	}
}

// CacheKey builds "analytics:<name>[:<user>][:<extra>]".
func CacheKey(name string, userID int64, extra string) string {
	key := "analytics:" + name
	if userID != 0 {
		key += ":" + strconv.FormatInt(userID, 10)
	}
	if extra != "" {
		key += ":" + extra
	}
	return key
}

func (s *AnalyticsService) DashboardSummary(ctx context.Context, userID int64) (domain.DashboardSummary, error) {
	return cached(ctx, s, CacheKey("dashboard", userID, ""), s.ttl, func(ctx context.Context) (domain.DashboardSummary, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, userID)
		if err != nil {
			return domain.DashboardSummary{}, err
		}
		return Summarize(attempts), nil
	})
}

func (s *AnalyticsService) RecentAttempts(ctx context.Context, userID int64, limit int) ([]domain.LastAttempt, error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	return cached(ctx, s, CacheKey("recent", userID, strconv.Itoa(limit)), s.ttl, func(ctx context.Context) ([]domain.LastAttempt, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, userID)
		if err != nil {
			return nil, err
		}
		return Recent(attempts, limit), nil
	})
}

func (s *AnalyticsService) SubjectPerformance(ctx context.Context, userID int64) ([]domain.SubjectPerformance, error) {
	return cached(ctx, s, CacheKey("subject", userID, ""), s.ttl, func(ctx context.Context) ([]domain.SubjectPerformance, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, userID)
		if err != nil {
			return nil, err
		}
		return BySubject(attempts), nil
	})
}

func (s *AnalyticsService) ProgressTrend(ctx context.Context, userID int64) ([]domain.TrendPoint, error) {
	return cached(ctx, s, CacheKey("trend", userID, ""), s.ttl, func(ctx context.Context) ([]domain.TrendPoint, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, userID)
		if err != nil {
			return nil, err
		}
		return Trend(attempts, false), nil
	})
}

func (s *AnalyticsService) AdminSummary(ctx context.Context) (domain.AdminSummary, error) {
	return cached(ctx, s, CacheKey("admin-summary", 0, ""), s.adminTTL, func(ctx context.Context) (domain.AdminSummary, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, 0)
		if err != nil {
			return domain.AdminSummary{}, err
		}
		counts, err := s.source.ContentCounts(ctx)
		if err != nil {
			return domain.AdminSummary{}, err
		}
		summary := domain.AdminSummary{
			TotalUsers:     counts.Users,
			TotalQuizzes:   counts.Quizzes,
			TotalQuestions: counts.Questions,
			TotalAttempts:  len(attempts),
		}
		for _, a := range attempts {
			summary.TotalScore += a.Score
			summary.TotalQuestionsAnswered += a.TotalQuestions
		}
		if len(attempts) > 0 {
			summary.AverageScore = float64(summary.TotalScore) / float64(len(attempts))
		}
		return summary, nil
	})
}

func (s *AnalyticsService) AdminSubjectPerformance(ctx context.Context) ([]domain.SubjectPerformance, error) {
	return cached(ctx, s, CacheKey("admin-subject", 0, ""), s.adminTTL, func(ctx context.Context) ([]domain.SubjectPerformance, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, 0)
		if err != nil {
			return nil, err
		}
		return BySubject(attempts), nil
	})
}

func (s *AnalyticsService) AdminProgressTrend(ctx context.Context) ([]domain.TrendPoint, error) {
	return cached(ctx, s, CacheKey("admin-trend", 0, ""), s.adminTTL, func(ctx context.Context) ([]domain.TrendPoint, error) {
		attempts, err := s.source.SubmittedAttempts(ctx, 0)
		if err != nil {
			return nil, err
		}
		return Trend(attempts, true), nil
	})
}

// cached is cache-aside with a singleflight around the miss path. Cache
// failures degrade to computing the value; they are logged, not returned.
func cached[T any](ctx context.Context, s *AnalyticsService, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	ok, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("analytics cache get")
	} else if ok {
		return out, nil
	}

	// Waiters share this call, so one caller's cancellation must not fail the rest.
	shared := context.WithoutCancel(ctx)
	result, err, _ := s.sf.Do(key, func() (any, error) {
		// Re-check cache in case another goroutine filled it.
		var again T
		if ok, err := s.cache.Get(shared, key, &again); err == nil && ok {
			return again, nil
		}
		value, err := compute(shared)
		if err != nil {
			return value, err
		}
		if err := s.cache.Set(shared, key, value, ttl); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("analytics cache set")
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Summarize builds the personal dashboard.
func Summarize(attempts []domain.SubmittedAttempt) domain.DashboardSummary {
	summary := domain.DashboardSummary{TotalAttempts: len(attempts)}
	var last *domain.SubmittedAttempt
	for i := range attempts {
		a := &attempts[i]
		summary.TotalScore += a.Score
		summary.TotalQuestions += a.TotalQuestions
		if last == nil || a.SubmittedAt.After(last.SubmittedAt) {
			last = a
		}
	}
	summary.Accuracy = scoring.Accuracy(summary.TotalScore, summary.TotalQuestions)
	if last != nil {
		la := toLastAttempt(*last)
		summary.LastAttempt = &la
	}
	return summary
}

// Recent returns up to limit attempts, newest first.
func Recent(attempts []domain.SubmittedAttempt, limit int) []domain.LastAttempt {
	sorted := make([]domain.SubmittedAttempt, len(attempts))
	copy(sorted, attempts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.After(sorted[j].SubmittedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]domain.LastAttempt, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, toLastAttempt(a))
	}
	return out
}

// BySubject groups attempts by quiz category, ordered by subject name.
func BySubject(attempts []domain.SubmittedAttempt) []domain.SubjectPerformance {
	bySubject := make(map[string]*domain.SubjectPerformance)
	for _, a := range attempts {
		item, ok := bySubject[a.Category]
		if !ok {
			item = &domain.SubjectPerformance{Subject: a.Category}
			bySubject[a.Category] = item
		}
		item.Correct += a.Score
		item.Total += a.TotalQuestions
	}
	out := make([]domain.SubjectPerformance, 0, len(bySubject))
	for _, item := range bySubject {
		item.Accuracy = scoring.Accuracy(item.Correct, item.Total)
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// Trend buckets attempts by UTC submission day, oldest first. withAttempts
// adds the per-day attempt count used by the admin view.
func Trend(attempts []domain.SubmittedAttempt, withAttempts bool) []domain.TrendPoint {
	byDay := make(map[string]*domain.TrendPoint)
	for _, a := range attempts {
		if a.SubmittedAt.IsZero() {
			continue
		}
		day := a.SubmittedAt.UTC().Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &domain.TrendPoint{Date: day}
			byDay[day] = point
		}
		point.Correct += a.Score
		point.Total += a.TotalQuestions
		if withAttempts {
			point.Attempts++
		}
	}
	out := make([]domain.TrendPoint, 0, len(byDay))
	for _, point := range byDay {
		point.Accuracy = scoring.Accuracy(point.Correct, point.Total)
		out = append(out, *point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func toLastAttempt(a domain.SubmittedAttempt) domain.LastAttempt {
	return domain.LastAttempt{
		AttemptID:      a.AttemptID,
		QuizID:         a.QuizID,
		QuizTitle:      a.QuizTitle,
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		SubmittedAt:    a.SubmittedAt,
	}
}
