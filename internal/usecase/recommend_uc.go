package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
	"gator-course-advisor/internal/infra/logging"
	"gator-course-advisor/internal/infra/metrics"
)

// DefaultRecommendationLimit is the number of courses asked for per submission.
const DefaultRecommendationLimit = 3

// queryEchoRunes bounds how much of the query is repeated in the reply header.
const queryEchoRunes = 50

const (
	failureContent = "Sorry, I couldn't reach the course search service right now. Please try again in a moment."
	emptyContent   = "I couldn't find courses matching %q. Try describing your interests differently."
	busyContent    = "The advisor is handling too many requests right now. Please try again in a moment."
)

// Compile-time check
var _ RecommendationUseCase = (*recommendUC)(nil)

// Recommendation is the display payload for one retrieval. Courses is empty
// when Content explains a failure.
type Recommendation struct {
	Content string
	Courses []model.Course
}

// RecommendationUseCase turns a user query into a renderable recommendation.
// Retrieve never fails: every error is folded into the returned Content.
type RecommendationUseCase interface {
	Retrieve(ctx context.Context, query string, limit int) Recommendation
}

type recommendUC struct {
	search  adapter.CourseSearchAdapter
	log     *zerolog.Logger
	devMode bool
}

func NewRecommendationUseCase(search adapter.CourseSearchAdapter, logger *zerolog.Logger, devMode bool) *recommendUC {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &recommendUC{search: search, log: logger, devMode: devMode}
}

func (r *recommendUC) Retrieve(ctx context.Context, query string, limit int) Recommendation {
	defer logging.TraceDuration(r.log, "RecommendationUC.Retrieve")()
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}

	start := time.Now()
	courses, err := r.search.Search(ctx, query, limit)
	latency := time.Since(start).Milliseconds()
	log := logging.With(ctx, r.log)

	if err != nil {
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result = "timeout"
		}
		metrics.ObserveSearch(result, latency, false)
		log.Warn().Err(err).
			Str("query", logging.Redact(query, r.devMode)).
			Int64("latency_ms", latency).
			Msg("course search failed")
		return FailureRecommendation()
	}

	courses = model.DedupeCourses(courses)
	if len(courses) > limit {
		courses = courses[:limit]
	}
	if len(courses) == 0 {
		metrics.ObserveSearch("empty", latency, true)
		log.Info().Str("query", logging.Redact(query, r.devMode)).Msg("course search returned no results")
		return Recommendation{Content: fmt.Sprintf(emptyContent, model.Truncate(query, queryEchoRunes))}
	}

	metrics.ObserveSearch("ok", latency, true)
	log.Debug().Int("courses", len(courses)).Int64("latency_ms", latency).Msg("course search ok")
	return Recommendation{
		Content: RecommendationHeader(query),
		Courses: courses,
	}
}

// RecommendationHeader is the reply line shown above a list of courses.
func RecommendationHeader(query string) string {
	return fmt.Sprintf("Based on your interests in %s:", model.Truncate(query, queryEchoRunes))
}

// FailureRecommendation is the degraded reply for a failed retrieval.
func FailureRecommendation() Recommendation {
	return Recommendation{Content: failureContent}
}

// BusyRecommendation is the degraded reply when no worker could take the retrieval.
func BusyRecommendation() Recommendation {
	return Recommendation{Content: busyContent}
}
