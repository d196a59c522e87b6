package search

import (
	"context"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.CourseSearchAdapter = (*limitedSearch)(nil)

type limitedSearch struct {
	inner adapter.CourseSearchAdapter
	sem   chan struct{}
}

// NewLimited bounds the number of concurrent Search calls against inner.
func NewLimited(inner adapter.CourseSearchAdapter, maxConcurrent int) adapter.CourseSearchAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedSearch{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedSearch) Search(ctx context.Context, query string, topK int) ([]model.Course, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Search(ctx, query, topK)
}

func (l *limitedSearch) Health(ctx context.Context) (adapter.HealthStatus, error) {
	return l.inner.Health(ctx)
}
