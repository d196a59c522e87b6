package repository

import (
	"context"

	"gator-course-advisor/internal/domain/model"
)

// SavedCourseRepository persists the saved-course set. Add and Remove are
// idempotent; List returns courses in the order they were first added.
type SavedCourseRepository interface {
	Add(ctx context.Context, course model.Course) error
	Remove(ctx context.Context, code string) error
	List(ctx context.Context) ([]model.Course, error)
}
