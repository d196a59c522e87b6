package adapter

import (
	"context"

	"gator-course-advisor/internal/domain/model"
)

// HealthStatus is the readiness report of the course search backend.
type HealthStatus struct {
	Status        string `json:"status"`
	CoursesLoaded int    `json:"courses_loaded"`
}

// CourseSearchAdapter is the port for the external retrieval service.
// Implementations return an error for any transport, status or payload problem.
type CourseSearchAdapter interface {
	Search(ctx context.Context, query string, topK int) ([]model.Course, error)
	Health(ctx context.Context) (HealthStatus, error)
}
