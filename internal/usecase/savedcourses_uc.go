package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain"
	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/repository"
	"gator-course-advisor/internal/infra/logging"
	"gator-course-advisor/internal/infra/metrics"
)

// Compile-time check
var _ SavedCoursesUseCase = (*savedCoursesUC)(nil)

// SavedCoursesUseCase manages the saved-course set. It is independent of
// sessions; adding a course never touches the message that showed it.
type SavedCoursesUseCase interface {
	Add(ctx context.Context, course model.Course) (added bool, err error)
	Remove(ctx context.Context, code string) (removed bool, err error)
	Contains(code string) bool
	List() []model.Course
	Load(ctx context.Context) error
}

type savedCoursesUC struct {
	repo repository.SavedCourseRepository
	log  *zerolog.Logger

	mu  sync.Mutex
	set model.SavedCourses
}

// NewSavedCoursesUseCase builds the use case. repo may be nil, in which case
// the set lives only in memory.
func NewSavedCoursesUseCase(repo repository.SavedCourseRepository, logger *zerolog.Logger) *savedCoursesUC {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &savedCoursesUC{repo: repo, log: logger}
}

// Add saves course unless its code is already present. The repository is
// written before the in-memory set so both agree when it fails.
func (s *savedCoursesUC) Add(ctx context.Context, course model.Course) (bool, error) {
	defer logging.TraceDuration(s.log, "SavedCoursesUC.Add")()
	course.Code = model.NormalizeCode(course.Code)
	if course.Code == "" {
		return false, fmt.Errorf("course code: %w", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set.Contains(course.Code) {
		return false, nil
	}
	if s.repo != nil {
		if err := s.repo.Add(ctx, course); err != nil {
			return false, fmt.Errorf("save course %s: %w", course.Code, err)
		}
	}
	s.set = s.set.Add(course)
	metrics.SetSavedCourses(s.set.Len())
	logging.With(ctx, s.log).Debug().Str("code", course.Code).Msg("course saved")
	return true, nil
}

// Remove drops code from the set. Absent codes are a no-op.
func (s *savedCoursesUC) Remove(ctx context.Context, code string) (bool, error) {
	defer logging.TraceDuration(s.log, "SavedCoursesUC.Remove")()
	code = model.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set.Contains(code) {
		return false, nil
	}
	if s.repo != nil {
		if err := s.repo.Remove(ctx, code); err != nil {
			return false, fmt.Errorf("remove course %s: %w", code, err)
		}
	}
	s.set = s.set.Remove(code)
	metrics.SetSavedCourses(s.set.Len())
	logging.With(ctx, s.log).Debug().Str("code", code).Msg("course removed")
	return true, nil
}

func (s *savedCoursesUC) Contains(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Contains(model.NormalizeCode(code))
}

// List returns saved courses in the order they were added.
func (s *savedCoursesUC) List() []model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.List()
}

// Load replaces the in-memory set with the repository contents.
func (s *savedCoursesUC) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	courses, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load saved courses: %w", err)
	}
	s.mu.Lock()
	s.set = model.NewSavedCourses(courses...)
	n := s.set.Len()
	s.mu.Unlock()
	metrics.SetSavedCourses(n)
	s.log.Info().Int("courses", n).Msg("saved courses loaded")
	return nil
}
