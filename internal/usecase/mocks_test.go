//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
	"gator-course-advisor/internal/domain/ports/repository"
	"gator-course-advisor/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func fixedClock() adapter.Clock {
	t := time.Date(2024, 9, 2, 14, 5, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// ---- Mock CourseSearchAdapter ----

type MockSearch struct {
	SearchFunc func(ctx context.Context, query string, topK int) ([]model.Course, error)
	Calls      []string
	mu         sync.Mutex
}

var _ adapter.CourseSearchAdapter = (*MockSearch)(nil)

func (m *MockSearch) Search(ctx context.Context, query string, topK int) ([]model.Course, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, query)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, topK)
	}
	return nil, nil
}

func (m *MockSearch) Health(context.Context) (adapter.HealthStatus, error) {
	return adapter.HealthStatus{Status: "healthy"}, nil
}

// ---- Mock RecommendationUseCase ----

type MockRecommender struct {
	RetrieveFunc func(ctx context.Context, query string, limit int) usecase.Recommendation
}

var _ usecase.RecommendationUseCase = (*MockRecommender)(nil)

func (m *MockRecommender) Retrieve(ctx context.Context, query string, limit int) usecase.Recommendation {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, query, limit)
	}
	return usecase.Recommendation{Content: usecase.RecommendationHeader(query)}
}

// ---- Manual TaskRunner ----

// ManualRunner queues tasks until the test runs them, so a test decides
// exactly when each retrieval completes.
type ManualRunner struct {
	mu     sync.Mutex
	tasks  []func(ctx context.Context) error
	Reject bool
}

var _ usecase.TaskRunner = (*ManualRunner)(nil)

func (r *ManualRunner) Submit(task func(ctx context.Context) error) error {
	if r.Reject {
		return errors.New("worker queue full")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *ManualRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Run executes the i-th queued task.
func (r *ManualRunner) Run(i int) {
	r.mu.Lock()
	task := r.tasks[i]
	r.mu.Unlock()
	_ = task(context.Background())
}

// RunAll executes every queued task in submission order.
func (r *ManualRunner) RunAll() {
	for i := 0; i < r.Len(); i++ {
		r.Run(i)
	}
}

// ---- Recording EventSink ----

type RecordingSink struct {
	mu    sync.Mutex
	Views []usecase.View
}

func (s *RecordingSink) OnView(v usecase.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Views = append(s.Views, v)
}

func (s *RecordingSink) Last() usecase.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Views[len(s.Views)-1]
}

// ---- Mock SessionSnapshotStore ----

type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	deleted  map[string]struct{}
	Deleted  []string
	SaveErr  error
}

var _ repository.SessionSnapshotStore = (*MockSessionStore)(nil)

func NewMockSessionStore(seed ...model.Session) *MockSessionStore {
	m := &MockSessionStore{sessions: make(map[string]model.Session), deleted: make(map[string]struct{})}
	for _, s := range seed {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *MockSessionStore) Save(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, gone := m.deleted[s.ID]; gone {
		return nil
	}
	if cur, ok := m.sessions[s.ID]; ok && cur.Revision >= s.Revision && s.Revision != 0 {
		return nil
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MockSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.deleted[id] = struct{}{}
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockSessionStore) LoadAll(context.Context) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *MockSessionStore) Get(id string) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GatedSessionStore holds the first Save until Release is called, so a test
// can interleave other operations with a mirror that is still in flight.
type GatedSessionStore struct {
	*MockSessionStore
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func NewGatedSessionStore() *GatedSessionStore {
	return &GatedSessionStore{
		MockSessionStore: NewMockSessionStore(),
		entered:          make(chan struct{}, 1),
		gate:             make(chan struct{}),
	}
}

func (g *GatedSessionStore) Save(ctx context.Context, s model.Session) error {
	select {
	case g.entered <- struct{}{}:
		<-g.gate
	default:
	}
	return g.MockSessionStore.Save(ctx, s)
}

// Entered is signalled once the held Save has started.
func (g *GatedSessionStore) Entered() <-chan struct{} { return g.entered }

func (g *GatedSessionStore) Release() { g.once.Do(func() { close(g.gate) }) }

// ---- Mock SavedCourseRepository ----

type MockSavedCourseRepo struct {
	mu      sync.Mutex
	courses []model.Course
	AddErr  error
	AddCall int
}

var _ repository.SavedCourseRepository = (*MockSavedCourseRepo)(nil)

func (m *MockSavedCourseRepo) Add(_ context.Context, c model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCall++
	if m.AddErr != nil {
		return m.AddErr
	}
	m.courses = append(m.courses, c)
	return nil
}

func (m *MockSavedCourseRepo) Remove(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.courses {
		if c.Code == code {
			m.courses = append(m.courses[:i], m.courses[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockSavedCourseRepo) List(context.Context) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Course(nil), m.courses...), nil
}
