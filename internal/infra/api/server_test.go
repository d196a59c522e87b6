//go:build !integration

package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/infra/adapters/search"
	"gator-course-advisor/internal/infra/api"
	"gator-course-advisor/internal/infra/ids"
	"gator-course-advisor/internal/usecase"
)

//
// -------------------- test helpers --------------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// heldRunner keeps retrievals queued until the test releases them.
type heldRunner struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
}

func (r *heldRunner) Submit(task func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *heldRunner) RunAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, t := range tasks {
		_ = t(context.Background())
	}
}

type fakeLimiter struct {
	mu    sync.Mutex
	hits  map[string]int
	limit int
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[key]++
	return f.hits[key] <= limit, nil
}

type fixture struct {
	handler http.Handler
	runner  *heldRunner
	advisor usecase.AdvisorUseCase
	hub     *api.Hub
}

func newFixture(cfg api.ServerConfig) fixture {
	hub := api.NewHub(8, newLogger())
	runner := &heldRunner{}
	rec := usecase.NewRecommendationUseCase(search.NewCatalog(0), newLogger(), true)
	advisor := usecase.NewAdvisorUseCase(rec, runner, ids.NewSequence(), nil, nil, hub, 0, newLogger())
	saved := usecase.NewSavedCoursesUseCase(nil, newLogger())
	srv := api.NewServer(advisor, saved, hub, cfg, newLogger())
	return fixture{handler: srv.Routes(), runner: runner, advisor: advisor, hub: hub}
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

//
// -------------------- tests --------------------
//

func TestMessages_SubmitFlow(t *testing.T) {
	f := newFixture(api.ServerConfig{})

	t.Run("blank text returns 200 and submitted=false", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{"text":"   "}`)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"submitted":false`) {
			t.Fatalf("want 200 submitted=false, got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid json maps to 400", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{nope`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})

	var accepted usecase.SubmitResult
	t.Run("first submission returns 202 with ids", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{"text":"machine learning"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d body=%s", rec.Code, rec.Body.String())
		}
		if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !accepted.Submitted || accepted.SessionID == "" || accepted.PlaceholderID == "" {
			t.Fatalf("unexpected result %+v", accepted)
		}
	})

	t.Run("second submission while busy maps to 409", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{"text":"web"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", rec.Code)
		}
	})

	t.Run("view shows the reconciled ledger", func(t *testing.T) {
		f.runner.RunAll()
		rec := do(t, f.handler, http.MethodGet, "/api/v1/view", "")
		var view usecase.View
		if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if view.Thinking || len(view.Messages) != 2 || view.Messages[1].Pending {
			t.Fatalf("unexpected view %+v", view)
		}
		if !strings.HasPrefix(view.Messages[1].Content, "Based on your interests in machine learning") {
			t.Fatalf("unexpected reply %q", view.Messages[1].Content)
		}
	})

	t.Run("messages of an unknown session map to 404", func(t *testing.T) {
		rec := do(t, f.handler, http.MethodGet, "/api/v1/sessions/missing/messages", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}

func TestSessions_Routes(t *testing.T) {
	f := newFixture(api.ServerConfig{})

	rec := do(t, f.handler, http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", rec.Code)
	}
	var first struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&first)
	if first.Label != "Chat 1" {
		t.Fatalf("unexpected label %q", first.Label)
	}
	_ = do(t, f.handler, http.MethodPost, "/api/v1/sessions", "")

	rec = do(t, f.handler, http.MethodPut, "/api/v1/sessions/"+first.ID+"/active", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"active_session_id":"`+first.ID+`"`) {
		t.Fatalf("select: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(t, f.handler, http.MethodPut, "/api/v1/sessions/nope/active", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404 for unknown session, got %d", rec.Code)
	}

	if rec := do(t, f.handler, http.MethodDelete, "/api/v1/sessions/"+first.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
	rec = do(t, f.handler, http.MethodGet, "/api/v1/sessions", "")
	var list struct {
		Items []usecase.SessionSummary `json:"items"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Items) != 1 || list.Items[0].Label != "Chat 2" {
		t.Fatalf("unexpected sessions %+v", list.Items)
	}
}

func TestSavedCourses_Routes(t *testing.T) {
	f := newFixture(api.ServerConfig{})
	body := `{"code":"COP 3530","title":"Data Structures","description":"trees"}`

	if rec := do(t, f.handler, http.MethodPost, "/api/v1/saved-courses", body); rec.Code != http.StatusCreated {
		t.Fatalf("first add: want 201, got %d", rec.Code)
	}
	if rec := do(t, f.handler, http.MethodPost, "/api/v1/saved-courses", body); rec.Code != http.StatusOK {
		t.Fatalf("second add: want 200, got %d", rec.Code)
	}
	if rec := do(t, f.handler, http.MethodPost, "/api/v1/saved-courses", `{"title":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code: want 400, got %d", rec.Code)
	}

	rec := do(t, f.handler, http.MethodGet, "/api/v1/saved-courses", "")
	var list struct {
		Items []struct {
			Code string `json:"code"`
		} `json:"items"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Items) != 1 || list.Items[0].Code != "COP 3530" {
		t.Fatalf("unexpected saved list %+v", list.Items)
	}

	for i := 0; i < 2; i++ {
		if rec := do(t, f.handler, http.MethodDelete, "/api/v1/saved-courses/COP%203530", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("delete %d: want 204, got %d", i, rec.Code)
		}
	}
	rec = do(t, f.handler, http.MethodGet, "/api/v1/saved-courses", "")
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := api.NewAuthManager("test-advisor-jwt-secret-please-change", time.Minute)
	f := newFixture(api.ServerConfig{Auth: auth})

	t.Run("no credentials -> 401", func(t *testing.T) {
		if rec := do(t, f.handler, http.MethodGet, "/api/v1/view", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("foreign token -> 401", func(t *testing.T) {
		other := api.NewAuthManager("another-secret-that-is-long-enough", time.Minute)
		tok, _ := other.Mint("mallory")
		if rec := do(t, f.handler, http.MethodGet, "/api/v1/view", "", "Authorization", "Bearer "+tok); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("valid token -> 200", func(t *testing.T) {
		tok, err := auth.Mint("student")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if rec := do(t, f.handler, http.MethodGet, "/api/v1/view", "", "Authorization", "Bearer "+tok); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})

	t.Run("health stays public", func(t *testing.T) {
		if rec := do(t, f.handler, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	lim := &fakeLimiter{hits: map[string]int{}}
	f := newFixture(api.ServerConfig{Limiter: lim, SubmissionsPerMinute: 1})

	if rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{"text":"ai"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("first: want 202, got %d", rec.Code)
	}
	f.runner.RunAll()
	rec := do(t, f.handler, http.MethodPost, "/api/v1/messages", `{"text":"ai again"}`)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second: want 429 with Retry-After, got %d", rec.Code)
	}
	if rec := do(t, f.handler, http.MethodGet, "/api/v1/view", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rec.Code)
	}
}

func TestEvents_Stream(t *testing.T) {
	f := newFixture(api.ServerConfig{})
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan api.StreamEvent, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev api.StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err == nil {
				events <- ev
			}
		}
		close(events)
	}()

	next := func() api.StreamEvent {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream ended early")
			}
			return ev
		case <-ctx.Done():
			t.Fatalf("timed out waiting for event")
		}
		return api.StreamEvent{}
	}

	if ev := next(); ev.Type != "snapshot" {
		t.Fatalf("first event must be a snapshot, got %q", ev.Type)
	}
	if _, err := f.advisor.Submit(context.Background(), "security"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ev := next()
	if ev.Type != "view" || !ev.View.Thinking || len(ev.View.Messages) != 2 {
		t.Fatalf("unexpected view event %+v", ev)
	}
	f.runner.RunAll()
	ev = next()
	if ev.View.Thinking || ev.View.Messages[1].Pending {
		t.Fatalf("expected reconciled view, got %+v", ev.View)
	}
}

func TestHub_DropsForSlowSubscribers(t *testing.T) {
	hub := api.NewHub(1, newLogger())
	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.OnView(usecase.View{Version: 1})
	hub.OnView(usecase.View{Version: 2})

	ev := <-ch
	if ev.View.Version != 1 || hub.Seq() != 2 {
		t.Fatalf("unexpected event %+v seq=%d", ev, hub.Seq())
	}
	select {
	case extra := <-ch:
		t.Fatalf("overflow event must be dropped, got %+v", extra)
	default:
	}
	unsub()
	unsub()
	if hub.Subscribers() != 0 {
		t.Fatalf("unsubscribe must be idempotent and remove the subscriber")
	}
}
