package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CourseSearchAdapter = (*HTTPAdapter)(nil)

// ErrMalformedResponse reports a 2xx body that does not match the search contract.
var ErrMalformedResponse = errors.New("malformed search response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search http %d", e.Code)
	}
	return fmt.Sprintf("search http %d: %s", e.Code, e.Body)
}

// HTTPAdapter talks to the course search service:
// POST {base}/api/search {"query","top_k"} -> {"courses":[{code,title,description}]}.
type HTTPAdapter struct {
	base   string // e.g., http://localhost:5000
	client *http.Client
}

func NewHTTPAdapter(base string, timeout time.Duration) (*HTTPAdapter, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, errors.New("search base url empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAdapter{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Courses *[]struct {
		Code        string `json:"code"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"courses"`
}

func (h *HTTPAdapter) Search(ctx context.Context, query string, topK int) ([]model.Course, error) {
	b, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/api/search", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Courses == nil {
		return nil, fmt.Errorf("%w: missing courses", ErrMalformedResponse)
	}
	out := make([]model.Course, 0, len(*payload.Courses))
	for i, c := range *payload.Courses {
		code := model.NormalizeCode(c.Code)
		if code == "" {
			return nil, fmt.Errorf("%w: course %d has no code", ErrMalformedResponse, i)
		}
		out = append(out, model.Course{Code: code, Title: c.Title, Description: c.Description})
	}
	return out, nil
}

func (h *HTTPAdapter) Health(ctx context.Context) (adapter.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/api/health", nil)
	if err != nil {
		return adapter.HealthStatus{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return adapter.HealthStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return adapter.HealthStatus{}, statusError(resp)
	}
	var hs adapter.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return adapter.HealthStatus{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return hs, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
