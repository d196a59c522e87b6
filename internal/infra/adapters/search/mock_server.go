package search

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain/model"
)

const defaultMockTopK = 5

type mockSearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

type mockSearchResponse struct {
	Query   string         `json:"query"`
	Courses []model.Course `json:"courses"`
}

// NewMockHandler serves the search contract from catalog so the advisor can
// run without the real retrieval service.
func NewMockHandler(catalog *Catalog, logger *zerolog.Logger) http.Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	log := logger.With().Str("component", "SearchMock").Logger()

	r := chi.NewRouter()
	r.Post("/api/search", func(w http.ResponseWriter, r *http.Request) {
		var req mockSearchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
			writeMockJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		query := strings.TrimSpace(req.Query)
		if query == "" {
			writeMockJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
			return
		}
		topK := defaultMockTopK
		if req.TopK != nil && *req.TopK > 0 {
			topK = *req.TopK
		}
		courses, err := catalog.Search(r.Context(), query, topK)
		if err != nil {
			log.Error().Err(err).Msg("catalog search failed")
			writeMockJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
			return
		}
		log.Debug().Int("top_k", topK).Int("results", len(courses)).Msg("search served")
		writeMockJSON(w, http.StatusOK, mockSearchResponse{Query: query, Courses: courses})
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		hs, _ := catalog.Health(r.Context())
		writeMockJSON(w, http.StatusOK, hs)
	})
	r.Get("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		courses := catalog.All(limit)
		writeMockJSON(w, http.StatusOK, map[string]any{"courses": courses, "total": catalog.Len()})
	})
	return r
}

func writeMockJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
