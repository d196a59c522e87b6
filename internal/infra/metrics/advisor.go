package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(submissionsTotal, staleResultsTotal, inflightRetrievals, sessionsGauge, savedCoursesGauge)
}

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_submissions_total",
			Help: "User submissions by result (accepted, ignored, busy, failed).",
		},
		[]string{"result"},
	)

	staleResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_stale_results_total",
			Help: "Retrieval results dropped because their session or placeholder was gone.",
		},
	)

	inflightRetrievals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_inflight_retrievals",
			Help: "Placeholders waiting for a retrieval result.",
		},
	)

	sessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_sessions",
			Help: "Chat sessions held in memory.",
		},
	)

	savedCoursesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "saved_courses",
			Help: "Courses in the saved-course set.",
		},
	)
)

func IncSubmission(result string) { submissionsTotal.WithLabelValues(norm(result)).Inc() }

func IncStaleResult() { staleResultsTotal.Inc() }

func SetInflight(n int) { inflightRetrievals.Set(float64(n)) }

func SetSessions(n int) { sessionsGauge.Set(float64(n)) }

func SetSavedCourses(n int) { savedCoursesGauge.Set(float64(n)) }
