package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	RunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_runs_total",
			Help: "Total number of match runs by outcome.",
		},
		[]string{"outcome"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matcher_run_duration_seconds",
			Help:    "Duration of each match run in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
	RunStepDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "matcher_run_step_duration_seconds",
			Help:       "Duration of each step of a match run.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step"},
	)
	CandidatesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_candidates_total",
			Help: "Total number of candidates handled by match runs, by result.",
		},
		[]string{"result"},
	)
	EnrichmentsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matcher_enrichments_total",
			Help: "Total number of match reasons by source.",
		},
		[]string{"source"},
	)
)

const (
	CandidateIncluded = "included"
	CandidateExcluded = "excluded"
	CandidateSkipped  = "skipped"
)

func Register() {
	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(RunsCounter)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunStepDuration)
	prometheus.MustRegister(CandidatesCounter)
	prometheus.MustRegister(EnrichmentsCounter)
}

func StartMetricsServer(addr string) {

	Register()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(addr, nil))
	}()
}
