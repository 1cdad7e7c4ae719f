// Package prometheus exports BlueStar's run, stage, generator and publishing
// metrics in the Prometheus format.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bluestar"

var (
	// stageDuration is a histogram of stage execution time in seconds.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of workflow stage duration in seconds",
			Buckets:   []float64{.005, .05, .25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// stageRunsTotal counts stage executions by outcome.
	stageRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Total number of workflow stage executions",
		},
		[]string{"stage", "status"}, // status: success, error, awaiting_input
	)

	// runsTotal counts finished run segments by status.
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of run segments by final status",
		},
		[]string{"status"}, // status: completed, halted, awaiting_input
	)

	// runDuration measures wall time from run start to the end of a segment.
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Histogram of time from run start to the end of each segment in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 900, 3600},
		},
		[]string{"status"},
	)

	// reviewIterations records how many review passes a finished run took.
	reviewIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_iterations",
			Help:      "Review passes consumed by completed or halted runs",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
	)

	// diagnosticsTotal counts diagnostics recorded by runs.
	diagnosticsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Total number of diagnostics recorded by finished runs",
		},
	)

	// providerRequestDuration is a histogram of generator call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of model provider calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	// providerRequestsTotal counts generator calls by task and outcome.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of model provider calls",
		},
		[]string{"provider", "model", "task", "status"}, // status: success or the error kind
	)

	// providerTokensTotal counts tokens reported by the provider.
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed by provider calls",
		},
		[]string{"provider", "model", "type"}, // type: input, output
	)

	// publishDuration is a histogram of sink call duration.
	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publishing calls in seconds",
			Buckets:   []float64{.01, .05, .25, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"sink"},
	)

	// publishTotal counts publishing attempts by sink and outcome.
	publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of publishing attempts",
		},
		[]string{"sink", "status"}, // status: success or the error kind
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		stageDuration,
		stageRunsTotal,
		runsTotal,
		runDuration,
		reviewIterations,
		diagnosticsTotal,
		providerRequestDuration,
		providerRequestsTotal,
		providerTokensTotal,
		publishDuration,
		publishTotal,
	}
)

// Collectors returns every BlueStar collector, for registration with a
// caller-owned registry.
func Collectors() []prometheus.Collector {
	return append([]prometheus.Collector(nil), allMetrics...)
}

// RecordStage records one stage execution.
func RecordStage(stage, status string, durationSeconds float64) {
	stageDuration.WithLabelValues(stage).Observe(durationSeconds)
	stageRunsTotal.WithLabelValues(stage, status).Inc()
}

// RecordRun records the end of a run segment.
func RecordRun(status string, durationSeconds float64) {
	runsTotal.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		runDuration.WithLabelValues(status).Observe(durationSeconds)
	}
}

// RecordIterations records the review passes of a finished run.
func RecordIterations(n int) {
	reviewIterations.Observe(float64(n))
}

// RecordDiagnostics adds n to the diagnostics counter.
func RecordDiagnostics(n int) {
	if n > 0 {
		diagnosticsTotal.Add(float64(n))
	}
}

// RecordProviderRequest records a generator call.
func RecordProviderRequest(provider, model, task, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	providerRequestsTotal.WithLabelValues(provider, model, task, status).Inc()
}

// RecordProviderTokens records token consumption.
func RecordProviderTokens(provider, model string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordPublish records a publishing attempt.
func RecordPublish(sink, status string, durationSeconds float64) {
	publishDuration.WithLabelValues(sink).Observe(durationSeconds)
	publishTotal.WithLabelValues(sink, status).Inc()
}
