package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crimewatch/pkg/errors"
)

var (
	// Prediction metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"status"}, // success|unknown_category|model_unavailable|inference_failure|error
	)

	PredictionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crimewatch_prediction_latency_seconds",
			Help:    "Predictor latency in seconds, bundle load included",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	BundleLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_bundle_loads_total",
			Help: "Model bundle load attempts",
		},
		[]string{"status"}, // success|not_found|incompatible|error
	)

	// Training metrics
	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_training_runs_total",
			Help: "Training pipeline executions",
		},
		[]string{"status"},
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crimewatch_training_duration_seconds",
			Help:    "Training pipeline duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Reporting and alert metrics
	ReportsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_reports_submitted_total",
			Help: "Crime reports accepted through the API",
		},
		[]string{"status"},
	)

	AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_alerts_dispatched_total",
			Help: "Alerts handed to a notifier, by channel",
		},
		[]string{"channel", "status"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crimewatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_db_queries_total",
			Help: "Total database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crimewatch_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"database", "operation"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimewatch_kafka_messages_total",
			Help: "Kafka messages handled",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

var registerOnce sync.Once

// Init registers all metrics with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Predictions, PredictionLatency, BundleLoads,
			TrainingRuns, TrainingDuration,
			ReportsSubmitted, AlertsDispatched,
			HTTPRequests, HTTPDuration,
			DBQueries, DBQueryDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPrediction classifies err into a status label
func RecordPrediction(latency time.Duration, err error) {
	label := "success"
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrUnknownCategory):
		label = "unknown_category"
	case errors.Is(err, errors.ErrModelUnavailable):
		label = "model_unavailable"
	case errors.Is(err, errors.ErrInferenceFailure):
		label = "inference_failure"
	default:
		label = "error"
	}
	Predictions.WithLabelValues(label).Inc()
	PredictionLatency.Observe(latency.Seconds())
}

// RecordBundleLoad records one load attempt
func RecordBundleLoad(label string) {
	BundleLoads.WithLabelValues(label).Inc()
}

// RecordTrainingRun records a pipeline execution
func RecordTrainingRun(duration time.Duration, err error) {
	TrainingRuns.WithLabelValues(status(err)).Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordReportSubmitted records a report submission
func RecordReportSubmitted(err error) {
	ReportsSubmitted.WithLabelValues(status(err)).Inc()
}

// RecordAlert records one notifier call
func RecordAlert(channel string, err error) {
	AlertsDispatched.WithLabelValues(channel, status(err)).Inc()
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced or consumed message
func RecordKafkaMessage(topic, direction string, err error) {
	KafkaMessages.WithLabelValues(topic, direction, status(err)).Inc()
}
