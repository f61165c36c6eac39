package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total", Help: "Processed HTTP requests",
	}, []string{"method", "route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	CheckIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "checkins_total", Help: "Attendance submissions by outcome",
	}, []string{"outcome"})
	SessionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "sessions_auto_closed_total", Help: "Sessions closed by the auto-close job",
	})
	SessionsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "sessions_generated_total", Help: "Sessions created from course schedules",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})

	// фоновые задачи: автозакрытие занятий и генерация по расписанию
	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "job", Name: "runs_total", Help: "Background job runs by outcome",
	}, []string{"job", "outcome"})
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "job", Name: "duration_seconds", Help: "Background job duration",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
	}, []string{"job"})
	JobLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "job", Name: "last_success_timestamp_seconds",
		Help: "Unix time of the last successful run; stale value means sessions are not being closed",
	}, []string{"job"})
)

// исходы JobRuns
const (
	JobOK     = "ok"
	JobFailed = "failed"
	JobPanic  = "panic"
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, CheckIns, SessionsClosed, SessionsGenerated, DBPing,
		JobRuns, JobDuration, JobLastSuccess)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// ObserveCheckIn — исход отметки: "recorded" либо вид ошибки.
func ObserveCheckIn(kind string, err error) {
	outcome := "recorded"
	if err != nil {
		outcome = kind
	}
	CheckIns.WithLabelValues(outcome).Inc()
}

func ObserveHTTP(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveJob — один прогон задачи; at — момент завершения.
func ObserveJob(name, outcome string, d time.Duration, at time.Time) {
	JobRuns.WithLabelValues(name, outcome).Inc()
	JobDuration.WithLabelValues(name).Observe(d.Seconds())
	if outcome == JobOK {
		JobLastSuccess.WithLabelValues(name).Set(float64(at.Unix()))
	}
}
