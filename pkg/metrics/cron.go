package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	runSucceeded = "success"
	runFailed    = "failure"
)

// CronJobMetrics tracks how long scheduled billing jobs take, how often they
// fail, and when each last finished cleanly.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewCronJobMetrics registers the cron collectors on reg. A nil registerer
// yields a recorder that drops everything.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of one scheduled job run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "billing",
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time the job last finished without error.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, runSucceeded).Inc()
	c.lastSuccess.WithLabelValues(job).Set(float64(c.now().Unix()))
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), runFailed).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
