// Package metrics holds the prometheus collectors of the verification service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/async"
)

const namespace = "idverify"

// Collectors implements async.Observer and feeds the OCR, store and HTTP layers.
type Collectors struct {
	reg prometheus.Registerer

	SubmissionsTotal   prometheus.Counter
	RejectionsTotal    *prometheus.CounterVec
	TasksFinishedTotal *prometheus.CounterVec
	VerifiedTotal      *prometheus.CounterVec
	QueueWait          prometheus.Histogram
	TaskDuration       prometheus.Histogram
	ProfileDuration    *prometheus.HistogramVec
	SweptRecordsTotal  prometheus.Counter
	EngineUp           prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.
// A nil reg uses a fresh registry, which keeps tests independent.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collectors{
		reg: reg,
		SubmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Verification requests accepted into the queue",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Verification requests refused at submission, by reason",
		}, []string{"reason"}),
		TasksFinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal status",
		}, []string{"status", "error_code"}),
		VerifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Completed verifications by verdict",
		}, []string{"verified"}),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time a task spent queued before a worker picked it up",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Processing time of a task, from pickup to terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		ProfileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_profile_duration_seconds",
			Help:      "Duration of one OCR engine pass",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"profile", "outcome"}),
		SweptRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_swept_records_total",
			Help:      "Expired task records removed by the sweeper",
		}),
		EngineUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_up",
			Help:      "1 when the last OCR engine probe succeeded",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, col := range []prometheus.Collector{
		c.SubmissionsTotal,
		c.RejectionsTotal,
		c.TasksFinishedTotal,
		c.VerifiedTotal,
		c.QueueWait,
		c.TaskDuration,
		c.ProfileDuration,
		c.SweptRecordsTotal,
		c.EngineUp,
		c.HTTPRequestsTotal,
		c.HTTPDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TrackQueue exposes the queue's live depth and in-flight count as gauges.
func (c *Collectors) TrackQueue(stats func() async.Stats) error {
	queued := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks waiting for a worker",
	}, func() float64 { return float64(stats().Queued) })
	inFlight := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_in_flight",
		Help:      "Tasks currently owned by a worker",
	}, func() float64 { return float64(stats().InFlight) })
	if err := c.reg.Register(queued); err != nil {
		return err
	}
	return c.reg.Register(inFlight)
}

func (c *Collectors) Submitted(int) { c.SubmissionsTotal.Inc() }

func (c *Collectors) Rejected(reason string) { c.RejectionsTotal.WithLabelValues(reason).Inc() }

func (c *Collectors) Started(wait time.Duration) { c.QueueWait.Observe(wait.Seconds()) }

func (c *Collectors) Finished(status constants.TaskStatus, errorCode string, verified bool, took time.Duration) {
	c.TasksFinishedTotal.WithLabelValues(string(status), errorCode).Inc()
	if status == constants.TaskStatusCompleted {
		c.VerifiedTotal.WithLabelValues(strconv.FormatBool(verified)).Inc()
	}
	if took > 0 {
		c.TaskDuration.Observe(took.Seconds())
	}
}

// ObserveProfile matches ocr.ProfileObserver.
func (c *Collectors) ObserveProfile(profile constants.Profile, outcome string, took time.Duration) {
	c.ProfileDuration.WithLabelValues(string(profile), outcome).Observe(took.Seconds())
}

// Swept matches the store's sweep observer.
func (c *Collectors) Swept(removed int) { c.SweptRecordsTotal.Add(float64(removed)) }

func (c *Collectors) SetEngineUp(up bool) {
	if up {
		c.EngineUp.Set(1)
		return
	}
	c.EngineUp.Set(0)
}

// Middleware records request count and latency per matched route.
func (c *Collectors) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

var _ async.Observer = (*Collectors)(nil)
