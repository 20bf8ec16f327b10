package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Queue exposes instruments shared by the task queue and the notification queue.
type Queue struct {
	enqueued  *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	retried   *prometheus.CounterVec
	depth     *prometheus.GaugeVec
}

// NewQueue registers queue instruments on the provided registry.
func NewQueue(reg *prometheus.Registry) *Queue {
	factory := promauto.With(reg)
	return &Queue{
		enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campledger_queue_tasks_enqueued_total",
			Help: "Tasks accepted onto a queue.",
		}, []string{"queue", "task"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campledger_queue_tasks_processed_total",
			Help: "Tasks completed successfully.",
		}, []string{"queue", "task"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campledger_queue_tasks_failed_total",
			Help: "Tasks that exhausted retries or were dropped.",
		}, []string{"queue", "task"}),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campledger_queue_tasks_retried_total",
			Help: "Task executions that failed and were requeued.",
		}, []string{"queue", "task"}),
		depth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "campledger_queue_depth",
			Help: "Tasks currently waiting on a queue.",
		}, []string{"queue"}),
	}
}

func (q *Queue) IncEnqueued(queue, task string) {
	if q == nil {
		return
	}
	q.enqueued.WithLabelValues(queue, task).Inc()
}

func (q *Queue) IncProcessed(queue, task string) {
	if q == nil {
		return
	}
	q.processed.WithLabelValues(queue, task).Inc()
}

func (q *Queue) IncFailed(queue, task string) {
	if q == nil {
		return
	}
	q.failed.WithLabelValues(queue, task).Inc()
}

func (q *Queue) IncRetried(queue, task string) {
	if q == nil {
		return
	}
	q.retried.WithLabelValues(queue, task).Inc()
}

func (q *Queue) SetDepth(queue string, depth float64) {
	if q == nil {
		return
	}
	q.depth.WithLabelValues(queue).Set(depth)
}

// NewRegistry builds the process-wide prometheus registry with runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
