package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngguard_events_total",
			Help: "Total number of inbound events by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	eventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ngguard_event_duration_seconds",
			Help:    "Time spent deciding on an event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	violationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ngguard_violations_total",
			Help: "Total number of blacklist matches by non-privileged users",
		},
	)

	sanctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngguard_sanctions_total",
			Help: "Total number of sanctions decided",
		},
		[]string{"action"},
	)

	roleLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ngguard_role_lookup_failures_total",
			Help: "Role lookups that failed and were treated as not privileged",
		},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ngguard_commands_total",
			Help: "Enforcement commands executed by action and result",
		},
		[]string{"action", "result"},
	)

	registerOnce sync.Once
)

// Register adds the collectors to reg. Only the first call has effect.
func Register(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			eventsTotal,
			eventDuration,
			violationsTotal,
			sanctionsTotal,
			roleLookupFailures,
			commandsTotal,
		} {
			if regErr := reg.Register(c); regErr != nil {
				err = errors.Join(err, regErr)
			}
		}
	})
	return err
}

// InitTracing installs a global tracer provider. Spans are recorded but not exported.
func InitTracing() *trace.TracerProvider {
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp
}

// RecordEvent records the outcome and duration of one decision.
func RecordEvent(kind, status string, took time.Duration) {
	eventsTotal.WithLabelValues(kind, status).Inc()
	eventDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func RecordViolation() {
	violationsTotal.Inc()
}

func RecordSanction(action string) {
	sanctionsTotal.WithLabelValues(action).Inc()
}

func RecordRoleLookupFailure() {
	roleLookupFailures.Inc()
}

func RecordCommand(action, result string) {
	commandsTotal.WithLabelValues(action, result).Inc()
}

// Runtime serves /metrics and owns the tracer provider.
type Runtime struct {
	addr   string
	server *http.Server
	tp     *trace.TracerProvider
}

func NewRuntime(addr string) *Runtime {
	return &Runtime{addr: addr}
}

func (r *Runtime) Start(_ context.Context) error {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	r.tp = InitTracing()
	if r.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	r.server = &http.Server{
		Addr:              r.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	log.WithField("addr", r.addr).Info("metrics server started")
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	var stopErr error
	if r.server != nil {
		stopErr = r.server.Shutdown(ctx)
	}
	if r.tp != nil {
		stopErr = errors.Join(stopErr, r.tp.Shutdown(ctx))
	}
	return stopErr
}
