package observability

import (
	"context"
	"errors"
	"net"
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
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_violations_total",
			Help: "Violations detected, by kind",
		},
		[]string{"kind"},
	)

	mutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_mutes_total",
			Help: "Mute attempts, by result",
		},
		[]string{"result"},
	)

	unmutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_unmutes_total",
			Help: "Scheduled unmutes, by result",
		},
		[]string{"result"},
	)

	actuatorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actuator_errors_total",
			Help: "Failed actuator calls, by operation",
		},
		[]string{"operation"},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Time spent processing messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	registerOnce sync.Once
)

// Init registers metrics, installs the tracer provider and serves /metrics on
// addr unless it is empty. The returned func shuts both down.
func Init(ctx context.Context, addr string) (func(context.Context) error, error) {
	var err error
	registerOnce.Do(func() {
		err = errors.Join(
			prometheus.Register(violationsTotal),
			prometheus.Register(mutesTotal),
			prometheus.Register(unmutesTotal),
			prometheus.Register(actuatorErrorsTotal),
			prometheus.Register(messageProcessingDuration),
		)
	})
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	var server *http.Server
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	return func(ctx context.Context) error {
		var errs []error
		if server != nil {
			errs = append(errs, server.Shutdown(ctx))
		}
		errs = append(errs, tp.Shutdown(ctx))
		return errors.Join(errs...)
	}, nil
}

func RecordViolation(kind string) {
	violationsTotal.WithLabelValues(kind).Inc()
}

func RecordMute(result string) {
	mutesTotal.WithLabelValues(result).Inc()
}

func RecordUnmute(result string) {
	unmutesTotal.WithLabelValues(result).Inc()
}

func RecordActuatorError(operation string) {
	actuatorErrorsTotal.WithLabelValues(operation).Inc()
}

func ObserveMessage(outcome string, elapsed time.Duration) {
	messageProcessingDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
