// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsExecuted prometheus.Counter
	CommandErrors    prometheus.Counter
	PermissionDenied prometheus.Counter
	MessagesSent     prometheus.Counter
	SendFailures     prometheus.Counter
	PubSubReconnects prometheus.Counter
	PubSubFrames     prometheus.Counter
	RedeemsHandled   prometheus.Counter
	TokenRefreshes   prometheus.Counter
	TokenRefreshFailures prometheus.Counter

	// Gauges
	QueueDepthGauge     prometheus.Gauge
	JoinedChannelsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsExecuted = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_commands_executed_total", Help: "Number of commands dispatched to the interpreter"})
		CommandErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_command_errors_total", Help: "Number of command runs that ended in an error reply"})
		PermissionDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_permission_denied_total", Help: "Number of commands rejected by the permission gate"})
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_messages_sent_total", Help: "Number of outbound chat messages sent"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_send_failures_total", Help: "Number of outbound sends that failed"})
		PubSubReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_pubsub_reconnects_total", Help: "Number of event stream reconnect attempts"})
		PubSubFrames = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_pubsub_frames_total", Help: "Number of event stream frames received"})
		RedeemsHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_redeems_handled_total", Help: "Number of reward redemptions mapped to a stored action"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_token_refreshes_total", Help: "Number of successful delegated credential refreshes"})
		TokenRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "foobot_token_refresh_failures_total", Help: "Number of failed delegated credential refreshes"})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "foobot_queue_depth", Help: "Current number of pending outbound messages"})
		JoinedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "foobot_joined_channels", Help: "Number of channels the bot is joined to"})
	})
}

// SetQueueDepth records the current outbound queue length.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// Inc increments a counter, tolerating an uninitialized metric in tests.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
