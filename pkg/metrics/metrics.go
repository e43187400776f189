// Package metrics exposes Prometheus counters derived from pipeline events.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/logger"
)

type Metrics struct {
	registry *prometheus.Registry
	log      *slog.Logger

	Admission     *prometheus.CounterVec
	TurnsFlushed  *prometheus.CounterVec
	Replies       *prometheus.CounterVec
	TurnDuration  *prometheus.HistogramVec
	Degradations  *prometheus.CounterVec
	PauseCommands *prometheus.CounterVec
	Leads         *prometheus.CounterVec
	SendFailures  *prometheus.CounterVec
}

// New registers all collectors on a private registry together with the Go
// and process collectors.
func New(log *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		log:      logger.OrDefault(log).With("component", "metrics"),

		Admission: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_admission_total",
			Help: "Inbound events by admission verdict.",
		}, []string{"channel", "verdict"}),

		TurnsFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_turns_flushed_total",
			Help: "Coalesced turns handed to the dialog controller.",
		}, []string{"channel"}),

		Replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_replies_total",
			Help: "Replies by dialog state.",
		}, []string{"channel", "state"}),

		TurnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tourdesk_turn_duration_seconds",
			Help:    "Time from flush to reply delivery.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),

		Degradations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_degradations_total",
			Help: "Non-fatal failures by error category.",
		}, []string{"category"}),

		PauseCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_pause_commands_total",
			Help: "Operator pause and resume commands.",
		}, []string{"action"}),

		Leads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_leads_total",
			Help: "Captured leads.",
		}, []string{"channel"}),

		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourdesk_send_failures_total",
			Help: "Outbound messages that could not be delivered.",
		}, []string{"channel"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe updates collectors for one event.
func (m *Metrics) Observe(ev bus.Event) {
	switch ev.Type {
	case bus.EventAdmitted, bus.EventDuplicate, bus.EventStale:
		m.Admission.WithLabelValues(ev.Channel, string(ev.Type)).Inc()
	case bus.EventTurnFlushed:
		m.TurnsFlushed.WithLabelValues(ev.Channel).Inc()
	case bus.EventReplied:
		m.Replies.WithLabelValues(ev.Channel, ev.Outcome).Inc()
		if ev.Duration > 0 {
			m.TurnDuration.WithLabelValues(ev.Channel).Observe(ev.Duration.Seconds())
		}
	case bus.EventDegraded:
		m.Degradations.WithLabelValues(ev.Outcome).Inc()
	case bus.EventPaused, bus.EventResumed:
		m.PauseCommands.WithLabelValues(string(ev.Type)).Inc()
	case bus.EventLeadCaptured:
		m.Leads.WithLabelValues(ev.Channel).Inc()
	case bus.EventSendFailed:
		m.SendFailures.WithLabelValues(ev.Channel).Inc()
	}
}

// Run consumes events until the channel closes or ctx ends.
func (m *Metrics) Run(ctx context.Context, events <-chan bus.Event) {
	m.log.Debug("Metrics collector started")
	defer m.log.Debug("Metrics collector stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}
