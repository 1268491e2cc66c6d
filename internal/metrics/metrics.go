// Package metrics keeps run counters in a private Prometheus registry and
// writes them to a node-exporter textfile after each run.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sukhmangill977/data-couch/internal/intake"
)

const namespace = "training_intake"

type Metrics struct {
	reg      *prometheus.Registry
	textfile string

	processed     prometheus.Counter
	matched       prometheus.Counter
	malformed     prometheus.Counter
	cards         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	runs          *prometheus.CounterVec
	lastDuration  prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New registers the collectors. textfile may be empty, in which case Record
// only updates the in-memory values.
func New(textfile string) *Metrics {
	m := &Metrics{
		reg:      prometheus.NewRegistry(),
		textfile: textfile,
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_processed_total",
			Help: "Unseen messages fetched and examined.",
		}),
		matched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_matched_total",
			Help: "Messages recognised as training requests.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_malformed_total",
			Help: "Unseen messages skipped because they could not be decoded.",
		}),
		cards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cards_total",
			Help: "Card creation attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Notification attempts by result.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Completed runs by result.",
		}, []string{"result"}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Wall time of the most recent run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time the last run without a fatal error finished.",
		}),
	}
	m.reg.MustRegister(m.processed, m.matched, m.malformed, m.cards, m.notifications, m.runs, m.lastDuration, m.lastSuccess)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Record implements intake.Recorder.
func (m *Metrics) Record(_ context.Context, rep intake.Report, runErr error) error {
	m.processed.Add(float64(rep.Processed))
	m.matched.Add(float64(rep.Matched))
	m.malformed.Add(float64(rep.Malformed))
	m.cards.WithLabelValues("ok").Add(float64(rep.CardsCreated))
	m.cards.WithLabelValues("error").Add(float64(rep.CardFailures))
	m.notifications.WithLabelValues("ok").Add(float64(rep.NotificationsSent))
	m.notifications.WithLabelValues("error").Add(float64(rep.NotificationFailures))
	m.lastDuration.Set(rep.Duration().Seconds())

	if runErr != nil {
		m.runs.WithLabelValues("fatal").Inc()
	} else {
		m.runs.WithLabelValues("ok").Inc()
		m.lastSuccess.Set(float64(rep.FinishedAt.Unix()))
	}

	if m.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
