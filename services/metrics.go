package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "lawtimeline"

// Collector is a prometheus.Collector for the case timeline engine.
type Collector struct {
	reminderActions     *prometheus.CounterVec
	documentTransitions *prometheus.CounterVec
	sideEffects         *prometheus.CounterVec
	remindersDispatched *prometheus.CounterVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		reminderActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_reconcile_total",
				Help:      "Reminder reconciliation actions by outcome.",
			}, []string{"action"},
		),
		documentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "document_transitions_total",
				Help:      "Document status transitions.",
			}, []string{"from", "to"},
		),
		sideEffects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "side_effects_total",
				Help:      "Outbox side effects by kind and outcome.",
			}, []string{"kind", "outcome"},
		),
		remindersDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminders_dispatched_total",
				Help:      "Due reminders processed by the dispatcher.",
			}, []string{"outcome"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.reminderActions.Describe(ch)
	c.documentTransitions.Describe(ch)
	c.sideEffects.Describe(ch)
	c.remindersDispatched.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.reminderActions.Collect(ch)
	c.documentTransitions.Collect(ch)
	c.sideEffects.Collect(ch)
	c.remindersDispatched.Collect(ch)
}

// The observers tolerate a nil collector so services can run without metrics.

func (c *Collector) observeReminder(action string) {
	if c != nil && action != "" {
		c.reminderActions.WithLabelValues(action).Inc()
	}
}

func (c *Collector) observeDocumentTransition(from, to string) {
	if c != nil && from != to {
		c.documentTransitions.WithLabelValues(from, to).Inc()
	}
}

func (c *Collector) observeSideEffect(kind, outcome string) {
	if c != nil {
		c.sideEffects.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveReminderDispatch records one dispatcher outcome ("sent" or "error")
func (c *Collector) ObserveReminderDispatch(outcome string) {
	if c != nil {
		c.remindersDispatched.WithLabelValues(outcome).Inc()
	}
}
