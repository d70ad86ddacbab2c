// Package metrics turns tpc events and southbound state into Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/veesix-networks/tpc/pkg/events"
	"github.com/veesix-networks/tpc/pkg/models"
)

const namespace = "tpc"

// Counters accumulates engine activity published on the event bus.
type Counters struct {
	operations     *prometheus.CounterVec
	flowRules      *prometheus.CounterVec
	meters         prometheus.Counter
	checkerReports *prometheus.CounterVec
}

func NewCounters() *Counters {
	return &Counters{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Policy operations handled, by operation and result.",
		}, []string{"operation", "result"}),
		flowRules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_rules_total",
			Help:      "Flow rules written to the southbound, by operation (apply or remove).",
		}, []string{"operation"}),
		meters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meters_submitted_total",
			Help:      "Meter cells submitted to the southbound.",
		}),
		checkerReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checker_reports_total",
			Help:      "Checker report frames received, by device.",
		}, []string{"device"}),
	}
}

func (c *Counters) Topics() []string {
	return []string{events.TopicOperation, events.TopicCheckerReport}
}

// Observe is an events.Handler.
func (c *Counters) Observe(e events.Event) {
	switch data := e.Data.(type) {
	case *events.OperationEvent:
		r := data.Result
		result := "success"
		if r.Error != "" {
			result = "error"
		}
		c.operations.WithLabelValues(string(r.Operation), result).Inc()
		if r.RulesApplied > 0 {
			c.flowRules.WithLabelValues("apply").Add(float64(r.RulesApplied))
		}
		if r.RulesRemoved > 0 {
			c.flowRules.WithLabelValues("remove").Add(float64(r.RulesRemoved))
		}
		if r.Meters > 0 && r.Operation == models.OperationSliceQoS {
			c.meters.Add(float64(r.Meters))
		}
	case *events.CheckerReportEvent:
		c.checkerReports.WithLabelValues(string(data.Report.DeviceID)).Inc()
	}
}

func (c *Counters) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.flowRules.Describe(ch)
	c.meters.Describe(ch)
	c.checkerReports.Describe(ch)
}

func (c *Counters) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.flowRules.Collect(ch)
	c.meters.Collect(ch)
	c.checkerReports.Collect(ch)
}
