// Package metrics exports ledger engine operations to Prometheus.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/roach88/splitledger/internal/engine"
)

const namespace = "splitledger"

const (
	statusSuccess = "success"
	statusError   = "error"
)

var _ engine.Observer = (*Recorder)(nil)

// Recorder implements engine.Observer on Prometheus collectors: a counter
// of operations by outcome and a latency histogram per operation.
type Recorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	gatherer   prometheus.Gatherer
}

// NewRecorder creates the collectors and registers them on reg. A nil reg
// gets a private registry, which Snapshot reads back.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger engine operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Ledger engine operation latency.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{r.operations, r.durations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}
	return r, nil
}

// Observe records an engine operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := statusError
	if success {
		status = statusSuccess
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Count is one row of a Snapshot.
type Count struct {
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Total     int64  `json:"total"`
}

// Snapshot reads the operation counters back from the registry, sorted by
// operation then status. It returns nil when the registerer passed to
// NewRecorder cannot be gathered.
func (r *Recorder) Snapshot() ([]Count, error) {
	if r.gatherer == nil {
		return nil, nil
	}
	families, err := r.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []Count
	for _, mf := range families {
		if mf.GetName() != namespace+"_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			out = append(out, Count{
				Operation: labelValue(m, "operation"),
				Status:    labelValue(m, "status"),
				Total:     int64(m.GetCounter().GetValue()),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Operation != out[j].Operation {
			return out[i].Operation < out[j].Operation
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
