// Package report delivers a finished evaluation run to its destinations: a
// JSON file, a console summary, a Kafka topic and a PostgreSQL table.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
)

// Sink receives a completed Report.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *evaluation.Report) error
}

// Fanout writes a report to each sink in order. A failing sink does not
// stop the others; all failures are returned joined.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFanout bounds every sink write by timeout (0 for none). m may be nil.
func NewFanout(timeout time.Duration, m *metrics.Metrics, sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:   sinks,
		timeout: timeout,
		metrics: m,
		logger:  slog.Default().With("component", "report"),
	}
}

func (f *Fanout) Name() string {
	return "fanout"
}

func (f *Fanout) Write(ctx context.Context, r *evaluation.Report) error {
	var errs []error
	for _, s := range f.sinks {
		start := time.Now()
		err := resilience.WithTimeout(ctx, f.timeout, s.Name(), func(ctx context.Context) error {
			return s.Write(ctx, r)
		})
		status := "ok"
		if err != nil {
			status = "error"
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			f.logger.Error("report sink failed", "sink", s.Name(), "run_id", r.RunID, "error", err)
		} else {
			f.logger.Debug("report written", "sink", s.Name(), "run_id", r.RunID,
				"duration_ms", time.Since(start).Milliseconds())
		}
		if f.metrics != nil {
			f.metrics.SinkWritesTotal.WithLabelValues(s.Name(), status).Inc()
		}
	}
	return errors.Join(errs...)
}
