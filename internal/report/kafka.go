package report

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/resilience"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Kafka publishes one message per record, keyed by question id, with the
// run id carried in a header.
type Kafka struct {
	publisher Publisher
	retry     resilience.RetryConfig
}

func NewKafka(p Publisher, retry resilience.RetryConfig) *Kafka {
	return &Kafka{publisher: p, retry: retry}
}

func (k *Kafka) Name() string {
	return "kafka"
}

func (k *Kafka) Write(ctx context.Context, r *evaluation.Report) error {
	if len(r.Results) == 0 {
		return nil
	}
	events := make([]kafka.Event, 0, len(r.Results))
	for _, rec := range r.Results {
		events = append(events, kafka.Event{
			Key:     rec.ID,
			Value:   rec,
			Headers: map[string]string{"run_id": r.RunID},
		})
	}
	err := resilience.Retry(ctx, "kafka-report", k.retry, func() error {
		return k.publisher.PublishBatch(ctx, events)
	})
	if err != nil {
		return fmt.Errorf("publishing %d records: %w", len(events), err)
	}
	return nil
}
