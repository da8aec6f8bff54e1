// Package kafka publishes classification results and run summaries to a
// topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"panval/internal/screening"
	"panval/pkg/fingerprint"
)

const (
	headerType = "panval-type"

	typeResult  = "classification"
	typeSummary = "summary"
)

// Producer is the part of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink writes one record per classification plus one summary record per run.
// Result records are keyed by the identifier fingerprint so the same
// identifier always lands on the same partition.
type Sink struct {
	producer Producer
	topic    string
	clock    func() time.Time
}

type resultMessage struct {
	RunID      string                `json:"run_id"`
	Identifier string                `json:"pan_number"`
	Status     screening.Status      `json:"status"`
	Violations []screening.Violation `json:"violations,omitempty"`
}

type summaryMessage struct {
	RunID string `json:"run_id"`
	screening.Summary
	CreatedAt time.Time `json:"created_at"`
}

func New(producer Producer, topic string) (*Sink, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &Sink{producer: producer, topic: topic, clock: time.Now}, nil
}

// NewClient builds a franz-go client for the given seed brokers.
func NewClient(brokers []string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(client)
	_, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

func (s *Sink) SaveResults(ctx context.Context, runID uuid.UUID, results screening.Results) error {
	if len(results) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(results))
	for _, r := range results {
		payload, err := json.Marshal(resultMessage{
			RunID:      runID.String(),
			Identifier: r.Identifier,
			Status:     r.Status,
			Violations: r.Violations,
		})
		if err != nil {
			return fmt.Errorf("marshal result message: %w", err)
		}
		records = append(records, s.record(fingerprint.Of(r.Identifier), typeResult, payload))
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce results: %w", err)
	}
	return nil
}

func (s *Sink) SaveSummary(ctx context.Context, runID uuid.UUID, summary screening.Summary) error {
	payload, err := json.Marshal(summaryMessage{
		RunID:     runID.String(),
		Summary:   summary,
		CreatedAt: s.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal summary message: %w", err)
	}
	if err := s.producer.ProduceSync(ctx, s.record(runID.String(), typeSummary, payload)).FirstErr(); err != nil {
		return fmt.Errorf("produce summary: %w", err)
	}
	return nil
}

func (s *Sink) record(key, kind string, value []byte) *kgo.Record {
	return &kgo.Record{
		Topic:   s.topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: headerType, Value: []byte(kind)}},
	}
}
