package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifeline/internal/platform/config"
	"lifeline/pkg/platform/events/relay"
)

// Producer publishes outbox entries to Kafka-compatible brokers.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the configured brokers. It returns nil when no
// brokers are configured so callers can skip the relay entirely.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(int32(cfg.MaxBatchBytes)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client}, nil
}

// Publish produces the entries and waits for every acknowledgement.
func (p *Producer) Publish(ctx context.Context, entries []relay.Entry) error {
	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: e.Topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.ID.String())},
			},
		})
	}
	results := p.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce events: %w", err)
	}
	return nil
}

// EnsureTopics creates the stream topics when they do not exist yet.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replication int16, topics ...string) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs []string
	for _, t := range resp.Sorted() {
		if t.Err == nil || errors.Is(t.Err, kerr.TopicAlreadyExists) {
			continue
		}
		errs = append(errs, t.Topic+": "+t.Err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("create topics: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Health pings the brokers.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
