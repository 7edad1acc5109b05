// Package kafka delivers ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"giftvault/internal/events"
)

// Publisher produces JSON-encoded ledger events keyed by escrow ID so all
// events for one escrow land in one partition, in order.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects a producer and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Publish produces one event synchronously.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EscrowID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() {
	p.client.Close()
}

var _ events.Publisher = (*Publisher)(nil)
