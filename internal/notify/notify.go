// Package notify publishes partition-loaded events for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "nbp-rates-loaded"

// Event announces that one effective-date partition was replaced in the store.
type Event struct {
	EffectiveDate string    `json:"effectiveDate"`
	Rows          int       `json:"rows"`
	Artifact      string    `json:"artifact"`
	RunID         string    `json:"runId,omitempty"`
	LoadedAt      time.Time `json:"loadedAt"`
}

type Notifier interface {
	PartitionLoaded(ctx context.Context, events ...Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes events keyed by effective date so all loads of one partition
// land on the same partition of the topic.
type Kafka struct {
	writer messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) PartitionLoaded(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.EffectiveDate),
			Value: value,
			Time:  e.LoadedAt,
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish partition events: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Noop drops every event. It is used when no brokers are configured.
type Noop struct{}

func (Noop) PartitionLoaded(context.Context, ...Event) error { return nil }
func (Noop) Close() error                                    { return nil }

// New returns a Kafka notifier, or Noop when brokers is empty.
func New(brokers []string, topic string) Notifier {
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafka(brokers, topic)
}
