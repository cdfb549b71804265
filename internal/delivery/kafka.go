package delivery

import (
	"context"

	"SignalFlow/internal/domain/models"
	pkgkafka "SignalFlow/pkg/kafka"
)

// KafkaSink publishes signals to a Kafka topic, keyed by ticker so all
// signals of one symbol land in one partition in order.
type KafkaSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSink(producer *pkgkafka.Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = "signalflow.signals"
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, payload interface{}) error {
	return s.producer.Publish(ctx, s.topic, partitionKey(payload), payload)
}

func partitionKey(payload interface{}) []byte {
	switch p := payload.(type) {
	case *models.AggregatedSignal:
		return []byte(p.Symbol.Ticker)
	case models.AggregatedSignal:
		return []byte(p.Symbol.Ticker)
	case *models.MultiTimeframeSignal:
		return []byte(p.Symbol.Ticker)
	case models.MultiTimeframeSignal:
		return []byte(p.Symbol.Ticker)
	}
	return nil
}
