package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// SaramaPublisher publishes with a synchronous sarama producer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.ClientID = ClientID
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, SaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewSaramaPublisherWithProducer(producer, topic), nil
}

func NewSaramaPublisherWithProducer(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

// Publish blocks until the broker acknowledges. sarama has no context
// support, so ctx is only checked before sending.
func (p *SaramaPublisher) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderContentType), Value: []byte(ContentTypeTrade)},
			{Key: []byte(HeaderProducer), Value: []byte(ClientID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
