// Package kafka publishes trade events to a Kafka topic, through either
// segmentio/kafka-go or IBM/sarama. Both publishers stamp the same record
// headers so consumers need not care which client produced a record.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderContentType = "content-type"
	HeaderProducer    = "producer"

	// ContentTypeTrade marks a protobuf-wire encoded trade event.
	ContentTypeTrade = "application/x-protobuf; event=trade"
)

// ClientID names this process to brokers and in the producer header.
const ClientID = "matchbook"

// WriterPublisher publishes with a kafka-go Writer. Every call is
// acknowledged by all in-sync replicas before it returns.
type WriterPublisher struct {
	writer *kafka.Writer
}

func NewWriterPublisher(brokers []string, topic string) *WriterPublisher {
	return &WriterPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			Transport:    &kafka.Transport{ClientID: ClientID},
		},
	}
}

func (p *WriterPublisher) Publish(ctx context.Context, key, value []byte) error {
	if err := p.writer.WriteMessages(ctx, tradeMessage(key, value)); err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

func (p *WriterPublisher) Close() error {
	return p.writer.Close()
}

func tradeMessage(key, value []byte) kafka.Message {
	return kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderContentType, Value: []byte(ContentTypeTrade)},
			{Key: HeaderProducer, Value: []byte(ClientID)},
		},
	}
}
