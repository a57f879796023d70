package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	errBrokerNotProvided      = errors.New("kafka broker address not provided")
	errPublisherNotConfigured = errors.New("publisher not configured or topic is empty")
)

const (
	DefaultBatchSize    = 100
	DefaultBatchBytes   = 1048576
	DefaultBatchTimeout = 1000 * time.Millisecond
)

type Config struct {
	Brokers      []string
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
}

// Publisher is the producer surface the audit pipeline publishes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, message []byte) error
	Close() error
}

type Writer interface {
	WriteMessages(ctx context.Context, msg ...kafka.Message) error
	Close() error
}

type client struct {
	writer Writer
}

// New builds a producer for the given brokers. The writer dials lazily, so a
// broker that is down at startup only surfaces on the first publish.
func New(conf *Config) (Publisher, error) {
	if conf == nil || len(conf.Brokers) == 0 {
		return nil, errBrokerNotProvided
	}

	batchSize := conf.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchBytes := conf.BatchBytes
	if batchBytes <= 0 {
		batchBytes = DefaultBatchBytes
	}
	batchTimeout := conf.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	return &client{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(conf.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchSize:              batchSize,
			BatchBytes:             int64(batchBytes),
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (k *client) Publish(ctx context.Context, topic string, key, message []byte) error {
	if k.writer == nil || topic == "" {
		return errPublisherNotConfigured
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: message,
		Time:  time.Now(),
	})
}

func (k *client) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
