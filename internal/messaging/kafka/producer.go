package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// clusterClient — часть sarama.Client, нужная для проверки связи с кластером.
type clusterClient interface {
	Closed() bool
	RefreshMetadata(topics ...string) error
	Close() error
}

// Producer публикует уведомления в Kafka. Канал уведомления совпадает с именем topic.
type Producer struct {
	producer sarama.SyncProducer
	client   clusterClient
	logger   *log.Entry
}

// NewProducer создает синхронный идемпотентный producer.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := newProducer(producer)
	p.client = client
	return p, nil
}

func newProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}
}

// Publish сериализует payload в JSON и отправляет в topic channel.
// Ошибки брокера считаются временными и оборачивают domain.ErrPublishTransient.
func (p *Producer) Publish(ctx context.Context, channel string, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishTransient, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     channel,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Now(),
	}
	if kind := NotificationType(payload); kind != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte(HeaderNotificationType), Value: []byte(kind)}}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": channel,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("%w: send to %s: %v", domain.ErrPublishTransient, channel, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     channel,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")

	return nil
}

// Ping обновляет метаданные кластера: ошибка значит, что ни один broker не ответил.
func (p *Producer) Ping(context.Context) error {
	if p.client == nil {
		return nil
	}
	if p.client.Closed() {
		return errors.New("kafka client is closed")
	}
	if err := p.client.RefreshMetadata(); err != nil {
		return fmt.Errorf("kafka metadata refresh: %w", err)
	}
	return nil
}

// Close закрывает producer, затем клиент.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("failed to close kafka client: %w", err)
		}
	}
	return nil
}

var _ domain.Publisher = (*Producer)(nil)
