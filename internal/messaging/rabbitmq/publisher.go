package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const (
	dialAttempts = 5
	dialDelay    = 2 * time.Second
)

// amqpChannel — часть *amqp.Channel, которой пользуется Publisher.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// amqpConn — часть *amqp.Connection.
type amqpConn interface {
	IsClosed() bool
	Close() error
}

// Publisher кладёт уведомления в durable-очередь с именем канала через default exchange.
// MessageId уникален для каждого сообщения, ключ агрегата (заказ или товар) уходит в CorrelationId.
type Publisher struct {
	conn     amqpConn
	ch       amqpChannel
	mu       sync.Mutex
	declared map[string]bool
	logger   *log.Entry
}

// Dial подключается к брокеру, повторяя попытки, пока брокер поднимается.
func Dial(ctx context.Context, url string) (*Publisher, error) {
	logger := log.WithField("component", "rabbitmq-publisher")

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("failed to connect to rabbitmq")
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	return newPublisher(conn, ch), nil
}

func newPublisher(conn amqpConn, ch amqpChannel) *Publisher {
	return &Publisher{
		conn:     conn,
		ch:       ch,
		declared: make(map[string]bool),
		logger:   log.WithField("component", "rabbitmq-publisher"),
	}
}

func (p *Publisher) ensureQueue(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.declared[name] {
		return nil
	}
	if _, err := p.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare queue %s: %v", domain.ErrPublishTransient, name, err)
	}
	p.declared[name] = true
	return nil
}

func (p *Publisher) Publish(ctx context.Context, channel string, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal notification: %w", err)
	}
	if err := p.ensureQueue(channel); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: key,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}
	if err := p.ch.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"queue": channel,
			"key":   key,
		}).Error("failed to publish to rabbitmq")
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrPublishTransient, channel, err)
	}

	p.logger.WithFields(log.Fields{"queue": channel, "key": key}).Debug("message published to rabbitmq")
	return nil
}

// Ping сообщает, живы ли соединение и канал. Закрытые сервером они не восстанавливаются.
func (p *Publisher) Ping(context.Context) error {
	switch {
	case p.conn.IsClosed():
		return errors.New("rabbitmq connection is closed")
	case p.ch.IsClosed():
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return firstErr
}

var _ domain.Publisher = (*Publisher)(nil)
