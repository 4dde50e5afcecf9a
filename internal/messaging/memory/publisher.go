package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Message — опубликованное уведомление в том виде, в каком оно ушло бы в канал.
type Message struct {
	Channel     string
	Key         string
	Body        json.RawMessage
	PublishedAt time.Time
}

// Publisher хранит уведомления в памяти и пишет их в лог.
// Используется по умолчанию и в тестах.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	failures map[string]int
	logger   *log.Entry
}

// NewPublisher создаёт пустой Publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		failures: make(map[string]int),
		logger:   log.WithField("component", "memory-publisher"),
	}
}

// FailNext заставляет следующие n публикаций в channel вернуть временную ошибку.
func (p *Publisher) FailNext(channel string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[channel] += n
}

func (p *Publisher) Publish(ctx context.Context, channel string, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPublishTransient, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.Lock()
	if p.failures[channel] > 0 {
		p.failures[channel]--
		p.mu.Unlock()
		return fmt.Errorf("%w: injected failure on %s", domain.ErrPublishTransient, channel)
	}
	p.messages = append(p.messages, Message{
		Channel:     channel,
		Key:         key,
		Body:        body,
		PublishedAt: time.Now().UTC(),
	})
	p.mu.Unlock()

	p.logger.WithFields(log.Fields{
		"channel": channel,
		"key":     key,
	}).Debugf("notification published: %s", body)
	return nil
}

// Messages возвращает копию опубликованных сообщений; пустой channel означает все каналы.
func (p *Publisher) Messages(channel string) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]Message, 0, len(p.messages))
	for _, m := range p.messages {
		if channel == "" || m.Channel == channel {
			result = append(result, m)
		}
	}
	return result
}

// Types возвращает значения поля type опубликованных уведомлений по порядку.
func (p *Publisher) Types(channel string) []string {
	msgs := p.Messages(channel)
	result := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(m.Body, &head); err == nil {
			result = append(result, head.Type)
		}
	}
	return result
}

// Reset очищает накопленные сообщения и внедрённые сбои.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
	p.failures = make(map[string]int)
}

func (p *Publisher) Close() error { return nil }

var _ domain.Publisher = (*Publisher)(nil)
