package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func TestNewConsumerErrors(t *testing.T) {
	handler := func(context.Context, *sarama.ConsumerMessage) error { return nil }
	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler); err == nil {
		t.Fatal("expected new consumer error")
	}
	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler, WithRetry(5, 0)); err == nil {
		t.Fatal("expected new consumer error with options")
	}
}

func TestConsumerOptions(t *testing.T) {
	c := &Consumer{maxRetries: 3, retryDelay: time.Second}
	WithRetry(5, 0)(c)
	if c.maxRetries != 5 || c.retryDelay != 0 {
		t.Fatalf("unexpected retry settings: %d %s", c.maxRetries, c.retryDelay)
	}
	WithRetry(0, -1)(c)
	if c.maxRetries != 5 || c.retryDelay != 0 {
		t.Fatal("invalid values must be ignored")
	}
	p := &Producer{}
	WithDLQ(p)(c)
	if c.dlqProducer != p {
		t.Fatal("dlq producer was not set")
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		consumer:   group,
		topics:     []string{"topic-a"},
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "consumer"),
		maxRetries: 2,
	}

	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestConsumerStopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &mockConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	consumer := &Consumer{consumer: group, logger: log.WithField("test", "stop")}
	if err := consumer.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
}

func TestConsumerSetupCleanup(t *testing.T) {
	consumer := &Consumer{}
	if err := consumer.Setup(nil); err != nil {
		t.Fatalf("setup should return nil: %v", err)
	}
	if err := consumer.Cleanup(nil); err != nil {
		t.Fatalf("cleanup should return nil: %v", err)
	}
}

// stockMessage — сообщение канала stock-updates в том виде, в каком его пишет Producer.
func stockMessage(t *testing.T, offset int64, retries string) *sarama.ConsumerMessage {
	t.Helper()
	body, err := json.Marshal(domain.StockUpdatedNotification{
		Type:          domain.NotificationStockUpdated,
		ProductID:     "P1",
		ProductName:   "Widget",
		PreviousStock: 5,
		NewStock:      3,
		UpdatedBy:     "Order System",
	})
	if err != nil {
		t.Fatal(err)
	}
	msg := &sarama.ConsumerMessage{Topic: "stock-updates", Partition: 2, Offset: offset, Key: []byte("P1"), Value: body}
	if retries != "" {
		msg.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(retries)}}
	}
	return msg
}

func TestConsumeClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	consumer := &Consumer{
		handler: func(_ context.Context, msg *sarama.ConsumerMessage) error {
			decoded, err := DecodeNotification(msg)
			if err != nil {
				return err
			}
			seen = append(seen, NotificationType(decoded))
			return nil
		},
		logger:     log.WithField("test", "claim"),
		maxRetries: 1,
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "stock-updates", partition: 2, messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- stockMessage(t, 1, "")
	claim.messages <- &sarama.ConsumerMessage{Topic: "stock-updates", Partition: 2, Offset: 2, Value: []byte(`{"type":"Refund"}`)}
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != domain.NotificationStockUpdated {
		t.Fatalf("unexpected decoded types: %v", seen)
	}
	if len(session.marked) != 1 || session.marked[0].Offset != 1 {
		t.Fatalf("only the handled message must be marked, got %d", len(session.marked))
	}
}

func TestHandleMessageWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		retries      string
		failures     int
		dlq          func(*mocks.SyncProducer)
		wantAttempts int
		wantErr      bool
	}{
		{name: "success", wantAttempts: 1},
		{name: "recovers within limit", failures: 2, wantAttempts: 3},
		{name: "header counts earlier attempts", retries: "1", failures: 10, wantAttempts: 2, wantErr: true},
		{name: "exhausted without dlq", retries: "3", failures: 10, wantAttempts: 1, wantErr: true},
		{
			name: "exhausted with dlq", retries: "3", failures: 10, wantAttempts: 1,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndSucceed() },
		},
		{
			name: "dlq unavailable", retries: "3", failures: 10, wantAttempts: 1, wantErr: true,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			consumer := &Consumer{
				handler: func(context.Context, *sarama.ConsumerMessage) error {
					attempts++
					if attempts <= tt.failures {
						return errors.New("notification sink offline")
					}
					return nil
				},
				logger:     log.WithField("test", tt.name),
				maxRetries: 3,
			}
			if tt.dlq != nil {
				mockProducer := mocks.NewSyncProducer(t, nil)
				tt.dlq(mockProducer)
				consumer.dlqProducer = newProducer(mockProducer)
				defer func() {
					if err := mockProducer.Close(); err != nil {
						t.Fatal(err)
					}
				}()
			}

			err := consumer.handleMessageWithRetry(context.Background(), stockMessage(t, 7, tt.retries))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if attempts != tt.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
		})
	}
}

func TestHandleMessageWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			cancel()
			return errors.New("temporary")
		},
		logger:     log.WithField("test", "retry-cancel"),
		maxRetries: 5,
		retryDelay: time.Hour,
	}
	if err := consumer.handleMessageWithRetry(ctx, stockMessage(t, 1, "")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}
	tests := []struct {
		retries string
		want    int
	}{
		{retries: "5", want: 5},
		{retries: "bad", want: 0},
		{retries: "", want: 0},
	}
	for _, tt := range tests {
		if got := consumer.getRetryCount(stockMessage(t, 1, tt.retries)); got != tt.want {
			t.Errorf("retries %q: expected %d, got %d", tt.retries, tt.want, got)
		}
	}
}

func TestSendToDLQ(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	original := stockMessage(t, 42, "")

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var letter deadLetter
		if err := json.Unmarshal(raw, &letter); err != nil {
			return err
		}
		if letter.OriginalTopic != "stock-updates" || letter.OriginalPartition != 2 || letter.OriginalOffset != 42 {
			return fmt.Errorf("unexpected origin: %+v", letter)
		}
		if letter.OriginalKey != "P1" || letter.OriginalValue != string(original.Value) {
			return fmt.Errorf("original message not preserved: %+v", letter)
		}
		if letter.ErrorMessage != "boom" || letter.FailedAt.IsZero() {
			return fmt.Errorf("failure not recorded: %+v", letter)
		}
		return nil
	})

	consumer := &Consumer{
		dlqProducer: newProducer(mockProducer),
		logger:      log.WithField("test", "consumer-send-dlq"),
	}
	if err := consumer.sendToDLQ(context.Background(), original, errors.New("boom")); err != nil {
		t.Fatalf("sendToDLQ failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "claim-stop"),
		maxRetries: 1,
	}
	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "topic", partition: 0, messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
