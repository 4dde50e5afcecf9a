// Команда notification-consumer читает уведомления о заказах и складе из Kafka
// и пишет их в журнал. Сообщения, которые не удалось разобрать, уходят в retail.dlq.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retail/internal/service/orders"
)

type config struct {
	brokers    []string
	groupID    string
	topics     []string
	maxRetries int
	retryDelay time.Duration
	dlq        bool
}

// errUnknownNotification — сообщение не удалось разобрать; повторять бесполезно.
var errUnknownNotification = errors.New("unknown notification")

func readConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	def := orders.DefaultConfig()
	fs := flag.NewFlagSet("notification-consumer", flag.ContinueOnError)

	var brokersRaw, topicsRaw string
	var cfg config
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	fs.StringVar(&cfg.groupID, "group", "retail-notification-consumer", "consumer group id")
	fs.StringVar(&topicsRaw, "topics", def.OrderChannel+","+def.StockChannel, "topics to consume")
	fs.IntVar(&cfg.maxRetries, "max-retries", 3, "handler attempts before the message goes to the DLQ")
	fs.DurationVar(&cfg.retryDelay, "retry-delay", 100*time.Millisecond, "pause between handler attempts")
	fs.BoolVar(&cfg.dlq, "dlq", true, "send failed messages to "+kafka.TopicDeadLetterQueue)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw, _ = lookup("KAFKA_BROKERS")
	}
	cfg.brokers = splitList(brokersRaw)
	cfg.topics = splitList(topicsRaw)

	if len(cfg.brokers) == 0 {
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if len(cfg.topics) == 0 {
		return config{}, errors.New("at least one topic is required")
	}
	if strings.TrimSpace(cfg.groupID) == "" {
		return config{}, errors.New("group is required")
	}
	if cfg.maxRetries <= 0 {
		return config{}, errors.New("max-retries must be > 0")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// handleNotification разбирает уведомление и пишет его ключевые поля.
func handleNotification(logger *log.Entry) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		notification, err := kafka.DecodeNotification(message)
		if err != nil {
			return fmt.Errorf("%w: %v", errUnknownNotification, err)
		}

		entry := logger.WithFields(log.Fields{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
			"type":      kafka.NotificationType(notification),
		})
		switch n := notification.(type) {
		case *domain.OrderCreatedNotification:
			entry.WithFields(log.Fields{
				"order_id":    n.OrderID,
				"customer_id": n.CustomerID,
				"product_id":  n.ProductID,
				"quantity":    n.Quantity,
				"total":       n.TotalPrice.String(),
			}).Info("order created")
		case *domain.StockUpdatedNotification:
			entry.WithFields(log.Fields{
				"product_id":     n.ProductID,
				"previous_stock": n.PreviousStock,
				"new_stock":      n.NewStock,
			}).Info("stock updated")
		case *domain.OrderStatusUpdatedNotification:
			entry.WithFields(log.Fields{
				"order_id":        n.OrderID,
				"previous_status": n.PreviousStatus,
				"new_status":      n.NewStatus,
			}).Info("order status updated")
		}
		return nil
	}
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	var opts []kafka.ConsumerOption
	opts = append(opts, kafka.WithRetry(cfg.maxRetries, cfg.retryDelay))

	var dlqProducer *kafka.Producer
	if cfg.dlq {
		producer, err := kafka.NewProducer(cfg.brokers)
		if err != nil {
			return fmt.Errorf("create dlq producer: %w", err)
		}
		dlqProducer = producer
		defer func() {
			if err := dlqProducer.Close(); err != nil {
				logger.WithError(err).Warn("failed to close dlq producer")
			}
		}()
		opts = append(opts, kafka.WithDLQ(dlqProducer))
	}

	consumer, err := kafka.NewConsumer(cfg.brokers, cfg.groupID, cfg.topics, handleNotification(logger), opts...)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("получен сигнал остановки")
	return consumer.Stop()
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	logger := log.WithField("component", "notification-consumer")

	cfg, err := readConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		logger.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"brokers": cfg.brokers,
		"topics":  cfg.topics,
		"group":   cfg.groupID,
	}).Info("запускаем consumer уведомлений")

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("consumer завершился с ошибкой")
	}
}
