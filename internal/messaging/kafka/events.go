package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// TopicDeadLetterQueue принимает уведомления, которые не удалось обработать.
const TopicDeadLetterQueue = "retail.dlq"

// Заголовки Kafka.
const (
	HeaderRetryCount       = "x-retry-count"
	HeaderNotificationType = "x-notification-type"
)

// NotificationType возвращает поле type уведомления; для чужих значений — пустую строку.
func NotificationType(payload any) string {
	switch n := payload.(type) {
	case domain.OrderCreatedNotification:
		return n.Type
	case *domain.OrderCreatedNotification:
		return n.Type
	case domain.StockUpdatedNotification:
		return n.Type
	case *domain.StockUpdatedNotification:
		return n.Type
	case domain.OrderStatusUpdatedNotification:
		return n.Type
	case *domain.OrderStatusUpdatedNotification:
		return n.Type
	default:
		return ""
	}
}

// DecodeNotification разбирает тело сообщения в одну из структур уведомлений по полю type.
func DecodeNotification(message *sarama.ConsumerMessage) (any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message.Value, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	var target any
	switch head.Type {
	case domain.NotificationOrderCreated:
		target = &domain.OrderCreatedNotification{}
	case domain.NotificationStockUpdated:
		target = &domain.StockUpdatedNotification{}
	case domain.NotificationOrderStatusUpdated:
		target = &domain.OrderStatusUpdatedNotification{}
	default:
		return nil, fmt.Errorf("unknown notification type %q", head.Type)
	}

	if err := json.Unmarshal(message.Value, target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", head.Type, err)
	}
	return target, nil
}
