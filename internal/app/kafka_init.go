package app

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer для канала уведомлений.
// Пустой список брокеров после очистки пробелов возвращает ошибку.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// closeQuietly закрывает ресурс и пишет ошибку в лог.
func closeQuietly(name string, c io.Closer, logger *log.Entry) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.WithError(err).WithField("resource", name).Warn("close failed")
		return
	}
	logger.WithField("resource", name).Info("closed")
}
