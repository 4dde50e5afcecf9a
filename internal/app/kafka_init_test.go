package app

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	for _, brokers := range [][]string{nil, {}, {" ", ""}} {
		producer, err := initKafkaProducer(brokers, logger)
		if err == nil {
			t.Errorf("expected error for brokers %q", brokers)
		}
		if producer != nil {
			t.Error("expected nil producer for empty brokers")
		}
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{"invalid-broker:9999"}, logger)
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestInitKafkaProducer_BrokersWithSpaces(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{" broker1:9092", "broker2:9092 ", ""}, logger)
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseQuietly(t *testing.T) {
	logger := log.WithField("test", "close")

	// Не должно паниковать
	closeQuietly("nil", nil, logger)

	calls := 0
	closeQuietly("ok", closerFunc(func() error { calls++; return nil }), logger)
	closeQuietly("failing", closerFunc(func() error { calls++; return errors.New("boom") }), logger)
	if calls != 2 {
		t.Errorf("expected 2 close calls, got %d", calls)
	}
}
