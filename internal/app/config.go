package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/service/orders"
)

// Драйверы хранилища сущностей.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

// Драйверы канала уведомлений.
const (
	NotifyDriverMemory   = "memory"
	NotifyDriverKafka    = "kafka"
	NotifyDriverRabbitMQ = "rabbitmq"
)

// Режимы трассировки.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
	TracingOTLP   = "otlp"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	RedisAddr           string
	RedisPrefix         string

	NotifyDriver string
	KafkaBrokers []string
	RabbitMQURL  string

	OrderChannel   string
	StockChannel   string
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	CallTimeout    time.Duration
	Compensate     bool

	Tracing string
}

// DefaultConfig возвращает настройки для локального запуска: всё в памяти.
func DefaultConfig() Config {
	def := orders.DefaultConfig()
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		RedisPrefix:         "retail",
		NotifyDriver:        NotifyDriverMemory,
		OrderChannel:        def.OrderChannel,
		StockChannel:        def.StockChannel,
		MaxAttempts:         def.MaxAttempts,
		RetryBaseDelay:      def.BaseDelay,
		RetryMaxDelay:       def.MaxDelay,
		CallTimeout:         def.CallTimeout,
		Compensate:          def.Compensate,
		Tracing:             TracingNone,
	}
}

// Validate проверяет согласованность настроек до открытия соединений.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires OMS_POSTGRES_DSN"))
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis storage requires OMS_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.StorageDriver))
	}

	switch c.NotifyDriver {
	case NotifyDriverMemory:
	case NotifyDriverKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka notifications require KAFKA_BROKERS"))
		}
	case NotifyDriverRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			errs = append(errs, errors.New("rabbitmq notifications require OMS_RABBITMQ_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported notify driver: %q", c.NotifyDriver))
	}

	switch c.Tracing {
	case "", TracingNone, TracingStdout, TracingOTLP:
	default:
		errs = append(errs, fmt.Errorf("unsupported tracing mode: %q", c.Tracing))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry base delay must not be negative, got %s", c.RetryBaseDelay))
	}
	if c.RetryMaxDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry max delay must be positive, got %s", c.RetryMaxDelay))
	} else if c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("retry max delay %s is below base delay %s", c.RetryMaxDelay, c.RetryBaseDelay))
	}

	return errors.Join(errs...)
}

// Orders собирает конфигурацию менеджера заказов.
func (c Config) Orders() orders.Config {
	cfg := orders.DefaultConfig()
	cfg.OrderChannel = c.OrderChannel
	cfg.StockChannel = c.StockChannel
	cfg.MaxAttempts = c.MaxAttempts
	cfg.BaseDelay = c.RetryBaseDelay
	cfg.MaxDelay = c.RetryMaxDelay
	cfg.CallTimeout = c.CallTimeout
	cfg.Compensate = c.Compensate
	return cfg
}
