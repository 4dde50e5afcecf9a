package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/app"
	"github.com/vladislavdragonenkov/retail/internal/version"
)

const (
	envLogLevel            = "OMS_LOG_LEVEL"
	envLogFormat           = "OMS_LOG_FORMAT"
	envGRPCAddr            = "OMS_GRPC_ADDR"
	envMetricsAddr         = "OMS_METRICS_ADDR"
	envStorageDriver       = "OMS_STORAGE_DRIVER"
	envPostgresDSN         = "OMS_POSTGRES_DSN"
	envPostgresAutoMigrate = "OMS_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "OMS_REDIS_ADDR"
	envRedisPrefix         = "OMS_REDIS_PREFIX"
	envNotifyDriver        = "OMS_NOTIFY_DRIVER"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envRabbitMQURL         = "OMS_RABBITMQ_URL"
	envOrderChannel        = "OMS_ORDER_CHANNEL"
	envStockChannel        = "OMS_STOCK_CHANNEL"
	envMaxAttempts         = "OMS_MAX_ATTEMPTS"
	envRetryBaseDelay      = "OMS_RETRY_BASE_DELAY"
	envRetryMaxDelay       = "OMS_RETRY_MAX_DELAY"
	envCallTimeout         = "OMS_CALL_TIMEOUT"
	envCompensate          = "OMS_COMPENSATE"
	envTracing             = "OMS_TRACING"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if v, ok := lookup(envLogFormat); ok && strings.EqualFold(strings.TrimSpace(v), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}

	log.SetLevel(log.InfoLevel)
	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(v))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envLogLevel, err))
		} else {
			log.SetLevel(level)
		}
	}
	return warnings
}

// readConfigFromEnv собирает конфигурацию из окружения. Некорректные значения
// не валят запуск: остаётся значение по умолчанию, а причина попадает в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string, lower bool) {
		if v, ok := lookup(key); ok {
			v = strings.TrimSpace(v)
			if lower {
				v = strings.ToLower(v)
			}
			if v != "" {
				*dst = v
			}
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}

	str(envGRPCAddr, &cfg.GRPCAddr, false)
	str(envMetricsAddr, &cfg.MetricsAddr, false)
	str(envStorageDriver, &cfg.StorageDriver, true)
	str(envPostgresDSN, &cfg.PostgresDSN, false)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envRedisAddr, &cfg.RedisAddr, false)
	str(envRedisPrefix, &cfg.RedisPrefix, false)
	str(envNotifyDriver, &cfg.NotifyDriver, true)
	str(envRabbitMQURL, &cfg.RabbitMQURL, false)
	str(envOrderChannel, &cfg.OrderChannel, false)
	str(envStockChannel, &cfg.StockChannel, false)
	str(envTracing, &cfg.Tracing, true)
	boolean(envCompensate, &cfg.Compensate)

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}

	if v, ok := lookup(envMaxAttempts); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envMaxAttempts, err))
		} else {
			cfg.MaxAttempts = parsed
		}
	}
	duration(envRetryBaseDelay, &cfg.RetryBaseDelay, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
	duration(envRetryMaxDelay, &cfg.RetryMaxDelay, func(d time.Duration) bool { return d > 0 }, "must be > 0")
	duration(envCallTimeout, &cfg.CallTimeout, func(d time.Duration) bool { return d > 0 }, "must be > 0")

	return cfg, warnings
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

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

func main() {
	logWarnings := setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(logWarnings, warnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"notify_driver":  cfg.NotifyDriver,
		"version":        version.GetVersion(),
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrderService остановлен")
}
