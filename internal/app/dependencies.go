package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/retail/internal/health"
	msgmemory "github.com/vladislavdragonenkov/retail/internal/messaging/memory"
	"github.com/vladislavdragonenkov/retail/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
	"github.com/vladislavdragonenkov/retail/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/retail/internal/storage/redis"
	"github.com/vladislavdragonenkov/retail/internal/version"
)

// runtimeDependencies — хранилище, канал уведомлений и всё, что нужно закрыть при остановке.
type runtimeDependencies struct {
	store          domain.EntityStore
	publisher      domain.Publisher
	storageChecker healthcheck.Checker
	// publisherChecker — nil, если канал уведомлений не умеет проверять связь.
	publisherChecker healthcheck.Checker
	closers          []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (c namedCloser) Close() error { return c.close() }

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	if err := deps.initPublisher(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	deps.initCheckers()
	return deps, nil
}

func (d *runtimeDependencies) initCheckers() {
	d.storageChecker = healthcheck.NewStoreChecker(d.store)
	if pinger, ok := d.publisher.(healthcheck.Pinger); ok {
		d.publisherChecker = healthcheck.NewPublisherChecker(pinger)
	}
}

// healthHandler регистрирует проверки зависимостей: хранилище критично,
// канал уведомлений только понижает статус до degraded.
func (d *runtimeDependencies) healthHandler() *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", d.storageChecker)
	if d.publisherChecker != nil {
		handler.RegisterChecker("notifications", d.publisherChecker)
	}
	return handler
}

func (d *runtimeDependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		d.store = memory.NewEntityStore()
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires dsn")
		}
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, namedCloser{name: "postgres", close: pg.Close})
		if cfg.PostgresAutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		d.store = pg.Entities()
	case StorageDriverRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("redis storage requires addr")
		}
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		d.closers = append(d.closers, namedCloser{name: "redis", close: client.Close})
		store := redisstore.NewEntityStore(client, cfg.RedisPrefix)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		d.store = store
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	logger.WithField("driver", cfg.StorageDriver).Info("entity store initialized")
	return nil
}

func (d *runtimeDependencies) initPublisher(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.NotifyDriver {
	case NotifyDriverMemory, "":
		d.publisher = msgmemory.NewPublisher()
	case NotifyDriverKafka:
		producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			return err
		}
		d.publisher = producer
	case NotifyDriverRabbitMQ:
		publisher, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		d.publisher = publisher
	default:
		return fmt.Errorf("unsupported notify driver: %s", cfg.NotifyDriver)
	}
	d.closers = append(d.closers, namedCloser{name: "publisher", close: d.publisher.Close})

	logger.WithField("driver", cfg.NotifyDriver).Info("notification publisher initialized")
	return nil
}

// close освобождает ресурсы в обратном порядке.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		closeQuietly(d.closers[i].name, d.closers[i], logger)
	}
	d.closers = nil
}
