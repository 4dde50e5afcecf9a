package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config — явная конфигурация менеджера заказов. Глобальных настроек нет.
type Config struct {
	// OrderChannel получает OrderCreated и OrderStatusUpdated.
	OrderChannel string
	// StockChannel получает StockUpdated.
	StockChannel string
	// MaxAttempts ограничивает число попыток при конфликте версий и временных сбоях.
	MaxAttempts int
	// BaseDelay — пауза перед второй попыткой; дальше она удваивается.
	BaseDelay time.Duration
	// MaxDelay ограничивает паузу между попытками.
	MaxDelay time.Duration
	// CallTimeout ограничивает каждое обращение к хранилищу и каналу уведомлений.
	CallTimeout time.Duration
	// StockUpdatedBy и StatusUpdatedBy попадают в поле updatedBy уведомлений.
	StockUpdatedBy  string
	StatusUpdatedBy string
	// Compensate включает попытку вернуть остаток, если заказ не удалось сохранить.
	Compensate bool
	// Now и NewID подменяются в тестах.
	Now   func() time.Time
	NewID func() string
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		OrderChannel:    "order-notifications",
		StockChannel:    "stock-updates",
		MaxAttempts:     3,
		BaseDelay:       10 * time.Millisecond,
		MaxDelay:        time.Second,
		CallTimeout:     5 * time.Second,
		StockUpdatedBy:  "Order System",
		StatusUpdatedBy: "System",
		Compensate:      true,
		Now:             time.Now,
		NewID:           NewRowID,
	}
}

// withDefaults подставляет значения по умолчанию вместо пустых полей.
// Compensate копируется как есть.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.OrderChannel) == "" {
		c.OrderChannel = def.OrderChannel
	}
	if strings.TrimSpace(c.StockChannel) == "" {
		c.StockChannel = def.StockChannel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.StockUpdatedBy == "" {
		c.StockUpdatedBy = def.StockUpdatedBy
	}
	if c.StatusUpdatedBy == "" {
		c.StatusUpdatedBy = def.StatusUpdatedBy
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.NewID == nil {
		c.NewID = def.NewID
	}
	return c
}

// NewRowID генерирует идентификатор строки: uuid без дефисов.
func NewRowID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
