package domain

import (
	"context"
	"time"
)

// Partition — метка вида сущности в хранилище.
type Partition string

const (
	PartitionCustomer Partition = "Customer"
	PartitionProduct  Partition = "Product"
	PartitionOrder    Partition = "Order"
)

// Version — токен версии строки. Сравнивается только на равенство.
type Version int64

// Record — представление строки в хранилище сущностей.
// Все свойства строковые; преобразование типов делает пакет mapper.
type Record struct {
	Partition  Partition
	ID         string
	Version    Version
	WriteID    string
	Properties map[string]string
	UpdatedAt  time.Time
}

// Clone возвращает копию, не разделяющую карту свойств.
func (r Record) Clone() Record {
	props := make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v
	}
	r.Properties = props
	return r
}

// writeLogSize — сколько последних токенов записи хранится в строке.
const writeLogSize = 8

// WriteLog — последние токены записей строки, новые в конце.
// По нему после таймаута понятно, применилась ли наша запись, даже если за ней успела пройти чужая.
type WriteLog []string

// With возвращает новый журнал с добавленным токеном.
func (l WriteLog) With(id string) WriteLog {
	out := make(WriteLog, 0, writeLogSize)
	if len(l) >= writeLogSize {
		l = l[len(l)-writeLogSize+1:]
	}
	out = append(out, l...)
	return append(out, id)
}

// Contains сообщает, есть ли токен в журнале.
func (l WriteLog) Contains(id string) bool {
	if id == "" {
		return false
	}
	for _, w := range l {
		if w == id {
			return true
		}
	}
	return false
}

// Last возвращает последний токен или пустую строку.
func (l WriteLog) Last() string {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}

// EntityStore — версионированное хранилище строк, разбитых по партициям.
type EntityStore interface {
	// Get возвращает строку или ErrRecordNotFound.
	Get(ctx context.Context, partition Partition, id string) (Record, error)
	// List возвращает все строки партиции.
	List(ctx context.Context, partition Partition) ([]Record, error)
	// Insert создаёт строку с версией 1. Возвращает ErrRecordExists, если id занят.
	Insert(ctx context.Context, rec Record) (Record, error)
	// PutConditional заменяет строку, только если её версия равна expected.
	PutConditional(ctx context.Context, rec Record, expected Version) (Version, error)
	// Delete удаляет строку или возвращает ErrRecordNotFound.
	Delete(ctx context.Context, partition Partition, id string) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// Publisher отправляет уведомление в именованный канал без подтверждения обработки.
type Publisher interface {
	// Publish сериализует payload в JSON. Временные ошибки оборачивают ErrPublishTransient.
	Publish(ctx context.Context, channel string, key string, payload any) error
	Close() error
}
