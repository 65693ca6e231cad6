package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware добавляет логирование к операциям хранилища
type LoggingMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewLoggingMiddleware создает новый logging middleware
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{
		storage: storage,
		logger:  logger,
	}
}

// observe логирует длительность и результат операции
func (m *LoggingMiddleware) observe(operation, key string, start time.Time, err error) {
	logger := m.logger.WithFields(logrus.Fields{
		"operation": operation,
		"key":       key,
		"duration":  time.Since(start),
	})
	if err != nil {
		logger.WithError(err).Error("Ошибка операции хранилища")
		return
	}
	logger.Info("Операция хранилища выполнена")
}

// Save логирует операцию сохранения
func (m *LoggingMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	start := time.Now()
	m.logger.WithField("key", key).Debug("Начало сохранения файла")
	err := m.storage.Save(ctx, key, reader)
	m.observe("save", key, start, err)
	return err
}

// Get логирует операцию получения
func (m *LoggingMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	m.logger.WithField("key", key).Debug("Начало получения файла")
	reader, err := m.storage.Get(ctx, key)
	m.observe("get", key, start, err)
	return reader, err
}

// Delete логирует операцию удаления
func (m *LoggingMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.storage.Delete(ctx, key)
	m.observe("delete", key, start, err)
	return err
}

// Остальные методы просто делегируют вызовы
func (m *LoggingMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	return m.storage.Exists(ctx, key)
}

func (m *LoggingMiddleware) PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return m.storage.PresignGet(ctx, key, expiration)
}

func (m *LoggingMiddleware) PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return m.storage.PresignDelete(ctx, key, expiration)
}

func (m *LoggingMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

// ValidationMiddleware проверяет ключи до обращения к хранилищу
type ValidationMiddleware struct {
	storage Storage
}

// NewValidationMiddleware создает новый validation middleware
func NewValidationMiddleware(storage Storage) Storage {
	return &ValidationMiddleware{storage: storage}
}

func (m *ValidationMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Save(ctx, key, reader)
}

func (m *ValidationMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.storage.Get(ctx, key)
}

func (m *ValidationMiddleware) Delete(ctx context.Context, key string) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Delete(ctx, key)
}

func (m *ValidationMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return false, err
	}
	return m.storage.Exists(ctx, key)
}

func (m *ValidationMiddleware) PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if err := m.validatePresign(key, expiration); err != nil {
		return "", err
	}
	return m.storage.PresignGet(ctx, key, expiration)
}

func (m *ValidationMiddleware) PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if err := m.validatePresign(key, expiration); err != nil {
		return "", err
	}
	return m.storage.PresignDelete(ctx, key, expiration)
}

func (m *ValidationMiddleware) validatePresign(key string, expiration time.Duration) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	if expiration <= 0 {
		return fmt.Errorf("время истечения ссылки должно быть положительным")
	}
	return nil
}

func (m *ValidationMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}
