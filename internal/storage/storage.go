package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Storage интерфейс blob-хранилища отчётов
type Storage interface {
	// Основные операции
	Save(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Временные ссылки на чтение и удаление
	PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error)
	PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error)

	ValidateKey(key string) error
}

// Opener открывает хранилище для одного запроса.
type Opener interface {
	Open(ctx context.Context) (Storage, error)
}

// OpenerFunc адаптирует функцию к Opener.
type OpenerFunc func(ctx context.Context) (Storage, error)

func (f OpenerFunc) Open(ctx context.Context) (Storage, error) {
	return f(ctx)
}

// Ключи строки подключения
const (
	KeyEndpoint        = "Endpoint"
	KeyRegion          = "Region"
	KeyAccessKeyID     = "AccessKeyId"
	KeySecretAccessKey = "SecretAccessKey"
	KeyForcePathStyle  = "ForcePathStyle"
	KeyLocalPath       = "LocalPath"
)

const defaultRegion = "us-east-1"

// ErrNotConfigured возвращается, если строка подключения не задана.
var ErrNotConfigured = errors.New("storage connection string is not configured")

// ConnectionString описывает разобранную строку подключения.
// LocalPath выбирает файловое хранилище вместо S3.
type ConnectionString struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	LocalPath       string
}

// ParseConnectionString разбирает строку вида "Key=Value;Key=Value".
func ParseConnectionString(raw string) (ConnectionString, error) {
	cs := ConnectionString{Region: defaultRegion}
	if strings.TrimSpace(raw) == "" {
		return cs, ErrNotConfigured
	}

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cs, fmt.Errorf("malformed connection string segment %q", part)
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case KeyEndpoint:
			cs.Endpoint = value
		case KeyRegion:
			cs.Region = value
		case KeyAccessKeyID:
			cs.AccessKeyID = value
		case KeySecretAccessKey:
			cs.SecretAccessKey = value
		case KeyForcePathStyle:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return cs, fmt.Errorf("invalid %s value %q: %w", KeyForcePathStyle, value, err)
			}
			cs.ForcePathStyle = b
		case KeyLocalPath:
			cs.LocalPath = value
		default:
			return cs, fmt.Errorf("unknown connection string key %q", key)
		}
	}

	if cs.LocalPath == "" && (cs.AccessKeyID == "" || cs.SecretAccessKey == "") {
		return cs, fmt.Errorf("connection string needs %s and %s, or %s", KeyAccessKeyID, KeySecretAccessKey, KeyLocalPath)
	}
	return cs, nil
}

// New открывает хранилище контейнера по строке подключения и оборачивает
// его в middleware.
func New(ctx context.Context, raw, container string, logger *logrus.Logger) (Storage, error) {
	cs, err := ParseConnectionString(raw)
	if err != nil {
		return nil, err
	}

	var s Storage
	if cs.LocalPath != "" {
		s, err = NewLocalStorage(LocalConfig{
			BasePath:    filepath.Join(cs.LocalPath, container),
			Permissions: 0755,
			CreateDirs:  true,
		}, logger)
	} else {
		s, err = NewS3Storage(ctx, S3Config{
			Region:         cs.Region,
			Bucket:         container,
			Endpoint:       cs.Endpoint,
			AccessKey:      cs.AccessKeyID,
			SecretKey:      cs.SecretAccessKey,
			ForcePathStyle: cs.ForcePathStyle,
		}, logger)
	}
	if err != nil {
		return nil, err
	}

	return wrapWithMiddleware(s, logger), nil
}

// EnvOpener читает строку подключения из переменной окружения при каждом
// открытии, поэтому её смена не требует перезапуска.
type EnvOpener struct {
	EnvVar    string
	Container string
	Logger    *logrus.Logger
}

// NewEnvOpener создаёт Opener по имени переменной окружения.
func NewEnvOpener(envVar, container string, logger *logrus.Logger) *EnvOpener {
	return &EnvOpener{EnvVar: envVar, Container: container, Logger: logger}
}

func (o *EnvOpener) Open(ctx context.Context) (Storage, error) {
	raw := os.Getenv(o.EnvVar)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotConfigured, o.EnvVar)
	}
	return New(ctx, raw, o.Container, o.Logger)
}

// wrapWithMiddleware оборачивает хранилище в middleware
func wrapWithMiddleware(storage Storage, logger *logrus.Logger) Storage {
	if logger != nil {
		storage = NewLoggingMiddleware(storage, logger)
	}
	return NewValidationMiddleware(storage)
}
