package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	maxKeyLength = 1024
)

// ErrNotFound возвращается, если объекта нет в хранилище.
var ErrNotFound = errors.New("object not found")

// S3Config конфигурация S3 хранилища
type S3Config struct {
	Region         string `json:"region"`
	Bucket         string `json:"bucket"`
	Endpoint       string `json:"endpoint,omitempty"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
	ForcePathStyle bool   `json:"force_path_style"`
}

// LocalConfig конфигурация локального хранилища
type LocalConfig struct {
	BasePath    string      `json:"base_path"`
	Permissions os.FileMode `json:"permissions"`
	CreateDirs  bool        `json:"create_dirs"`
}

// S3Storage реализация хранилища для S3-совместимых сервисов
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  *logrus.Logger
}

// NewS3Storage создает новое S3 хранилище
func NewS3Storage(ctx context.Context, cfg S3Config, logger *logrus.Logger) (*S3Storage, error) {
	if err := validateS3Config(cfg); err != nil {
		return nil, fmt.Errorf("неверная конфигурация S3: %w", err)
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(cfg.Region),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки AWS конфигурации: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Настройка custom endpoint если указан
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		logger:  logger,
	}, nil
}

// Save сохраняет файл в S3
func (s *S3Storage) Save(ctx context.Context, key string, reader io.Reader) error {
	// Подписи запроса нужен перематываемый body.
	body, ok := reader.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("ошибка чтения данных: %w", err)
		}
		body = bytes.NewReader(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения файла в S3: %w", err)
	}
	return nil
}

// Get получает файл из S3
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка получения файла из S3: %w", err)
	}
	return result.Body, nil
}

// Delete удаляет файл из S3
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления файла из S3: %w", err)
	}
	return nil
}

// Exists проверяет существование файла в S3
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки существования файла: %w", err)
	}
	return true, nil
}

// PresignGet возвращает ссылку на чтение объекта
func (s *S3Storage) PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("ошибка генерации pre-signed URL: %w", err)
	}
	return req.URL, nil
}

// PresignDelete возвращает ссылку на удаление объекта
func (s *S3Storage) PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error) {
	req, err := s.presign.PresignDeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("ошибка генерации pre-signed URL на удаление: %w", err)
	}
	return req.URL, nil
}

// ValidateKey валидирует ключ файла
func (s *S3Storage) ValidateKey(key string) error {
	return validateKey(key)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// LocalStorage реализация локального файлового хранилища
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
	createDirs  bool
	logger      *logrus.Logger
}

// NewLocalStorage создает новое локальное хранилище
func NewLocalStorage(cfg LocalConfig, logger *logrus.Logger) (*LocalStorage, error) {
	if err := validateLocalConfig(cfg); err != nil {
		return nil, fmt.Errorf("неверная конфигурация локального хранилища: %w", err)
	}

	// Создаем базовую директорию если нужно
	if cfg.CreateDirs {
		if err := os.MkdirAll(cfg.BasePath, cfg.Permissions); err != nil {
			return nil, fmt.Errorf("ошибка создания базовой директории: %w", err)
		}
	}

	return &LocalStorage{
		basePath:    cfg.BasePath,
		permissions: cfg.Permissions,
		createDirs:  cfg.CreateDirs,
		logger:      logger,
	}, nil
}

// Save сохраняет файл локально
func (l *LocalStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	fullPath := l.getFullPath(key)

	if l.createDirs {
		if err := os.MkdirAll(filepath.Dir(fullPath), l.permissions); err != nil {
			return fmt.Errorf("ошибка создания директории: %w", err)
		}
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	return nil
}

// Get получает файл локально
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return file, nil
}

// Delete удаляет файл локально
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.getFullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

// Exists проверяет существование файла
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки существования файла: %w", err)
	}
	return true, nil
}

// PresignGet для локального хранилища возвращает file:// URL без срока действия
func (l *LocalStorage) PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return l.fileURL(key), nil
}

// PresignDelete для локального хранилища совпадает со ссылкой на чтение
func (l *LocalStorage) PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return l.fileURL(key), nil
}

// ValidateKey валидирует ключ файла
func (l *LocalStorage) ValidateKey(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if !filepath.IsLocal(key) {
		return fmt.Errorf("ключ файла выходит за пределы хранилища: %s", key)
	}
	return nil
}

// getFullPath возвращает полный путь к файлу
func (l *LocalStorage) getFullPath(key string) string {
	return filepath.Join(l.basePath, key)
}

func (l *LocalStorage) fileURL(key string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(l.getFullPath(key))}
	return u.String()
}

// Функции валидации

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("ключ файла слишком длинный: %d символов (максимум %d)", len(key), maxKeyLength)
	}
	return nil
}

// validateS3Config валидирует конфигурацию S3
func validateS3Config(cfg S3Config) error {
	if cfg.Region == "" {
		return fmt.Errorf("регион S3 не может быть пустым")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("bucket S3 не может быть пустым")
	}
	if cfg.AccessKey == "" {
		return fmt.Errorf("access key не может быть пустым")
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("secret key не может быть пустым")
	}
	return nil
}

// validateLocalConfig валидирует конфигурацию локального хранилища
func validateLocalConfig(cfg LocalConfig) error {
	if cfg.BasePath == "" {
		return fmt.Errorf("базовый путь не может быть пустым")
	}
	if !filepath.IsAbs(cfg.BasePath) {
		return fmt.Errorf("базовый путь должен быть абсолютным")
	}
	return nil
}
