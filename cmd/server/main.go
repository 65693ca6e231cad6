package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"project_report_srv/internal/config"
	"project_report_srv/internal/database"
	"project_report_srv/internal/datasource"
	"project_report_srv/internal/pdf"
	"project_report_srv/internal/report"
	"project_report_srv/internal/server"
	"project_report_srv/internal/service"
	"project_report_srv/internal/storage"
	"project_report_srv/internal/template"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		// Поставщики зависимостей
		fx.Provide(
			provideConfig,
			provideLogger,
			provideProjectSource,
			providePDFEngine,
			provideGenerators,
			provideStorageOpener,
			provideReportService,
			provideServer,
		),

		// Хуки жизненного цикла
		fx.Invoke(registerLifecycleHooks),
	)

	// Запуск приложения с остановкой
	runWithGracefulShutdown(app)
}

// provideConfig загружает и предоставляет конфигурацию приложения
func provideConfig() (config.Config, error) {
	return config.Load()
}

// provideLogger создает и настраивает логгер на основе конфигурации
func provideLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Info("Запуск сервиса отчетов")
	return logger
}

// provideProjectSource выбирает источник данных проекта
func provideProjectSource(cfg config.Config, logger *logrus.Logger, lc fx.Lifecycle) (datasource.ProjectSource, error) {
	if cfg.DataSource.Type != config.DataSourceDatabase {
		logger.Info("Используются демонстрационные данные проекта")
		return datasource.NewSampleSource(), nil
	}

	db, err := database.NewDatabase(database.FromAppConfig(cfg))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeDatabase(db)
		},
	})
	return datasource.NewGormSource(db, logger), nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// providePDFEngine создает движок рендеринга PDF; браузер закрывается при остановке
func providePDFEngine(cfg config.Config, lc fx.Lifecycle) (pdf.Engine, error) {
	engine, err := pdf.New(cfg.PDF)
	if err != nil {
		return nil, err
	}
	if closer, ok := engine.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})
	}
	return engine, nil
}

// provideGenerators собирает генераторы отчетов по форматам
func provideGenerators(cfg config.Config, engine pdf.Engine, logger *logrus.Logger) map[report.Format]service.ReportGenerator {
	dir := cfg.Templates.Dir
	excelPath := filepath.Join(dir, cfg.Templates.Excel)
	if _, err := os.Stat(excelPath); err != nil {
		logger.WithError(err).WithField("path", excelPath).
			Warn("Excel шаблон не найден, создайте его командой templategen")
	}

	html := template.HTMLFiller{
		MainPath: filepath.Join(dir, cfg.Templates.PDF),
		RowPath:  filepath.Join(dir, cfg.Templates.PDFRow),
	}

	return map[report.Format]service.ReportGenerator{
		report.FormatXLSX: service.NewExcelReportGenerator(service.FileTemplate{Path: excelPath}),
		report.FormatPDF:  service.NewPDFReportGenerator(html, engine, logger),
	}
}

// provideStorageOpener читает строку подключения к хранилищу при каждом запросе
func provideStorageOpener(cfg config.Config, logger *logrus.Logger) storage.Opener {
	return storage.NewEnvOpener(cfg.Storage.ConnectionStringEnv, cfg.Storage.Container, logger)
}

func provideReportService(
	cfg config.Config,
	source datasource.ProjectSource,
	generators map[report.Format]service.ReportGenerator,
	opener storage.Opener,
	logger *logrus.Logger,
) service.ReportService {
	return service.NewReportService(source, generators, opener, service.StorageSettings{
		TemplateKey: cfg.Storage.TemplateKey,
		LinkExpiry:  cfg.Storage.LinkExpiry,
	}, logger)
}

func provideServer(cfg config.Config, svc service.ReportService, logger *logrus.Logger) server.HTTPServer {
	return server.NewServer(cfg, svc, logger)
}

// registerLifecycleHooks настраивает хуки жизненного цикла приложения
func registerLifecycleHooks(
	srv server.HTTPServer,
	cfg config.Config,
	logger *logrus.Logger,
	lc fx.Lifecycle,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Запуск HTTP сервера")
			go func() {
				if err := srv.Start(cfg.Server.Address); err != nil {
					logger.WithError(err).Error("Не удалось запустить HTTP сервер")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Завершение работы HTTP сервера")
			return srv.Shutdown(ctx)
		},
	})
}

// runWithGracefulShutdown обрабатывает жизненный цикл приложения с обработкой сигналов
func runWithGracefulShutdown(app *fx.App) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Настраиваем обработку сигналов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем приложение с таймаутом
	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("Не удалось запустить приложение")
	}

	// Ожидаем сигнал завершения
	<-quit
	logrus.Info("Получен сигнал завершения работы")

	// Грациозное завершение с таймаутом
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logrus.WithError(err).Error("Ошибка при завершении работы")
		os.Exit(1)
	}

	logrus.Info("Сервис отчетов остановлен корректно")
}
