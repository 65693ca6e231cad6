package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"project_report_srv/internal/datasource"
	"project_report_srv/internal/models"
	"project_report_srv/internal/pdf"
	"project_report_srv/internal/report"
	"project_report_srv/internal/storage"
	"project_report_srv/internal/template"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultLinkExpiry  = 30 * time.Minute
	defaultTemplateKey = "ExcelTemplate.xlsx"
)

// ReportService интерфейс для формирования отчетов по проекту
type ReportService interface {
	// GenerateReport формирует файл отчета для прямого скачивания
	GenerateReport(ctx context.Context, req report.Request) (*ReportFile, error)
	// CreateStorageReport заполняет шаблон из хранилища, выгружает результат
	// и возвращает временные ссылки на него
	CreateStorageReport(ctx context.Context, req report.Request) (*StorageReport, error)
}

// ReportGenerator превращает данные проекта в байты отчета одного формата
type ReportGenerator interface {
	Generate(ctx context.Context, data models.ProjectReport) ([]byte, error)
}

// TemplateSource открывает xlsx-шаблон
type TemplateSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileTemplate шаблон на локальном диске
type FileTemplate struct {
	Path string
}

func (t FileTemplate) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия шаблона %s: %w", t.Path, err)
	}
	return f, nil
}

// ReportFile готовый файл отчета
type ReportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// StorageReport результат выгрузки отчета в хранилище
type StorageReport struct {
	Name      string    `json:"Name"`
	URI       string    `json:"Uri"`
	DeleteURI string    `json:"DeleteUri"`
	ExpiresAt time.Time `json:"ExpiresAt"`
}

// StorageSettings параметры выгрузки в хранилище
type StorageSettings struct {
	TemplateKey string
	LinkExpiry  time.Duration
}

// ReportServiceImpl реализация сервиса отчетов
type ReportServiceImpl struct {
	source     datasource.ProjectSource
	generators map[report.Format]ReportGenerator
	opener     storage.Opener
	filler     template.XLSXFiller
	settings   StorageSettings
	now        func() time.Time
	logger     *logrus.Logger
}

// NewReportService создает новый сервис отчетов
func NewReportService(
	source datasource.ProjectSource,
	generators map[report.Format]ReportGenerator,
	opener storage.Opener,
	settings StorageSettings,
	logger *logrus.Logger,
) *ReportServiceImpl {
	if settings.TemplateKey == "" {
		settings.TemplateKey = defaultTemplateKey
	}
	if settings.LinkExpiry <= 0 {
		settings.LinkExpiry = defaultLinkExpiry
	}
	return &ReportServiceImpl{
		source:     source,
		generators: generators,
		opener:     opener,
		filler:     template.NewXLSX(),
		settings:   settings,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock подменяет источник текущего времени
func (s *ReportServiceImpl) SetClock(now func() time.Time) {
	s.now = now
}

// GenerateReport формирует отчет в запрошенном формате
func (s *ReportServiceImpl) GenerateReport(ctx context.Context, req report.Request) (*ReportFile, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"project_id": req.ProjectID,
		"format":     req.Format,
		"name":       req.BaseName,
	})

	generator, ok := s.generators[req.Format]
	if !ok {
		return nil, report.NewError(report.KindBadRequest, fmt.Sprintf("Format not supported: %s", req.Format), nil)
	}

	data, err := s.loadProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := generator.Generate(ctx, data)
	if err != nil {
		logger.WithError(err).Error("Ошибка формирования отчета")
		return nil, report.NewError(report.KindInternal,
			fmt.Sprintf("Failed to generate %s report", req.Format), err)
	}

	if err := verifyContent(req.Format, content); err != nil {
		logger.WithError(err).Error("Сформированный файл не соответствует формату")
		return nil, report.NewError(report.KindInternal,
			fmt.Sprintf("Failed to generate %s report", req.Format), err)
	}

	logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"bytes":    len(content),
	}).Info("Отчет сформирован")

	return &ReportFile{Name: req.FileName(), ContentType: req.Format.ContentType(), Data: content}, nil
}

// CreateStorageReport формирует xlsx-отчет из шаблона в хранилище и выгружает его
func (s *ReportServiceImpl) CreateStorageReport(ctx context.Context, req report.Request) (*StorageReport, error) {
	if req.Format != report.FormatXLSX {
		return nil, report.NewError(report.KindBadRequest, fmt.Sprintf("Format not supported: %s", req.Format), nil)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"project_id": req.ProjectID,
		"name":       req.BaseName,
	})

	data, err := s.loadProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	store, err := s.opener.Open(ctx)
	if err != nil {
		logger.WithError(err).Error("Ошибка подключения к хранилищу")
		return nil, report.NewError(report.KindInternal, "Failed to connect to blob storage", err)
	}

	content, err := s.fillFromStorage(ctx, store, data)
	if err != nil {
		logger.WithError(err).Error("Ошибка заполнения шаблона из хранилища")
		return nil, report.NewError(report.KindInternal, "Failed to populate the report template", err)
	}
	logger.WithField("duration", time.Since(start)).Debug("Шаблон заполнен")

	name := req.BaseName + uuid.NewString() + "." + report.FormatXLSX.Extension()
	if err := store.Save(ctx, name, bytes.NewReader(content)); err != nil {
		logger.WithError(err).Error("Ошибка выгрузки отчета")
		return nil, report.NewError(report.KindInternal, "Failed to upload the report", err)
	}

	expiry := s.settings.LinkExpiry
	expiresAt := s.now().UTC().Add(expiry)

	uri, deleteURI, err := signLinks(ctx, store, name, expiry)
	if err != nil {
		logger.WithError(err).WithField("blob", name).Error("Ошибка подписи ссылки на отчет")
		s.discard(ctx, store, name, logger)
		return nil, report.NewError(report.KindInternal, "Failed to sign the report link", err)
	}

	logger.WithFields(logrus.Fields{
		"blob":     name,
		"duration": time.Since(start),
	}).Info("Отчет выгружен в хранилище")

	return &StorageReport{
		Name:      name,
		URI:       uri,
		DeleteURI: deleteURI,
		ExpiresAt: expiresAt,
	}, nil
}

// signLinks выдает ссылки на чтение и удаление отчета
func signLinks(ctx context.Context, store storage.Storage, name string, expiry time.Duration) (string, string, error) {
	uri, err := store.PresignGet(ctx, name, expiry)
	if err != nil {
		return "", "", err
	}
	deleteURI, err := store.PresignDelete(ctx, name, expiry)
	if err != nil {
		return "", "", err
	}
	return uri, deleteURI, nil
}

// discard удаляет выгруженный отчет, на который не удалось выдать ссылку
func (s *ReportServiceImpl) discard(ctx context.Context, store storage.Storage, name string, logger *logrus.Entry) {
	if err := store.Delete(context.WithoutCancel(ctx), name); err != nil {
		logger.WithError(err).WithField("blob", name).Error("Не удалось удалить выгруженный отчет")
		return
	}
	logger.WithField("blob", name).Warn("Выгруженный отчет удален")
}

func (s *ReportServiceImpl) fillFromStorage(ctx context.Context, store storage.Storage, data models.ProjectReport) ([]byte, error) {
	rc, err := store.Get(ctx, s.settings.TemplateKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return s.filler.Fill(rc, data)
}

// loadProject получает проект и собирает данные отчета на текущую дату
func (s *ReportServiceImpl) loadProject(ctx context.Context, projectID string) (models.ProjectReport, error) {
	start := time.Now()
	project, err := s.source.Project(ctx, projectID)
	if err != nil {
		if errors.Is(err, datasource.ErrProjectNotFound) {
			return models.ProjectReport{}, report.NewError(report.KindNotFound,
				fmt.Sprintf("Project %s not found", projectID), err)
		}
		s.logger.WithError(err).WithField("project_id", projectID).Error("Ошибка получения проекта")
		return models.ProjectReport{}, report.NewError(report.KindInternal, "Failed to load project data", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"duration":   time.Since(start),
	}).Debug("Данные проекта получены")

	return models.NewProjectReport(*project, s.now()), nil
}

// ExcelReportGenerator генератор Excel отчетов из локального шаблона
type ExcelReportGenerator struct {
	template TemplateSource
	filler   template.XLSXFiller
}

// NewExcelReportGenerator создает новый генератор Excel отчетов
func NewExcelReportGenerator(tmpl TemplateSource) *ExcelReportGenerator {
	return &ExcelReportGenerator{template: tmpl, filler: template.NewXLSX()}
}

// Generate заполняет шаблон данными проекта
func (g *ExcelReportGenerator) Generate(ctx context.Context, data models.ProjectReport) ([]byte, error) {
	rc, err := g.template.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return g.filler.Fill(rc, data)
}

// PDFReportGenerator генератор PDF отчетов из HTML-шаблонов
type PDFReportGenerator struct {
	filler template.HTMLFiller
	engine pdf.Engine
	logger *logrus.Logger
}

// NewPDFReportGenerator создает новый генератор PDF отчетов
func NewPDFReportGenerator(filler template.HTMLFiller, engine pdf.Engine, logger *logrus.Logger) *PDFReportGenerator {
	return &PDFReportGenerator{filler: filler, engine: engine, logger: logger}
}

// Generate подставляет данные в HTML и рендерит PDF
func (g *PDFReportGenerator) Generate(ctx context.Context, data models.ProjectReport) ([]byte, error) {
	start := time.Now()
	html, err := g.filler.Fill(data)
	if err != nil {
		return nil, err
	}
	g.logger.WithField("duration", time.Since(start)).Debug("HTML шаблон заполнен")

	start = time.Now()
	content, err := g.engine.Render(ctx, html)
	if err != nil {
		return nil, err
	}
	g.logger.WithField("duration", time.Since(start)).Debug("PDF отрендерен")
	return content, nil
}
