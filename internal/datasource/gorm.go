package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"project_report_srv/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GormSource читает проекты и подструктуры из базы данных
type GormSource struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewGormSource создает источник данных на основе GORM
func NewGormSource(db *gorm.DB, logger *logrus.Logger) *GormSource {
	return &GormSource{
		db:     db,
		logger: logger,
	}
}

// Project ищет проект по числовому ID или по коду проекта
func (s *GormSource) Project(ctx context.Context, projectID string) (*models.Project, error) {
	query := s.db.WithContext(ctx).
		Preload("Substructures", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})

	if id, err := strconv.ParseUint(projectID, 10, 64); err == nil {
		query = query.Where("id = ? OR code = ?", id, projectID)
	} else {
		query = query.Where("code = ?", projectID)
	}

	var project models.Project
	if err := query.First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		s.logger.WithError(err).WithField("project_id", projectID).Error("Ошибка получения проекта")
		return nil, fmt.Errorf("ошибка получения проекта: %w", err)
	}

	return &project, nil
}

// Seed сохраняет проект, если проекта с таким кодом ещё нет
func (s *GormSource) Seed(ctx context.Context, project *models.Project) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("code = ?", project.Code).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки проекта: %w", err)
	}
	if count > 0 {
		s.logger.WithField("code", project.Code).Info("Проект уже существует, пропускаем")
		return nil
	}

	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("ошибка сохранения проекта: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"code":          project.Code,
		"substructures": len(project.Substructures),
	}).Info("Проект сохранен")
	return nil
}
