package datasource

import (
	"context"
	"errors"

	"project_report_srv/internal/models"
)

// ErrProjectNotFound возвращается, когда источник не знает проект с указанным ID.
var ErrProjectNotFound = errors.New("project not found")

// ProjectSource поставляет данные проекта для заполнения шаблонов.
type ProjectSource interface {
	// Project возвращает проект вместе с подструктурами.
	Project(ctx context.Context, projectID string) (*models.Project, error)
}

// SampleProject возвращает демонстрационный проект, которым заполняются отчёты
// до подключения реального источника данных.
func SampleProject() *models.Project {
	row := func(name string, position int) models.Substructure {
		return models.Substructure{
			Position: position,
			Name:     name,
			CostBreakdown: models.CostBreakdown{
				Quantity:    321,
				Unit:        0,
				Material:    322,
				Labor:       323,
				Machine:     324,
				Subcontract: 0,
				Price:       0,
				Total:       1234,
			},
		}
	}

	return &models.Project{
		Code:         "99435",
		Name:         "AFRY Head Office",
		GrossArea:    123456,
		Floors:       12,
		BuildingArea: 1234,
		Cost: models.CostBreakdown{
			Quantity:    5000000,
			Unit:        0,
			Material:    3000000,
			Labor:       2000000,
			Machine:     1000000,
			Subcontract: 0,
			Price:       0,
			Total:       30000000,
		},
		Substructures: []models.Substructure{
			row("Garage", 0),
			row("Basement", 1),
			row("Attic", 2),
		},
	}
}

// SampleSource отдаёт один и тот же демонстрационный проект для любого ID.
type SampleSource struct{}

// NewSampleSource создает источник демонстрационных данных
func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

// Project возвращает копию демонстрационного проекта
func (SampleSource) Project(ctx context.Context, projectID string) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SampleProject(), nil
}
