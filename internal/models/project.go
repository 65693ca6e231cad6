package models

import (
	"time"

	"gorm.io/gorm"
)

// Project represents a construction project a cost report is built for
type Project struct {
	ID           uint           `json:"id" gorm:"primarykey"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
	Code         string         `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name         string         `json:"name" gorm:"size:255;not null"`
	GrossArea    int64          `json:"gross_area"`
	Floors       int64          `json:"floors"`
	BuildingArea int64          `json:"building_area"`

	Cost          CostBreakdown  `json:"cost" gorm:"embedded;embeddedPrefix:cost_"`
	Substructures []Substructure `json:"substructures,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// CostBreakdown holds the cost columns shared by the project total and every substructure
type CostBreakdown struct {
	Quantity    int64 `json:"quantity"`
	Unit        int64 `json:"unit"`
	Material    int64 `json:"material"`
	Labor       int64 `json:"labor"`
	Machine     int64 `json:"machine"`
	Subcontract int64 `json:"subcontract"`
	Price       int64 `json:"price"`
	Total       int64 `json:"total"`
}

// PerArea divides every figure by area using integer division.
// Values smaller than area truncate to zero. A non-positive area yields zeroes.
func (c CostBreakdown) PerArea(area int64) CostBreakdown {
	if area <= 0 {
		return CostBreakdown{}
	}
	return CostBreakdown{
		Quantity:    c.Quantity / area,
		Unit:        c.Unit / area,
		Material:    c.Material / area,
		Labor:       c.Labor / area,
		Machine:     c.Machine / area,
		Subcontract: c.Subcontract / area,
		Price:       c.Price / area,
		Total:       c.Total / area,
	}
}

// Substructure is one row of the substructure table
type Substructure struct {
	ID        uint   `json:"id" gorm:"primarykey"`
	ProjectID uint   `json:"project_id" gorm:"index;not null"`
	Position  int    `json:"position" gorm:"not null;default:0"`
	Name      string `json:"name" gorm:"size:255;not null"`

	CostBreakdown `gorm:"embedded"`
}

// TableName specifies the table name for the Substructure model
func (Substructure) TableName() string {
	return "substructures"
}

// ProjectReport is everything a populator needs to fill a template
type ProjectReport struct {
	Project       Project
	Date          time.Time
	Substructures []Substructure
}

// PerArea returns the project cost breakdown per gross area unit
func (r ProjectReport) PerArea() CostBreakdown {
	return r.Project.Cost.PerArea(r.Project.GrossArea)
}

// DateString formats the report date the way it is printed in reports
func (r ProjectReport) DateString() string {
	return r.Date.Format(DateLayout)
}

// DateLayout is the YYYY-MM-DD layout used in report names and cells
const DateLayout = "2006-01-02"

// NewProjectReport builds the report data for a project on the given date
func NewProjectReport(p Project, date time.Time) ProjectReport {
	return ProjectReport{
		Project:       p,
		Date:          date,
		Substructures: p.Substructures,
	}
}
