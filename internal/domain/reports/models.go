package reports

import (
	"time"

	"wink/internal/domain/gar"
)

const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

type Employee struct {
	ID         string
	FullName   string
	Email      string
	Department string
}

type Row struct {
	EmployeeID string      `json:"employeeId"`
	FullName   string      `json:"fullName"`
	Email      string      `json:"email"`
	Department string      `json:"department"`
	GAR        float64     `json:"GAR"`
	Metrics    gar.Metrics `json:"metrics"`
	TaskCount  int         `json:"taskCount"`
}

// TeamReport is the GAR of every active employee, best first.
type TeamReport struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Department  string      `json:"department,omitempty"`
	Since       *time.Time  `json:"since,omitempty"`
	Until       *time.Time  `json:"until,omitempty"`
	Weights     gar.Weights `json:"weights"`
	Rows        []Row       `json:"rows"`
	AverageGAR  float64     `json:"averageGAR"`
}
