package job

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/siteledger/internal/timesheet"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOnHold    Status = "on_hold"
	StatusCancelled Status = "cancelled"
)

// Job is a contracted project
type Job struct {
	ID           string                `json:"id" yaml:"id"`
	OwnerID      string                `json:"owner_id" yaml:"owner_id"`
	Name         string                `json:"name" yaml:"name"`
	ClientName   string                `json:"client_name" yaml:"client_name"`
	ProjectValue decimal.Decimal       `json:"project_value" yaml:"project_value"`
	AmountPaid   decimal.Decimal       `json:"amount_paid" yaml:"amount_paid"`
	Status       Status                `json:"status" yaml:"status"`
	Site         *timesheet.Coordinate `json:"site,omitempty" yaml:"site"`
	Address      string                `json:"address,omitempty" yaml:"address"`
	CreatedAt    time.Time             `json:"created_at" yaml:"created_at"`
}

// RemainingBalance is what the client still owes
func (j *Job) RemainingBalance() decimal.Decimal {
	return j.ProjectValue.Sub(j.AmountPaid)
}

// Worker is someone who clocks time against jobs
type Worker struct {
	ID         string           `json:"id" yaml:"id"`
	OwnerID    string           `json:"owner_id" yaml:"owner_id"`
	Name       string           `json:"name" yaml:"name"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty" yaml:"hourly_rate"`
}
