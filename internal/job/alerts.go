package job

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Severity ranks an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an owner-facing notice about a job's finances
type Alert struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

var (
	nearBudgetRatio  = decimal.RequireFromString("0.85")
	lowMarginRatio   = decimal.RequireFromString("0.10")
	progressPayRatio = decimal.RequireFromString("0.5")
)

// BudgetAlerts warns when labor eats into the project value or the margin gets thin
func BudgetAlerts(j *Job, s Summary) []Alert {
	var alerts []Alert
	if j.ProjectValue.IsPositive() {
		ratio := s.LaborCost.Div(j.ProjectValue)
		switch {
		case ratio.GreaterThan(decimal.NewFromInt(1)):
			alerts = append(alerts, Alert{
				Type:     "labor_over_budget",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Labor cost %s exceeds project value %s", s.LaborCost.StringFixed(2), j.ProjectValue.StringFixed(2)),
			})
		case ratio.GreaterThan(nearBudgetRatio):
			alerts = append(alerts, Alert{
				Type:     "labor_near_budget",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Labor cost is %s%% of project value", ratio.Mul(decimal.NewFromInt(100)).StringFixed(0)),
			})
		}
	}
	if s.Profit.IsPositive() && s.Margin.LessThan(lowMarginRatio) {
		alerts = append(alerts, Alert{
			Type:     "low_margin",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Margin is %s%%", s.Margin.Mul(decimal.NewFromInt(100)).StringFixed(1)),
		})
	}
	return alerts
}

// PaymentAlerts reminds the owner to collect from the client
func PaymentAlerts(j *Job) []Alert {
	var alerts []Alert
	remaining := j.RemainingBalance()
	switch j.Status {
	case StatusCompleted:
		if remaining.IsPositive() {
			alerts = append(alerts, Alert{
				Type:     "payment_due",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Job is complete with %s outstanding", remaining.StringFixed(2)),
			})
		}
	case StatusActive:
		if j.ProjectValue.IsPositive() && j.AmountPaid.Div(j.ProjectValue).LessThan(progressPayRatio) {
			alerts = append(alerts, Alert{
				Type:     "request_progress_payment",
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("Only %s of %s collected", j.AmountPaid.StringFixed(2), j.ProjectValue.StringFixed(2)),
			})
		}
	}
	return alerts
}
