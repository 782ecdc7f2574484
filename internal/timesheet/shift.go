package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShiftConfig holds the thresholds for shift length alerts
type ShiftConfig struct {
	LongShiftHours      float64 `yaml:"long_shift_hours"`
	ForgotClockOutHours float64 `yaml:"forgot_clock_out_hours"`
}

// DefaultShiftConfig returns the standard shift thresholds
func DefaultShiftConfig() ShiftConfig {
	return ShiftConfig{
		LongShiftHours:      12,
		ForgotClockOutHours: 14,
	}
}

// ShiftAlert reports a shift that needs the owner's attention
type ShiftAlert struct {
	TimesheetID string          `json:"timesheet_id"`
	WorkerID    string          `json:"worker_id"`
	JobID       string          `json:"job_id"`
	Flag        Flag            `json:"flag"`
	Hours       decimal.Decimal `json:"hours"`
}

// CheckShift returns the length flags that apply to t at now
func (c ShiftConfig) CheckShift(t *Timesheet, now time.Time) []Flag {
	var flags []Flag
	if t.Open() {
		if c.ForgotClockOutHours > 0 && now.Sub(t.ClockIn).Hours() > c.ForgotClockOutHours {
			flags = append(flags, FlagForgotClockOut)
		}
		return flags
	}
	if c.LongShiftHours > 0 && EffectiveHours(t).GreaterThan(decimal.NewFromFloat(c.LongShiftHours)) {
		flags = append(flags, FlagUnusuallyLongShift)
	}
	return flags
}

// Alerts lists length alerts for the given shifts
func (c ShiftConfig) Alerts(timesheets []*Timesheet, now time.Time) []ShiftAlert {
	var alerts []ShiftAlert
	for _, t := range timesheets {
		for _, f := range c.CheckShift(t, now) {
			hours := EffectiveHours(t)
			if t.Open() {
				hours = hoursBetween(t.ClockIn, now)
			}
			alerts = append(alerts, ShiftAlert{
				TimesheetID: t.ID,
				WorkerID:    t.WorkerID,
				JobID:       t.JobID,
				Flag:        f,
				Hours:       hours,
			})
		}
	}
	return alerts
}
