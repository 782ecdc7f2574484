package timesheet

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the review state of a timesheet
type Status string

const (
	StatusWorking   Status = "working"
	StatusCompleted Status = "completed"
	StatusFlagged   Status = "flagged"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Flag is an advisory annotation for owner review
type Flag string

const (
	FlagLocationMismatch    Flag = "location_mismatch"
	FlagLocationDrift       Flag = "location_drift"
	FlagUnusuallyLongShift  Flag = "unusually_long_shift"
	FlagForgotClockOut      Flag = "forgot_clock_out"
	FlagLocationUnavailable Flag = "location_unavailable"
)

// Coordinate is a WGS84 position in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Timesheet is one worker shift on a job
type Timesheet struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	WorkerID         string           `json:"worker_id"`
	JobID            string           `json:"job_id"`
	ClockIn          time.Time        `json:"clock_in"`
	ClockInLocation  *Coordinate      `json:"clock_in_location,omitempty"`
	ClockOut         *time.Time       `json:"clock_out,omitempty"`
	ClockOutLocation *Coordinate      `json:"clock_out_location,omitempty"`
	Hours            *decimal.Decimal `json:"hours,omitempty"`
	Status           Status           `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	AIFlags          []Flag           `json:"ai_flags"`
	DistanceFromSite *float64         `json:"distance_from_site,omitempty"`
	LocationValid    *bool            `json:"location_valid,omitempty"`
	MaxDriftMeters   float64          `json:"max_drift_meters"`
	LastLocationAt   *time.Time       `json:"last_location_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Open reports whether the shift has not been clocked out
func (t *Timesheet) Open() bool {
	return t.ClockOut == nil
}

// HasFlag reports whether the timesheet carries the given flag
func (t *Timesheet) HasFlag(f Flag) bool {
	for _, have := range t.AIFlags {
		if have == f {
			return true
		}
	}
	return false
}

// addFlag attaches f at most once and keeps the set sorted
func (t *Timesheet) addFlag(f Flag) {
	if t.HasFlag(f) {
		return
	}
	t.AIFlags = append(t.AIFlags, f)
	sort.Slice(t.AIFlags, func(i, j int) bool { return t.AIFlags[i] < t.AIFlags[j] })
}

// EffectiveHours is the stored hours, else the clock-in to clock-out span. Open shifts count zero.
func EffectiveHours(t *Timesheet) decimal.Decimal {
	if t.Hours != nil {
		return *t.Hours
	}
	if t.ClockOut == nil || !t.ClockOut.After(t.ClockIn) {
		return decimal.Zero
	}
	return hoursBetween(t.ClockIn, *t.ClockOut)
}

func hoursBetween(from, to time.Time) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(to.Sub(from) / time.Second))
	return seconds.Div(decimal.NewFromInt(3600)).Round(2)
}
