package timesheet

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyClockedIn = errors.New("worker is already clocked in")
	ErrNotClockedIn     = errors.New("worker is not clocked in")
	ErrShiftClosed      = errors.New("shift is already clocked out")
	ErrShiftOpen        = errors.New("shift is still open")
	ErrOutOfOrder       = errors.New("location sample is out of order")
	ErrImmutable        = errors.New("timesheet is approved")
	ErrOutsideGeofence  = errors.New("clock-in is outside the job site")
)

// IDGenerator generates unique IDs for timesheets
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ClockInRequest starts a shift. Site is the job's location when known.
type ClockInRequest struct {
	OwnerID  string
	WorkerID string
	JobID    string
	Location *Coordinate
	Site     *Coordinate
	Notes    string
}

// ClockOutRequest ends the worker's open shift
type ClockOutRequest struct {
	WorkerID string
	Location *Coordinate
	Notes    string
}

// Service records shifts and validates their locations
type Service struct {
	db          DB
	geofence    *Geofence
	shifts      ShiftConfig
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(db DB, geofence GeofenceConfig, shifts ShiftConfig) *Service {
	return NewServiceWithDeps(db, geofence, shifts, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, geofence GeofenceConfig, shifts ShiftConfig, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		geofence:    NewGeofence(geofence),
		shifts:      shifts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ClockIn opens a shift for a worker. A worker can hold only one open shift.
func (s *Service) ClockIn(req ClockInRequest) (*Timesheet, error) {
	open, err := s.openShift(req.WorkerID)
	if err != nil && !errors.Is(err, ErrNotClockedIn) {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: shift %s", ErrAlreadyClockedIn, open.ID)
	}

	now := s.timeSource.Now()
	t := &Timesheet{
		ID:              s.idGenerator.Generate(),
		OwnerID:         req.OwnerID,
		WorkerID:        req.WorkerID,
		JobID:           req.JobID,
		ClockIn:         now,
		ClockInLocation: req.Location,
		Status:          StatusWorking,
		Notes:           req.Notes,
		AIFlags:         []Flag{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch {
	case req.Site != nil && req.Location != nil:
		result := s.geofence.ValidateClockIn(*req.Site, *req.Location)
		distance := result.DistanceMeters
		t.DistanceFromSite = &distance
		t.LocationValid = &result.Allowed
		if !result.Allowed {
			if s.geofence.Policy() == PolicyEnforce {
				return nil, fmt.Errorf("%w: %.0fm from site", ErrOutsideGeofence, distance)
			}
			slog.Info("Clock-in outside job site",
				"worker_id", req.WorkerID,
				"job_id", req.JobID,
				"distance_meters", distance,
			)
			t.addFlag(FlagLocationMismatch)
		}
	case req.Site != nil:
		slog.Info("Clock-in without a location",
			"worker_id", req.WorkerID,
			"job_id", req.JobID,
		)
		t.addFlag(FlagLocationUnavailable)
	}

	if err := s.db.CreateTimesheet(t); err != nil {
		return nil, fmt.Errorf("saving timesheet: %w", err)
	}
	return t, nil
}

// RecordLocation checks a mid-shift position sample for drift away from the clock-in point
func (s *Service) RecordLocation(id string, sample Coordinate, at time.Time) (*Timesheet, error) {
	if at.IsZero() {
		at = s.timeSource.Now()
	}

	t, err := s.db.UpdateTimesheet(id, func(t *Timesheet) error {
		if t.Status == StatusApproved {
			return fmt.Errorf("%w: %s", ErrImmutable, id)
		}
		if !t.Open() {
			return fmt.Errorf("%w: %s", ErrShiftClosed, id)
		}
		if at.Before(t.ClockIn) || (t.LastLocationAt != nil && at.Before(*t.LastLocationAt)) {
			return fmt.Errorf("%w: sample at %s", ErrOutOfOrder, at.Format(time.RFC3339))
		}

		s.checkDrift(t, sample)
		t.LastLocationAt = &at
		t.UpdatedAt = s.timeSource.Now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording location: %w", err)
	}
	return t, nil
}

// ClockOut closes the worker's open shift and settles its status
func (s *Service) ClockOut(req ClockOutRequest) (*Timesheet, error) {
	open, err := s.openShift(req.WorkerID)
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	t, err := s.db.UpdateTimesheet(open.ID, func(t *Timesheet) error {
		// another request may have closed it since the lookup
		if !t.Open() {
			return fmt.Errorf("%w: worker %s", ErrNotClockedIn, req.WorkerID)
		}
		if now.Before(t.ClockIn) {
			return fmt.Errorf("%w: clock-out before clock-in", ErrOutOfOrder)
		}

		if req.Location != nil {
			t.ClockOutLocation = req.Location
			s.checkDrift(t, *req.Location)
		}
		if req.Notes != "" {
			t.Notes = req.Notes
		}

		t.ClockOut = &now
		hours := hoursBetween(t.ClockIn, now)
		t.Hours = &hours
		for _, f := range s.shifts.CheckShift(t, now) {
			t.addFlag(f)
		}

		t.Status = StatusCompleted
		if len(t.AIFlags) > 0 {
			t.Status = StatusFlagged
		}
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clocking out: %w", err)
	}
	return t, nil
}

// Approve locks a closed timesheet. Approved timesheets cannot change.
func (s *Service) Approve(id string) (*Timesheet, error) {
	return s.review(id, StatusApproved)
}

// Reject marks a closed timesheet as rejected
func (s *Service) Reject(id string) (*Timesheet, error) {
	return s.review(id, StatusRejected)
}

func (s *Service) review(id string, status Status) (*Timesheet, error) {
	t, err := s.db.UpdateTimesheet(id, func(t *Timesheet) error {
		if t.Status == StatusApproved {
			return fmt.Errorf("%w: %s", ErrImmutable, id)
		}
		if t.Open() {
			return fmt.Errorf("%w: %s", ErrShiftOpen, id)
		}
		t.Status = status
		t.UpdatedAt = s.timeSource.Now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reviewing timesheet: %w", err)
	}
	return t, nil
}

// Get retrieves a timesheet by ID
func (s *Service) Get(id string) (*Timesheet, error) {
	t, err := s.db.GetTimesheet(id)
	if err != nil {
		return nil, fmt.Errorf("getting timesheet: %w", err)
	}
	return t, nil
}

// List returns the matching timesheets, most recent clock-in first
func (s *Service) List(filter Filter) ([]*Timesheet, error) {
	timesheets, err := s.db.ListTimesheets(filter)
	if err != nil {
		return nil, fmt.Errorf("listing timesheets: %w", err)
	}
	sort.SliceStable(timesheets, func(i, j int) bool {
		if !timesheets[i].ClockIn.Equal(timesheets[j].ClockIn) {
			return timesheets[i].ClockIn.After(timesheets[j].ClockIn)
		}
		return timesheets[i].ID < timesheets[j].ID
	})
	return timesheets, nil
}

// Alerts lists shift length alerts for the matching timesheets
func (s *Service) Alerts(filter Filter) ([]ShiftAlert, error) {
	timesheets, err := s.List(filter)
	if err != nil {
		return nil, err
	}
	return s.shifts.Alerts(timesheets, s.timeSource.Now()), nil
}

func (s *Service) openShift(workerID string) (*Timesheet, error) {
	open, err := s.db.ListTimesheets(Filter{WorkerID: workerID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing open shifts: %w", err)
	}
	for _, t := range open {
		if t.Status == StatusWorking {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: worker %s", ErrNotClockedIn, workerID)
}

func (s *Service) checkDrift(t *Timesheet, sample Coordinate) {
	if t.ClockInLocation == nil {
		return
	}
	result := s.geofence.CheckDrift(*t.ClockInLocation, sample)
	t.MaxDriftMeters = max(t.MaxDriftMeters, result.DistanceMeters)
	if result.Flagged {
		t.addFlag(FlagLocationDrift)
	}
}
