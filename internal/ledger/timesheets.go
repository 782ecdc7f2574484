package ledger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zombor/siteledger/internal/timesheet"
)

type clockInRequest struct {
	JobID    string                `json:"job_id" validate:"required,max=100"`
	Location *timesheet.Coordinate `json:"location"`
	Notes    string                `json:"notes" validate:"max=2000"`
}

type clockOutRequest struct {
	Location *timesheet.Coordinate `json:"location"`
	Notes    string                `json:"notes" validate:"max=2000"`
}

type locationRequest struct {
	Latitude   *float64  `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	RecordedAt time.Time `json:"recorded_at"`
}

// handleClockIn starts a shift for the acting worker
func (s *Server) handleClockIn(w http.ResponseWriter, r *http.Request) {
	var req clockInRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	t, err := s.engine.ClockIn(actingUser(r), req.JobID, req.Location, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleClockOut ends the acting worker's open shift
func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	var req clockOutRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	t, err := s.engine.ClockOut(actingUser(r), req.Location, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleRecordLocation checks a mid-shift location sample
func (s *Server) handleRecordLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	location := timesheet.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	t, err := s.engine.RecordLocation(actingUser(r), chi.URLParam(r, "id"), location, req.RecordedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleApproveTimesheet approves a closed timesheet
func (s *Server) handleApproveTimesheet(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.ApproveTimesheet(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleRejectTimesheet rejects a closed timesheet
func (s *Server) handleRejectTimesheet(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.RejectTimesheet(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleListTimesheets lists the acting user's timesheets by job or worker
func (s *Server) handleListTimesheets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := timesheet.Filter{
		JobID:    q.Get("job_id"),
		WorkerID: q.Get("worker_id"),
	}
	timesheets, err := s.engine.Timesheets(actingUser(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timesheets)
}

// handleGetTimesheet returns one timesheet
func (s *Server) handleGetTimesheet(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Timesheet(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
