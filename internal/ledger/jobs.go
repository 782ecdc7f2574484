package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zombor/siteledger/internal/job"
	"github.com/zombor/siteledger/internal/timesheet"
)

// handleJobSummary returns labor cost, receipt expenses, profit and margin for a job
func (s *Server) handleJobSummary(w http.ResponseWriter, r *http.Request) {
	_, summary, err := s.engine.JobFinancialSummary(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleJobAlerts returns budget, payment and shift alerts for a job
func (s *Server) handleJobAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.engine.JobAlerts(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts.Budget == nil {
		alerts.Budget = []job.Alert{}
	}
	if alerts.Payment == nil {
		alerts.Payment = []job.Alert{}
	}
	if alerts.Shifts == nil {
		alerts.Shifts = []timesheet.ShiftAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleShiftAlerts returns shift length alerts for a job
func (s *Server) handleShiftAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.engine.ShiftAlerts(actingUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []timesheet.ShiftAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
